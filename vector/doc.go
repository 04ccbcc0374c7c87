// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package vector holds the similarity index over answer embeddings.
//
// The index is an in-memory projection of the answers in storage. It is
// exact: Search scores the query against every entry by cosine similarity.
// Embeddings are derived data, so the index can always be rebuilt from
// AnswerStore.ListAnswers.
package vector
