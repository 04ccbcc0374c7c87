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


// Package reembed recomputes the embeddings of stored answers, for example
// after switching embedding models.
//
// Answers are walked in creation order in batches. Each batch is embedded
// with retry and exponential backoff, normalized to unit length, written
// back to the answer store, and refreshed in the vector index. Batches run
// in parallel up to a configured limit. Answer text is never modified.
package reembed
