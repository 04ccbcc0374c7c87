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


// Package mock provides a test double for ai.Embedder.
//
// The mock lets tests run without an embedding service and gives them
// control over the geometry of the vector space.
//
// # Usage in Tests
//
//	// Deterministic hash-derived vectors of length 4
//	embedder := mock.NewMockEmbedder(4)
//
//	// Pin vectors so similarity is known in advance
//	embedder.WithVector("what time do you open", []float32{1, 0, 0, 0}).
//	    WithVector("We open at 9am", []float32{1, 0, 0, 0})
//
//	// Inject failures
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return nil, errors.New("service down")
//	}
//
//	// Check call counts
//	count := embedder.CallCount()
package mock
