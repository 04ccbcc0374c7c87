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


// Package ai provides the embedding boundary used by frontdesk.
//
// An Embedder turns answer text into a fixed-length vector. Every vector in
// one deployment must have the length configured in Config.Dimensions; the
// triage engine checks this before anything is written.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible embedding APIs via langchaingo
//   - ai/mock: deterministic test double
//
// CachingEmbedder wraps any Embedder with a content-addressed cache.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithToken(os.Getenv("OPENAI_API_KEY")))
//	embedder, err := openai.NewEmbedder(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cached, err := ai.NewCachingEmbedder(embedder, 0)
package ai
