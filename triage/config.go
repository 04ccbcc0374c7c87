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


package triage

import (
	"fmt"
	"runtime"

	"github.com/poiesic/frontdesk/core"
)

// AutoResolvePolicy decides what happens when a new query closely matches a
// past answer.
type AutoResolvePolicy string

const (
	// AutoResolveBind binds the matched answer's text as the final resolution.
	AutoResolveBind AutoResolvePolicy = "bind"
	// AutoResolveSuggest only returns the match; a human still answers.
	AutoResolveSuggest AutoResolvePolicy = "suggest"
)

// DefaultAutoResolvePolicy is the policy every engine uses unless configured
// otherwise. Auto-bound answers are final, not provisional.
const DefaultAutoResolvePolicy = AutoResolveBind

// AutoResolverID is the author and resolver recorded on auto-bound answers.
const AutoResolverID = "frontdesk:auto"

const (
	// DefaultAutoResolveThreshold is the similarity a match must exceed.
	DefaultAutoResolveThreshold = 0.9
	// DefaultSuggestionTopK is how many past answers a new query is compared to.
	DefaultSuggestionTopK = 3
)

// Config holds the engine's tunables. It is copied once at construction.
type Config struct {
	// Dimensions is the embedding length D shared by embedder and index.
	Dimensions int

	// AutoResolveThreshold is the similarity a suggestion must strictly exceed
	// before Policy applies.
	AutoResolveThreshold float32

	// Policy is what to do with a suggestion above the threshold.
	Policy AutoResolvePolicy

	// SuggestionTopK is the number of neighbors fetched for a new query.
	SuggestionTopK int

	// SweepPoolSize bounds concurrent expiry writes during a sweep.
	SweepPoolSize int
}

// DefaultConfig returns the default configuration for embeddings of length dim.
func DefaultConfig(dim int) Config {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	return Config{
		Dimensions:           dim,
		AutoResolveThreshold: DefaultAutoResolveThreshold,
		Policy:               DefaultAutoResolvePolicy,
		SuggestionTopK:       DefaultSuggestionTopK,
		SweepPoolSize:        poolSize,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", core.ErrInvalidArgument)
	}
	if c.AutoResolveThreshold < 0 || c.AutoResolveThreshold > 1 {
		return fmt.Errorf("%w: auto-resolve threshold must be within [0, 1]", core.ErrInvalidArgument)
	}
	switch c.Policy {
	case AutoResolveBind, AutoResolveSuggest:
	default:
		return fmt.Errorf("%w: unknown auto-resolve policy %q", core.ErrInvalidArgument, c.Policy)
	}
	if c.SuggestionTopK <= 0 {
		return fmt.Errorf("%w: suggestion top_k must be positive", core.ErrInvalidArgument)
	}
	if c.SweepPoolSize <= 0 {
		return fmt.Errorf("%w: sweep pool size must be positive", core.ErrInvalidArgument)
	}
	return nil
}
