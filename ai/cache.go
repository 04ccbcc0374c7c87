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


package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/poiesic/frontdesk/core"
)

const defaultCacheEntries = 10_000

// CachingEmbedder memoizes embeddings by content hash. Operators answering
// the same recurring question with the same text pay for one embedding call.
type CachingEmbedder struct {
	next   Embedder
	cache  *ristretto.Cache[uint64, []float32]
	logger *slog.Logger
}

var _ Embedder = (*CachingEmbedder)(nil)

// NewCachingEmbedder wraps next with a cache holding up to maxEntries
// embeddings. A non-positive maxEntries selects a default of 10000.
func NewCachingEmbedder(next Embedder, maxEntries int) (*CachingEmbedder, error) {
	if maxEntries <= 0 {
		maxEntries = defaultCacheEntries
	}
	// Every entry costs 1, so MaxCost is an entry count.
	cache, err := ristretto.NewCache(&ristretto.Config[uint64, []float32]{
		NumCounters:        int64(maxEntries) * 10,
		MaxCost:            int64(maxEntries),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	return &CachingEmbedder{
		next:   next,
		cache:  cache,
		logger: slog.Default().With("component", "embedding-cache"),
	}, nil
}

// EmbedText returns the cached embedding for text or computes and caches it.
func (c *CachingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	key := uint64(core.IDFromContent(text))
	if v, ok := c.cache.Get(key); ok {
		return clone(v), nil
	}

	v, err := c.next.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, clone(v), 1)
	return v, nil
}

// EmbedTexts embeds only the texts that miss the cache, in one batch call.
func (c *CachingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if v, ok := c.cache.Get(uint64(core.IDFromContent(text))); ok {
			result[i] = clone(v)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return result, nil
	}

	c.logger.Debug("embedding cache misses", "hits", len(texts)-len(missTexts), "misses", len(missTexts))
	embedded, err := c.next.EmbedTexts(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(embedded), len(missTexts))
	}
	for j, i := range missIdx {
		result[i] = embedded[j]
		c.cache.Set(uint64(core.IDFromContent(missTexts[j])), clone(embedded[j]), 1)
	}
	return result, nil
}

// Wait blocks until pending cache writes are applied.
func (c *CachingEmbedder) Wait() {
	c.cache.Wait()
}

// Close releases the cache.
func (c *CachingEmbedder) Close() {
	c.cache.Close()
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
