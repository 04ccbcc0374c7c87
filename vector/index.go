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


package vector

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/poiesic/frontdesk/core"
	"github.com/poiesic/frontdesk/storage"
)

// Index is an exact nearest-neighbor index over answer embeddings. Vectors are
// normalized on insert so a search is a dot product against every entry.
type Index struct {
	dim     int
	mu      sync.RWMutex
	entries map[core.ID][]float32
}

var _ storage.VectorIndex = (*Index)(nil)

// NewIndex creates an empty index accepting vectors of length dim.
func NewIndex(dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", core.ErrInvalidArgument, dim)
	}
	return &Index{
		dim:     dim,
		entries: make(map[core.ID][]float32),
	}, nil
}

// Dimensions returns the vector length the index accepts.
func (x *Index) Dimensions() int {
	return x.dim
}

// Insert adds or replaces the entry for answerID.
func (x *Index) Insert(answerID core.ID, embedding []float32) error {
	if err := core.ValidateDimension(embedding, x.dim); err != nil {
		return err
	}
	normalized := Normalize(embedding)

	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries[answerID] = normalized
	return nil
}

// Remove deletes the entry for answerID. No-op if absent.
func (x *Index) Remove(answerID core.ID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.entries, answerID)
}

// Contains reports whether answerID has an entry.
func (x *Index) Contains(answerID core.ID) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.entries[answerID]
	return ok
}

// Len returns the number of entries.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Entries returns a copy of every entry ordered by answer ID. Embeddings
// are the normalized vectors the index searches over.
func (x *Index) Entries() []core.VectorEntry {
	x.mu.RLock()
	out := make([]core.VectorEntry, 0, len(x.entries))
	for id, v := range x.entries {
		out = append(out, core.VectorEntry{AnswerID: id, Embedding: slices.Clone(v)})
	}
	x.mu.RUnlock()

	slices.SortFunc(out, func(a, b core.VectorEntry) int {
		return cmp.Compare(a.AnswerID, b.AnswerID)
	})
	return out
}

// Clear removes every entry.
func (x *Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = make(map[core.ID][]float32)
}

// Search returns at most topK entries ranked by cosine similarity, highest
// first. Equal scores rank the more recent answer (higher ID) first.
func (x *Index) Search(query []float32, topK int) ([]core.SimilarityMatch, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", core.ErrInvalidArgument, topK)
	}
	if err := core.ValidateDimension(query, x.dim); err != nil {
		return nil, err
	}
	q := Normalize(query)

	x.mu.RLock()
	results := make([]core.SimilarityMatch, 0, len(x.entries))
	for id, v := range x.entries {
		results = append(results, core.SimilarityMatch{
			AnswerID: id,
			Score:    dotProduct(q, v),
		})
	}
	x.mu.RUnlock()

	slices.SortFunc(results, func(a, b core.SimilarityMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		if a.AnswerID > b.AnswerID {
			return -1
		}
		if a.AnswerID < b.AnswerID {
			return 1
		}
		return 0
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Normalize returns a unit-length copy of v. A zero vector stays zero.
func Normalize(v []float32) []float32 {
	result := make([]float32, len(v))
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return result
	}
	magnitude := float32(math.Sqrt(sum))
	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}

// dotProduct calculates the dot product of two vectors of equal length.
func dotProduct(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
