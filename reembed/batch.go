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


package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/frontdesk/ai"
	"github.com/poiesic/frontdesk/core"
	"github.com/poiesic/frontdesk/storage"
	"github.com/poiesic/frontdesk/vector"
)

// BatchResult summarizes one successfully stored batch.
type BatchResult struct {
	// Processed is the number of answers whose embedding was replaced
	Processed int

	// Reindexed is the number of answers whose index entry was refreshed
	Reindexed int

	// Unindexed is the number of answers with no index entry to refresh
	Unindexed int
}

// BatchProcessor re-embeds one batch of answers.
type BatchProcessor struct {
	answers        storage.AnswerStore
	index          storage.VectorIndex
	embedder       ai.Embedder
	dimensions     int
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a batch processor. index may be nil, in which
// case only storage is updated. A positive dimensions rejects embeddings of
// any other length.
func NewBatchProcessor(answers storage.AnswerStore, index storage.VectorIndex, embedder ai.Embedder, dimensions, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		answers:        answers,
		index:          index,
		embedder:       embedder,
		dimensions:     dimensions,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process embeds the answers' text, stores the normalized vectors and
// refreshes index entries that already exist. Answers not in the index are
// left out of it and counted as unindexed.
func (bp *BatchProcessor) Process(ctx context.Context, batch []*core.Answer) (BatchResult, error) {
	var result BatchResult
	if len(batch) == 0 {
		return result, nil
	}

	texts := make([]string, len(batch))
	for i, a := range batch {
		texts[i] = a.Text
	}

	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(embeddings) != len(batch) {
			return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCount, len(batch), len(embeddings))
		}
		return nil
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return result, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	updates := make([]*core.Answer, len(batch))
	for i, a := range batch {
		if bp.dimensions > 0 {
			if err := core.ValidateDimension(embeddings[i], bp.dimensions); err != nil {
				return result, fmt.Errorf("answer %d: %w", a.Id, err)
			}
		}
		updates[i] = &core.Answer{Id: a.Id, Embedding: vector.Normalize(embeddings[i])}
	}

	err = RetryWithBackoff(ctx, func() error {
		return bp.answers.UpdateEmbeddings(ctx, updates...)
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return result, fmt.Errorf("failed to update answers: %w", err)
	}
	result.Processed = len(updates)

	if bp.index == nil {
		result.Unindexed = len(updates)
		return result, nil
	}
	for _, u := range updates {
		if !bp.index.Contains(u.Id) {
			result.Unindexed++
			continue
		}
		if err := bp.index.Insert(u.Id, u.Embedding); err != nil {
			return result, fmt.Errorf("failed to refresh index entry %d: %w", u.Id, err)
		}
		result.Reindexed++
	}
	return result, nil
}
