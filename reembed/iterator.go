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

	"github.com/poiesic/frontdesk/core"
	"github.com/poiesic/frontdesk/storage"
)

const (
	// DefaultBatchSize is the default number of answers in each batch
	DefaultBatchSize = 100
)

// AnswerIterator walks every stored answer in fixed-size batches.
type AnswerIterator struct {
	answers   storage.AnswerStore
	batchSize int
}

// NewAnswerIterator creates an iterator. A non-positive batchSize selects
// DefaultBatchSize.
func NewAnswerIterator(answers storage.AnswerStore, batchSize int) *AnswerIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &AnswerIterator{
		answers:   answers,
		batchSize: batchSize,
	}
}

// Load reads every stored answer in creation order.
func (it *AnswerIterator) Load(ctx context.Context) ([]*core.Answer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return it.answers.ListAnswers(ctx)
}

// ForEach calls fn with consecutive batches of all, as returned by Load.
// Iteration stops at the first error from fn or when ctx is done.
func (it *AnswerIterator) ForEach(ctx context.Context, all []*core.Answer, fn func([]*core.Answer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for i := 0; i < len(all); i += it.batchSize {
		end := min(i+it.batchSize, len(all))
		if err := fn(all[i:end]); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}
