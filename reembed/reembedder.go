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
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/frontdesk/ai"
	"github.com/poiesic/frontdesk/core"
	"github.com/poiesic/frontdesk/storage"
	"golang.org/x/sync/errgroup"
)

// Config holds configuration for reembedding operations.
type Config struct {
	// BatchSize is the number of answers to process in each batch
	BatchSize int

	// Concurrency is the number of batches processed in parallel
	Concurrency int

	// Dimensions, if positive, is the required embedding length
	Dimensions int

	// ReportInterval is how often to report progress (number of answers)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Clock times the run. Nil uses the system clock.
	Clock core.Clock
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		Concurrency:    2,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder recomputes embeddings for every stored answer.
type Reembedder struct {
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *AnswerIterator
	logger    *slog.Logger
}

// NewReembedder creates a reembedder. index may be nil. Progress lines are
// written to progress.
func NewReembedder(answers storage.AnswerStore, index storage.VectorIndex, embedder ai.Embedder, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	config = &cfg
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.Clock == nil {
		config.Clock = core.SystemClock{}
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(answers, index, embedder, config.Dimensions, config.MaxRetries, config.RetryDelay),
		iterator:  NewAnswerIterator(answers, config.BatchSize),
		logger:    slog.Default().With("component", "reembedder"),
	}
}

// Run re-embeds all answers. It returns the progress reached and the first
// batch error, after which remaining batches are cancelled.
func (r *Reembedder) Run(ctx context.Context) (Progress, error) {
	all, err := r.iterator.Load(ctx)
	if err != nil {
		return Progress{}, fmt.Errorf("failed to load answers: %w", err)
	}
	if len(all) == 0 {
		fmt.Fprintf(r.progress, "No answers found in database (0 answers)\n")
		return Progress{}, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d answers (batch size: %d, concurrency: %d)\n",
		len(all), r.iterator.batchSize, r.config.Concurrency)

	tracker := NewProgressTracker(r.progress, len(all), r.config.ReportInterval, r.config.Clock, r.logger)
	tracker.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)

	iterErr := r.iterator.ForEach(gctx, all, func(batch []*core.Answer) error {
		g.Go(func() error {
			result, err := r.processor.Process(gctx, batch)
			if err != nil {
				tracker.BatchFailed(len(batch))
				r.logger.Error("batch failed", "first", batch[0].Id, "size", len(batch), "err", err)
				return fmt.Errorf("failed to process batch: %w", err)
			}
			tracker.BatchDone(result)
			return nil
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return tracker.Finish(), err
	}
	if iterErr != nil {
		return tracker.Finish(), iterErr
	}

	p := tracker.Finish()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d answers in %v (%.1f answers/sec), %d reindexed, %d not indexed\n",
		p.Processed, p.Elapsed.Round(time.Second), p.Rate(), p.Reindexed, p.Unindexed)

	return p, nil
}
