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
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/frontdesk/core"
)

// Progress is a point-in-time view of a reembedding run.
type Progress struct {
	// Total is the number of answers the run started with
	Total int

	// Processed counts answers whose stored embedding was replaced
	Processed int

	// Reindexed counts processed answers whose index entry was refreshed
	Reindexed int

	// Unindexed counts processed answers left out of the index
	Unindexed int

	BatchesDone   int
	BatchesFailed int

	// Failed counts answers in failed batches
	Failed int

	Elapsed time.Duration
}

// Rate returns processed answers per second, or zero before any time has
// passed.
func (p Progress) Rate() float64 {
	if p.Elapsed <= 0 {
		return 0
	}
	return float64(p.Processed) / p.Elapsed.Seconds()
}

// Percent returns the share of Total that has been processed or failed.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 100
	}
	return float64(p.Processed+p.Failed) / float64(p.Total) * 100
}

// ProgressTracker folds batch outcomes into a running Progress. Every
// reportInterval answers it rewrites a status line on writer and logs the
// same figures at debug level.
type ProgressTracker struct {
	writer         io.Writer
	logger         *slog.Logger
	clock          core.Clock
	reportInterval int

	mu           sync.Mutex
	state        Progress
	startTime    time.Time
	lastReported int
}

// NewProgressTracker creates a tracker for total answers. A nil writer
// discards the status line, a nil clock uses the system clock and a nil
// logger uses slog.Default.
func NewProgressTracker(writer io.Writer, total, reportInterval int, clock core.Clock, logger *slog.Logger) *ProgressTracker {
	if writer == nil {
		writer = io.Discard
	}
	if clock == nil {
		clock = core.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if reportInterval <= 0 {
		reportInterval = 1
	}
	return &ProgressTracker{
		writer:         writer,
		logger:         logger,
		clock:          clock,
		reportInterval: reportInterval,
		state:          Progress{Total: total},
	}
}

// Start marks the beginning of the run for Elapsed and Rate.
func (pt *ProgressTracker) Start() {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.startTime = pt.clock.Now()
}

// BatchDone records a batch that was stored successfully.
func (pt *ProgressTracker) BatchDone(result BatchResult) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.state.BatchesDone++
	pt.state.Processed += result.Processed
	pt.state.Reindexed += result.Reindexed
	pt.state.Unindexed += result.Unindexed
	pt.maybeReport()
}

// BatchFailed records a batch of size answers that could not be stored.
func (pt *ProgressTracker) BatchFailed(size int) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.state.BatchesFailed++
	pt.state.Failed += size
	pt.maybeReport()
}

// Snapshot returns the current progress.
func (pt *ProgressTracker) Snapshot() Progress {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.snapshot()
}

// Finish writes the final status line, ends it with a newline and logs a
// summary. It returns the final progress.
func (pt *ProgressTracker) Finish() Progress {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.report()
	fmt.Fprintln(pt.writer)

	p := pt.snapshot()
	pt.logger.Info("reembedding finished",
		"processed", p.Processed,
		"reindexed", p.Reindexed,
		"unindexed", p.Unindexed,
		"batches", p.BatchesDone,
		"failed_batches", p.BatchesFailed,
		"elapsed", p.Elapsed)
	return p
}

func (pt *ProgressTracker) snapshot() Progress {
	p := pt.state
	if !pt.startTime.IsZero() {
		p.Elapsed = pt.clock.Now().Sub(pt.startTime)
	}
	return p
}

// maybeReport must be called with mu held.
func (pt *ProgressTracker) maybeReport() {
	seen := pt.state.Processed + pt.state.Failed
	if seen-pt.lastReported >= pt.reportInterval || seen >= pt.state.Total {
		pt.report()
	}
}

// report must be called with mu held.
func (pt *ProgressTracker) report() {
	p := pt.snapshot()
	pt.lastReported = p.Processed + p.Failed

	fmt.Fprintf(pt.writer, "\rProgress: %d/%d answers (%.1f%%), %d reindexed, %d not indexed, %d batches failed",
		p.Processed, p.Total, p.Percent(), p.Reindexed, p.Unindexed, p.BatchesFailed)
	pt.logger.Debug("reembedding progress",
		"processed", p.Processed,
		"total", p.Total,
		"reindexed", p.Reindexed,
		"unindexed", p.Unindexed,
		"failed_batches", p.BatchesFailed,
		"rate", p.Rate())
}
