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
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/frontdesk/core"
)

// SweepExpired moves every pending query whose deadline is at or before now
// to unresolved. Writes fan out over the engine's worker pool. A query bound
// while the sweep runs stays resolved. Returns the number of queries expired.
func (e *Engine) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	pending, err := e.ledger.ListQueries(ctx, core.StatusPending)
	if err != nil {
		return 0, err
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		errs    []error
		expired atomic.Int64
	)
	for _, q := range pending {
		if !q.IsOverdue(now) {
			continue
		}
		id := q.Id
		wg.Add(1)
		submitErr := e.sweepPool.Submit(func() {
			defer wg.Done()
			result, err := e.ledger.MarkExpired(ctx, id)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			if result.Status == core.StatusUnresolved {
				expired.Add(1)
			}
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, submitErr)
			mu.Unlock()
		}
	}
	wg.Wait()

	n := int(expired.Load())
	if n > 0 {
		e.logger.Info("swept expired queries", "expired", n, "now", now)
	}
	return n, errors.Join(errs...)
}

// Sweeper runs SweepExpired on a fixed interval.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	logger   *slog.Logger
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweeperLogger sets a custom logger.
// Default is slog.Default().
func WithSweeperLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSweeper creates a sweeper for engine. A non-positive interval selects
// one minute.
func NewSweeper(engine *Engine, interval time.Duration, opts ...SweeperOption) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	s := &Sweeper{
		engine:   engine,
		interval: interval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "sweeper")
	return s
}

// Run sweeps once immediately and then on every tick until ctx is done.
// Sweep errors are logged and do not stop the loop.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.engine.SweepExpired(ctx, s.engine.Now()); err != nil && ctx.Err() == nil {
			s.logger.Error("sweep failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
