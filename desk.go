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


package frontdesk

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/frontdesk/ai"
	"github.com/poiesic/frontdesk/ai/openai"
	"github.com/poiesic/frontdesk/core"
	"github.com/poiesic/frontdesk/reembed"
	"github.com/poiesic/frontdesk/storage"
	"github.com/poiesic/frontdesk/storage/badger"
	"github.com/poiesic/frontdesk/triage"
	"github.com/poiesic/frontdesk/vector"
)

// Desk bundles the stores, embedder, vector index and triage engine of one
// deployment. The index is rebuilt from stored answers when the Desk opens.
type Desk struct {
	backend  *badger.Backend
	queries  *badger.QueryRepository
	answers  *badger.AnswerRepository
	embedder ai.Embedder
	cache    *ai.CachingEmbedder
	index    *vector.Index
	engine   *triage.Engine
	logger   *slog.Logger
}

// DeskOption configures a Desk.
type DeskOption func(*deskOptions)

type deskOptions struct {
	inMemory     bool
	sla          time.Duration
	clock        core.Clock
	aiConfig     *ai.Config
	embedder     ai.Embedder
	triageConfig *triage.Config
	cacheEntries int
	logger       *slog.Logger
}

// WithInMemory keeps all data in memory. The file path is ignored.
func WithInMemory() DeskOption {
	return func(o *deskOptions) {
		o.inMemory = true
	}
}

// WithSLA sets how long new queries stay pending before they lapse.
func WithSLA(sla time.Duration) DeskOption {
	return func(o *deskOptions) {
		o.sla = sla
	}
}

// WithClock sets the single clock used for timestamps and deadline checks.
func WithClock(clock core.Clock) DeskOption {
	return func(o *deskOptions) {
		o.clock = clock
	}
}

// WithAIConfig sets the embedding service configuration. Its Dimensions
// also fixes the vector index dimensionality.
func WithAIConfig(config *ai.Config) DeskOption {
	return func(o *deskOptions) {
		o.aiConfig = config
	}
}

// WithEmbedder uses embedder instead of connecting to the configured
// embedding service.
func WithEmbedder(embedder ai.Embedder) DeskOption {
	return func(o *deskOptions) {
		o.embedder = embedder
	}
}

// WithTriageConfig overrides the engine configuration.
func WithTriageConfig(config triage.Config) DeskOption {
	return func(o *deskOptions) {
		o.triageConfig = &config
	}
}

// WithEmbeddingCache sets the number of embeddings kept in memory. A
// negative value disables the cache.
func WithEmbeddingCache(entries int) DeskOption {
	return func(o *deskOptions) {
		o.cacheEntries = entries
	}
}

// WithLogger sets the logger for the desk and its engine.
func WithLogger(logger *slog.Logger) DeskOption {
	return func(o *deskOptions) {
		o.logger = logger
	}
}

// OpenDesk opens or creates the database at filePath and assembles the
// engine around it.
func OpenDesk(ctx context.Context, filePath string, opts ...DeskOption) (*Desk, error) {
	options := &deskOptions{
		clock:    core.SystemClock{},
		aiConfig: ai.DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if err := options.aiConfig.Validate(); err != nil {
		return nil, err
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory,
		badger.WithClock(options.clock), badger.WithBackendLogger(options.logger))
	if err != nil {
		return nil, err
	}

	d := &Desk{backend: backend, logger: options.logger.With("component", "desk")}
	if err := d.assemble(ctx, options); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Desk) assemble(ctx context.Context, options *deskOptions) error {
	var err error
	d.queries, err = badger.NewQueryRepository(d.backend, options.sla)
	if err != nil {
		return err
	}
	d.answers, err = badger.NewAnswerRepository(d.backend)
	if err != nil {
		return err
	}

	d.embedder = options.embedder
	if d.embedder == nil {
		d.embedder, err = openai.NewEmbedder(options.aiConfig)
		if err != nil {
			return err
		}
	}
	if options.cacheEntries >= 0 {
		d.cache, err = ai.NewCachingEmbedder(d.embedder, options.cacheEntries)
		if err != nil {
			return err
		}
		d.embedder = d.cache
	}

	d.index, err = vector.NewIndex(options.aiConfig.Dimensions)
	if err != nil {
		return err
	}

	engineOpts := []triage.Option{
		triage.WithClock(options.clock),
		triage.WithLogger(options.logger),
	}
	if options.triageConfig != nil {
		engineOpts = append(engineOpts, triage.WithConfig(*options.triageConfig))
	}
	d.engine, err = triage.NewEngine(d.queries, d.answers, d.index, d.embedder, engineOpts...)
	if err != nil {
		return err
	}

	n, err := d.engine.RebuildIndex(ctx)
	if err != nil {
		return err
	}
	d.logger.Info("desk open", "indexed", n, "dimensions", d.index.Dimensions(), "sla", d.queries.SLA())
	return nil
}

// Close releases the engine, repositories and backend.
func (d *Desk) Close() error {
	if d.engine != nil {
		d.engine.Release()
	}
	if d.cache != nil {
		d.cache.Close()
	}
	if d.answers != nil {
		if err := d.answers.Close(); err != nil {
			d.logger.Error("error closing answer repository", "err", err)
		}
	}
	if d.queries != nil {
		if err := d.queries.Close(); err != nil {
			d.logger.Error("error closing query repository", "err", err)
		}
	}
	if err := d.backend.Close(); err != nil {
		d.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Engine returns the triage engine.
func (d *Desk) Engine() *triage.Engine {
	return d.engine
}

func (d *Desk) QueryLedger() storage.QueryLedger {
	return d.queries
}

func (d *Desk) AnswerStore() storage.AnswerStore {
	return d.answers
}

func (d *Desk) VectorIndex() storage.VectorIndex {
	return d.index
}

// NewService returns the request/response boundary over the engine.
func (d *Desk) NewService() *Service {
	return &Service{engine: d.engine}
}

// NewSweeper returns a periodic expiry sweeper over the engine.
func (d *Desk) NewSweeper(interval time.Duration, opts ...triage.SweeperOption) *triage.Sweeper {
	return triage.NewSweeper(d.engine, interval, opts...)
}

// NewReembedder returns a re-embedder over every stored answer that keeps
// the open index in step. A nil config selects reembed.DefaultConfig. The
// caller's config is not modified.
func (d *Desk) NewReembedder(config *reembed.Config, progress io.Writer) *reembed.Reembedder {
	if config == nil {
		config = reembed.DefaultConfig()
	}
	cfg := *config
	cfg.Dimensions = d.index.Dimensions()
	if cfg.Clock == nil {
		cfg.Clock = core.ClockFunc(d.backend.Now)
	}
	return reembed.NewReembedder(d.answers, d.index, d.embedder, &cfg, progress)
}
