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
	"fmt"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/frontdesk/ai"
	"github.com/poiesic/frontdesk/core"
	"github.com/poiesic/frontdesk/search"
	"github.com/poiesic/frontdesk/storage"
)

// Engine admits queries, matches them against past answers, binds answers
// and enforces deadlines. It holds no locks of its own: every lifecycle
// transition is a compare-and-set in the ledger, scoped to one query.
type Engine struct {
	ledger    storage.QueryLedger
	answers   storage.AnswerStore
	index     storage.VectorIndex
	embedder  ai.Embedder
	searcher  *search.Searcher
	clock     core.Clock
	config    Config
	sweepPool *ants.Pool
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		e.config = cfg
		return nil
	}
}

// WithClock sets the clock used for deadline checks. It must be the same
// clock the ledger stamps deadlines with.
// Default is core.SystemClock.
func WithClock(clock core.Clock) Option {
	return func(e *Engine) error {
		if clock == nil {
			clock = core.SystemClock{}
		}
		e.clock = clock
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates a new engine. The index must accept embeddings of the
// configured dimension.
func NewEngine(
	ledger storage.QueryLedger,
	answers storage.AnswerStore,
	index storage.VectorIndex,
	embedder ai.Embedder,
	opts ...Option,
) (*Engine, error) {
	if ledger == nil {
		return nil, ErrLedgerRequired
	}
	if answers == nil {
		return nil, ErrAnswerStoreRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	e := &Engine{
		ledger:   ledger,
		answers:  answers,
		index:    index,
		embedder: embedder,
		clock:    core.SystemClock{},
		config:   DefaultConfig(index.Dimensions()),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	if e.config.Dimensions != index.Dimensions() {
		return nil, fmt.Errorf("%w: engine expects %d, index holds %d",
			core.ErrDimensionMismatch, e.config.Dimensions, index.Dimensions())
	}

	searcher, err := search.NewSearcher(answers, index, embedder, search.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}
	e.searcher = searcher

	pool, err := ants.NewPool(e.config.SweepPoolSize)
	if err != nil {
		return nil, err
	}
	e.sweepPool = pool
	e.logger = e.logger.With("component", "triage")

	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Now returns the engine's current time.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// Release releases the sweep worker pool.
// The engine should not be used after calling Release.
func (e *Engine) Release() {
	if e.sweepPool != nil {
		e.sweepPool.Release()
	}
}

// SubmitQuery admits a new query and compares it to past answers.
//
// The query is stored first. The best match, if any, is returned as a
// suggestion; when it is similar enough and the policy is AutoResolveBind,
// its text is bound as the query's answer. Suggestion failures are logged
// and leave the query pending for a human, never undoing the admission.
func (e *Engine) SubmitQuery(ctx context.Context, body, requester string, qc core.QueryContext) (*core.Query, *core.MatchResult, error) {
	if err := core.ValidateSubmission(body, requester, qc); err != nil {
		return nil, nil, err
	}

	query, err := e.ledger.CreateQuery(ctx, body, requester, qc)
	if err != nil {
		return nil, nil, err
	}
	e.logger.Info("query admitted", "queryID", query.Id, "room", qc.RoomName, "deadline", query.Deadline)

	match, err := e.suggest(ctx, body)
	if err != nil {
		e.logger.Warn("no suggestion for query", "queryID", query.Id, "err", err)
		return query, nil, nil
	}
	if match == nil {
		return query, nil, nil
	}

	if e.config.Policy != AutoResolveBind || match.Score <= e.config.AutoResolveThreshold {
		return query, match, nil
	}

	resolved, err := e.autoResolve(ctx, query, match)
	if err != nil {
		e.logger.Warn("auto-resolve failed, leaving query for a human",
			"queryID", query.Id, "matchedAnswerID", match.AnswerID, "err", err)
		return query, match, nil
	}
	return resolved, match, nil
}

func (e *Engine) suggest(ctx context.Context, body string) (*core.MatchResult, error) {
	embedding, err := e.embed(ctx, body)
	if err != nil {
		return nil, err
	}
	matches, err := e.searcher.FindSimilarVector(ctx, embedding, e.config.SuggestionTopK)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	best := matches[0]
	return &best, nil
}

// autoResolve binds a copy of the matched answer to query. The copy reuses
// the stored embedding and is not indexed, since its text is already there.
func (e *Engine) autoResolve(ctx context.Context, query *core.Query, match *core.MatchResult) (*core.Query, error) {
	source, err := e.answers.GetAnswer(ctx, match.AnswerID)
	if err != nil {
		return nil, err
	}
	reuse := func(context.Context, string) ([]float32, error) {
		return source.Embedding, nil
	}

	_, bound, err := e.commitAnswer(ctx, query.Id, AutoResolverID, source.Text, reuse)
	if err != nil {
		return nil, err
	}
	e.logger.Info("query auto-resolved", "queryID", query.Id, "matchedAnswerID", match.AnswerID, "score", match.Score)
	return bound, nil
}

// SubmitAnswer stores an operator's answer and binds it to the query.
//
// The answer is written first, then bound, then indexed, so a query is never
// linked to or matched against an answer that is not durable. If binding
// fails the answer is deleted again; if that also fails the returned error
// is an *OrphanedAnswerError.
func (e *Engine) SubmitAnswer(ctx context.Context, queryID core.ID, author, text string) (*core.Answer, error) {
	if err := core.ValidateAnswerInput(author, text); err != nil {
		return nil, err
	}

	answer, _, err := e.commitAnswer(ctx, queryID, author, text, e.embed)
	if err != nil {
		return nil, err
	}

	if err := e.index.Insert(answer.Id, answer.Embedding); err != nil {
		// Bound and durable; RebuildIndex restores the entry.
		e.logger.Error("failed to index answer", "answerID", answer.Id, "err", err)
	}
	e.logger.Info("query resolved", "queryID", queryID, "answerID", answer.Id, "author", author)
	return answer, nil
}

func (e *Engine) commitAnswer(ctx context.Context, queryID core.ID, author, text string, embed storage.EmbedFunc) (*core.Answer, *core.Query, error) {
	answer, err := e.answers.CreateAnswer(ctx, queryID, author, text, embed)
	if err != nil {
		return nil, nil, err
	}

	bound, bindErr := e.ledger.BindAnswer(ctx, queryID, answer.Id, author)
	if bindErr == nil {
		return answer, bound, nil
	}

	// Roll back on a fresh context so a cancelled request still cleans up.
	if delErr := e.answers.DeleteAnswer(context.WithoutCancel(ctx), answer.Id); delErr != nil {
		e.logger.Error("answer orphaned", "answerID", answer.Id, "queryID", queryID,
			"bindErr", bindErr, "deleteErr", delErr)
		return nil, nil, &OrphanedAnswerError{
			AnswerID:  answer.Id,
			QueryID:   queryID,
			BindErr:   bindErr,
			DeleteErr: delErr,
		}
	}
	e.logger.Debug("rolled back unbound answer", "answerID", answer.Id, "queryID", queryID, "err", bindErr)
	return nil, nil, bindErr
}

// embed computes an embedding and checks its length before anything is written.
func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	v, err := e.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if err := core.ValidateDimension(v, e.config.Dimensions); err != nil {
		return nil, err
	}
	return v, nil
}

// GetQuery returns a query, first expiring it if its deadline has passed.
func (e *Engine) GetQuery(ctx context.Context, id core.ID) (*core.Query, error) {
	query, err := e.ledger.GetQuery(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.expireIfOverdue(ctx, query, e.clock.Now())
}

// ListQueries returns queries with the given status, newest first. An empty
// status lists every query. Overdue queries are expired before filtering so
// they are reported under their current status.
func (e *Engine) ListQueries(ctx context.Context, status core.Status) ([]*core.Query, error) {
	if err := core.ValidateStatusFilter(status); err != nil {
		return nil, err
	}

	all, err := e.ledger.ListQueries(ctx, "")
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	result := make([]*core.Query, 0, len(all))
	for _, q := range all {
		q, err := e.expireIfOverdue(ctx, q, now)
		if err != nil {
			return nil, err
		}
		if status == "" || q.Status == status {
			result = append(result, q)
		}
	}
	return result, nil
}

func (e *Engine) expireIfOverdue(ctx context.Context, q *core.Query, now time.Time) (*core.Query, error) {
	if !q.IsOverdue(now) {
		return q, nil
	}
	expired, err := e.ledger.MarkExpired(ctx, q.Id)
	if err != nil {
		return nil, err
	}
	if expired.Status == core.StatusUnresolved {
		e.logger.Info("query expired", "queryID", q.Id, "deadline", q.Deadline)
	}
	return expired, nil
}

// GetAnswer returns a stored answer.
func (e *Engine) GetAnswer(ctx context.Context, id core.ID) (*core.Answer, error) {
	return e.answers.GetAnswer(ctx, id)
}

// SemanticSearch returns up to topK past answers nearest to embedding.
func (e *Engine) SemanticSearch(ctx context.Context, embedding []float32, topK int) ([]core.MatchResult, error) {
	return e.searcher.FindSimilarVector(ctx, embedding, topK)
}

// SearchText embeds text and returns up to topK nearest past answers.
func (e *Engine) SearchText(ctx context.Context, text string, topK int) ([]core.MatchResult, error) {
	return e.searcher.FindSimilar(ctx, text, topK)
}

// RebuildIndex replaces the index contents with every stored operator
// answer. Auto-bound copies are skipped, as are embeddings of the wrong
// length. Returns the number of entries indexed.
func (e *Engine) RebuildIndex(ctx context.Context) (int, error) {
	answers, err := e.answers.ListAnswers(ctx)
	if err != nil {
		return 0, err
	}

	e.index.Clear()
	indexed := 0
	for _, a := range answers {
		if a.AuthorID == AutoResolverID {
			continue
		}
		if err := e.index.Insert(a.Id, a.Embedding); err != nil {
			if errors.Is(err, core.ErrDimensionMismatch) {
				e.logger.Warn("skipping answer with stale embedding", "answerID", a.Id, "err", err)
				continue
			}
			return indexed, err
		}
		indexed++
	}
	e.logger.Info("index rebuilt", "entries", indexed, "answers", len(answers))
	return indexed, nil
}

// ReconcileOrphans deletes answers that are not bound to their query and
// drops them from the index. Answers younger than grace are left alone, since
// they may belong to a submission still in flight. Returns the IDs removed.
func (e *Engine) ReconcileOrphans(ctx context.Context, grace time.Duration) ([]core.ID, error) {
	answers, err := e.answers.ListAnswers(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := e.clock.Now().Add(-grace)
	var removed []core.ID
	for _, a := range answers {
		if a.CreatedAt.After(cutoff) {
			continue
		}
		query, err := e.ledger.GetQuery(ctx, a.QueryID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return removed, err
		}
		if query != nil && query.AnswerID == a.Id {
			continue
		}

		e.index.Remove(a.Id)
		if err := e.answers.DeleteAnswer(ctx, a.Id); err != nil {
			return removed, err
		}
		e.logger.Info("removed orphaned answer", "answerID", a.Id, "queryID", a.QueryID)
		removed = append(removed, a.Id)
	}
	return removed, nil
}
