package triage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/frontdesk/ai/mock"
	"github.com/poiesic/frontdesk/core"
	"github.com/poiesic/frontdesk/storage"
	"github.com/poiesic/frontdesk/storage/badger"
	"github.com/poiesic/frontdesk/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 3

var (
	testStart = time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)
	lobby     = core.QueryContext{RoomName: "lobby", JobID: "job-1"}
)

type harness struct {
	engine  *Engine
	queries *badger.QueryRepository
	answers *badger.AnswerRepository
	index   *vector.Index
	embed   *mock.MockEmbedder
	clock   *core.ManualClock
}

func newHarness(t *testing.T, sla time.Duration, opts ...Option) *harness {
	t.Helper()
	clock := core.NewManualClock(testStart)
	queries, answers, backend, err := badger.NewMemoryRepositories(clock, sla)
	require.NoError(t, err)
	index, err := vector.NewIndex(testDim)
	require.NoError(t, err)
	embed := mock.NewMockEmbedder(testDim)

	h := &harness{queries: queries, answers: answers, index: index, embed: embed, clock: clock}
	h.engine = h.build(t, queries, answers, opts...)
	t.Cleanup(func() {
		answers.Close()
		queries.Close()
		backend.Close()
	})
	return h
}

// build creates an engine over the given stores sharing the harness index,
// embedder and clock.
func (h *harness) build(t *testing.T, ledger storage.QueryLedger, answers storage.AnswerStore, opts ...Option) *Engine {
	t.Helper()
	all := append([]Option{WithClock(h.clock)}, opts...)
	engine, err := NewEngine(ledger, answers, h.index, h.embed, all...)
	require.NoError(t, err)
	t.Cleanup(engine.Release)
	return engine
}

// seedAnswer resolves a fresh query with text whose embedding is v.
func (h *harness) seedAnswer(t *testing.T, body, text string, v []float32) *core.Answer {
	t.Helper()
	ctx := context.Background()
	h.embed.WithVector(text, v)
	q, err := h.queries.CreateQuery(ctx, body, "caller-0", lobby)
	require.NoError(t, err)
	a, err := h.engine.SubmitAnswer(ctx, q.Id, "supervisor", text)
	require.NoError(t, err)
	return a
}

func requireInvariant(t *testing.T, h *harness) {
	t.Helper()
	all, err := h.queries.ListQueries(context.Background(), "")
	require.NoError(t, err)
	for _, q := range all {
		require.NoError(t, core.CheckInvariant(q))
	}
}

func TestNewEngine(t *testing.T) {
	h := newHarness(t, time.Hour)

	t.Run("missing dependencies", func(t *testing.T) {
		_, err := NewEngine(nil, h.answers, h.index, h.embed)
		assert.Equal(t, ErrLedgerRequired, err)
		_, err = NewEngine(h.queries, nil, h.index, h.embed)
		assert.Equal(t, ErrAnswerStoreRequired, err)
		_, err = NewEngine(h.queries, h.answers, nil, h.embed)
		assert.Equal(t, ErrIndexRequired, err)
		_, err = NewEngine(h.queries, h.answers, h.index, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := NewEngine(h.queries, h.answers, h.index, h.embed, WithConfig(DefaultConfig(testDim+1)))
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := DefaultConfig(testDim)
		cfg.Policy = "sometimes"
		_, err := NewEngine(h.queries, h.answers, h.index, h.embed, WithConfig(cfg))
		assert.ErrorIs(t, err, core.ErrInvalidArgument)
	})

	t.Run("defaults", func(t *testing.T) {
		cfg := h.engine.Config()
		assert.Equal(t, DefaultAutoResolvePolicy, cfg.Policy)
		assert.Equal(t, AutoResolveBind, cfg.Policy)
		assert.InDelta(t, 0.9, cfg.AutoResolveThreshold, 1e-6)
		assert.Equal(t, 3, cfg.SuggestionTopK)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero dimensions", func(c *Config) { c.Dimensions = 0 }},
		{"threshold above one", func(c *Config) { c.AutoResolveThreshold = 1.5 }},
		{"negative threshold", func(c *Config) { c.AutoResolveThreshold = -0.1 }},
		{"unknown policy", func(c *Config) { c.Policy = "" }},
		{"zero top_k", func(c *Config) { c.SuggestionTopK = 0 }},
		{"zero pool", func(c *Config) { c.SweepPoolSize = 0 }},
	}
	require.NoError(t, DefaultConfig(4).Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(4)
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), core.ErrInvalidArgument)
		})
	}
}

func TestSubmitQuery_NoPastAnswers(t *testing.T) {
	h := newHarness(t, time.Hour)

	q, match, err := h.engine.SubmitQuery(context.Background(), "Do you validate parking?", "caller-1", lobby)
	require.NoError(t, err)
	assert.Nil(t, match)
	assert.Equal(t, core.StatusPending, q.Status)
	assert.True(t, testStart.Add(time.Hour).Equal(q.Deadline))
}

func TestSubmitQuery_Validation(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()

	_, _, err := h.engine.SubmitQuery(ctx, "  ", "caller", lobby)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, _, err = h.engine.SubmitQuery(ctx, "body", "caller", core.QueryContext{RoomName: "lobby"})
	assert.ErrorIs(t, err, core.ErrEmptyJobID)

	all, err := h.queries.ListQueries(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSubmitQuery_AutoResolve(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()

	past := h.seedAnswer(t, "how do I reset my password?", "Go to settings > security > reset", []float32{1, 0, 0})
	h.embed.WithVector("reset my password", []float32{0.95, 0.3122499, 0})

	q, match, err := h.engine.SubmitQuery(ctx, "reset my password", "caller-2", lobby)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, past.Id, match.AnswerID)
	assert.Equal(t, past.QueryID, match.QueryID)
	assert.InDelta(t, 0.95, match.Score, 1e-3)
	assert.Equal(t, "Go to settings > security > reset", match.Text)

	assert.Equal(t, core.StatusResolved, q.Status)
	assert.Equal(t, AutoResolverID, q.ResolvedBy)
	require.NotZero(t, q.AnswerID)
	assert.NotEqual(t, past.Id, q.AnswerID)

	bound, err := h.engine.GetAnswer(ctx, q.AnswerID)
	require.NoError(t, err)
	assert.Equal(t, q.Id, bound.QueryID)
	assert.Equal(t, past.Text, bound.Text)
	assert.Equal(t, AutoResolverID, bound.AuthorID)
	assert.False(t, h.index.Contains(bound.Id), "auto-bound copies are not indexed")

	requireInvariant(t, h)
}

func TestSubmitQuery_SuggestPolicy(t *testing.T) {
	cfg := DefaultConfig(testDim)
	cfg.Policy = AutoResolveSuggest
	h := newHarness(t, time.Hour, WithConfig(cfg))

	past := h.seedAnswer(t, "how do I reset my password?", "Go to settings > security > reset", []float32{1, 0, 0})
	h.embed.WithVector("reset my password", []float32{1, 0, 0})

	q, match, err := h.engine.SubmitQuery(context.Background(), "reset my password", "caller-2", lobby)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, past.Id, match.AnswerID)
	assert.Equal(t, core.StatusPending, q.Status)
	assert.Zero(t, q.AnswerID)
}

func TestSubmitQuery_BelowThreshold(t *testing.T) {
	h := newHarness(t, time.Hour)

	past := h.seedAnswer(t, "where do I park?", "Behind the building", []float32{1, 0, 0})
	h.embed.WithVector("is there a bus stop nearby", []float32{0.5, 0.8660254, 0})

	q, match, err := h.engine.SubmitQuery(context.Background(), "is there a bus stop nearby", "caller-3", lobby)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, past.Id, match.AnswerID)
	assert.InDelta(t, 0.5, match.Score, 1e-3)
	assert.Equal(t, core.StatusPending, q.Status)
}

func TestSubmitQuery_EmbedderDown(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.embed.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("embedding service unavailable")
	}

	q, match, err := h.engine.SubmitQuery(context.Background(), "are you open on sunday", "caller", lobby)
	require.NoError(t, err, "the query is admitted even without a suggestion")
	assert.Nil(t, match)
	assert.Equal(t, core.StatusPending, q.Status)

	stored, err := h.queries.GetQuery(context.Background(), q.Id)
	require.NoError(t, err)
	assert.Equal(t, q.Id, stored.Id)
}

func TestSubmitAnswer(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()

	q, _, err := h.engine.SubmitQuery(ctx, "Do you take walk-ins?", "caller", lobby)
	require.NoError(t, err)

	h.clock.Advance(10 * time.Minute)
	a, err := h.engine.SubmitAnswer(ctx, q.Id, "supervisor-7", "Yes, until 4pm")
	require.NoError(t, err)
	assert.Equal(t, q.Id, a.QueryID)
	assert.Len(t, a.Embedding, testDim)
	assert.True(t, h.index.Contains(a.Id))

	got, err := h.engine.GetQuery(ctx, q.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusResolved, got.Status)
	assert.Equal(t, a.Id, got.AnswerID)
	assert.Equal(t, "supervisor-7", got.ResolvedBy)
	assert.True(t, testStart.Add(10*time.Minute).Equal(got.LastResponseAt))

	stored, err := h.engine.GetAnswer(ctx, a.Id)
	require.NoError(t, err)
	assert.Equal(t, "Yes, until 4pm", stored.Text)
	assert.Equal(t, q.Id, stored.QueryID)
}

func TestSubmitAnswer_Errors(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()
	q, _, err := h.engine.SubmitQuery(ctx, "body", "caller", lobby)
	require.NoError(t, err)

	t.Run("empty text", func(t *testing.T) {
		_, err := h.engine.SubmitAnswer(ctx, q.Id, "sup", "")
		assert.ErrorIs(t, err, core.ErrInvalidArgument)
	})

	t.Run("unknown query", func(t *testing.T) {
		_, err := h.engine.SubmitAnswer(ctx, 12345, "sup", "text")
		assert.ErrorIs(t, err, storage.ErrQueryNotFound)
	})

	t.Run("wrong embedding size", func(t *testing.T) {
		h.embed.WithVector("short vector", []float32{1, 0})
		_, err := h.engine.SubmitAnswer(ctx, q.Id, "sup", "short vector")
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)

		all, err := h.answers.ListAnswers(ctx)
		require.NoError(t, err)
		assert.Empty(t, all, "nothing is written for a bad embedding")
	})

	t.Run("second answer", func(t *testing.T) {
		_, err := h.engine.SubmitAnswer(ctx, q.Id, "sup", "first")
		require.NoError(t, err)
		_, err = h.engine.SubmitAnswer(ctx, q.Id, "sup", "second")
		assert.ErrorIs(t, err, core.ErrAlreadyResolved)
	})
}

func TestSubmitAnswer_Concurrent(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()
	q, _, err := h.engine.SubmitQuery(ctx, "What is the wifi password?", "caller", lobby)
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.engine.SubmitAnswer(ctx, q.Id, fmt.Sprintf("sup-%d", i), fmt.Sprintf("answer %d", i))
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, core.ErrAlreadyResolved)
	}
	assert.Equal(t, 1, successes)

	all, err := h.answers.ListAnswers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "losing answers are rolled back")
	assert.Equal(t, 1, h.index.Len())

	got, err := h.queries.GetQuery(ctx, q.Id)
	require.NoError(t, err)
	assert.Equal(t, all[0].Id, got.AnswerID)
	requireInvariant(t, h)
}

// failingLedger fails every BindAnswer with bindErr.
type failingLedger struct {
	storage.QueryLedger
	bindErr error
}

func (f *failingLedger) BindAnswer(ctx context.Context, queryID, answerID core.ID, resolver string) (*core.Query, error) {
	return nil, f.bindErr
}

// undeletableAnswers fails every DeleteAnswer.
type undeletableAnswers struct {
	storage.AnswerStore
}

func (u *undeletableAnswers) DeleteAnswer(ctx context.Context, id core.ID) error {
	return storage.ErrStorageUnavailable
}

func TestSubmitAnswer_RollbackWhenBindFails(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()
	q, err := h.queries.CreateQuery(ctx, "body", "caller", lobby)
	require.NoError(t, err)

	bindErr := fmt.Errorf("%w: disk full", storage.ErrStorageUnavailable)
	engine := h.build(t, &failingLedger{QueryLedger: h.queries, bindErr: bindErr}, h.answers)

	_, err = engine.SubmitAnswer(ctx, q.Id, "sup", "text")
	assert.ErrorIs(t, err, storage.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, ErrOrphanedAnswer)

	all, err := h.answers.ListAnswers(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Zero(t, h.index.Len())

	got, err := h.queries.GetQuery(ctx, q.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, got.Status)
}

func TestSubmitAnswer_OrphanAndReconcile(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()
	q, err := h.queries.CreateQuery(ctx, "body", "caller", lobby)
	require.NoError(t, err)

	bindErr := errors.New("ledger offline")
	broken := h.build(t, &failingLedger{QueryLedger: h.queries, bindErr: bindErr}, &undeletableAnswers{AnswerStore: h.answers})

	_, err = broken.SubmitAnswer(ctx, q.Id, "sup", "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOrphanedAnswer)
	assert.ErrorIs(t, err, bindErr)
	var orphan *OrphanedAnswerError
	require.ErrorAs(t, err, &orphan)
	assert.Equal(t, q.Id, orphan.QueryID)
	assert.NotZero(t, orphan.AnswerID)
	assert.False(t, h.index.Contains(orphan.AnswerID))

	// Within the grace period the orphan is left alone
	removed, err := h.engine.ReconcileOrphans(ctx, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, removed)

	h.clock.Advance(2 * time.Minute)
	removed, err = h.engine.ReconcileOrphans(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []core.ID{orphan.AnswerID}, removed)

	_, err = h.answers.GetAnswer(ctx, orphan.AnswerID)
	assert.ErrorIs(t, err, storage.ErrAnswerNotFound)

	// The query can still be answered normally
	a, err := h.engine.SubmitAnswer(ctx, q.Id, "sup", "text")
	require.NoError(t, err)
	removed, err = h.engine.ReconcileOrphans(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, removed, "bound answers are kept")
	_, err = h.answers.GetAnswer(ctx, a.Id)
	assert.NoError(t, err)
}

func TestExpiryThenLateAnswer(t *testing.T) {
	h := newHarness(t, 60*time.Second)
	ctx := context.Background()

	q, _, err := h.engine.SubmitQuery(ctx, "reset my password", "caller", lobby)
	require.NoError(t, err)
	assert.True(t, testStart.Add(60*time.Second).Equal(q.Deadline))

	h.clock.Advance(59 * time.Second)
	got, err := h.engine.GetQuery(ctx, q.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, got.Status)

	h.clock.Advance(2 * time.Second)
	got, err = h.engine.GetQuery(ctx, q.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusUnresolved, got.Status)

	a, err := h.engine.SubmitAnswer(ctx, q.Id, "supervisor", "Go to settings > security > reset")
	require.NoError(t, err)

	got, err = h.engine.GetQuery(ctx, q.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusResolved, got.Status)
	assert.Equal(t, a.Id, got.AnswerID)
	requireInvariant(t, h)
}

func TestExpiry_DeadlineIsInclusive(t *testing.T) {
	h := newHarness(t, time.Minute)
	ctx := context.Background()

	q, _, err := h.engine.SubmitQuery(ctx, "body", "caller", lobby)
	require.NoError(t, err)

	h.clock.Set(q.Deadline)
	got, err := h.engine.GetQuery(ctx, q.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusUnresolved, got.Status)
}

func TestListQueries_LazyExpiry(t *testing.T) {
	h := newHarness(t, time.Minute)
	ctx := context.Background()

	old, _, err := h.engine.SubmitQuery(ctx, "old", "caller", lobby)
	require.NoError(t, err)
	h.clock.Advance(2 * time.Minute)
	fresh, _, err := h.engine.SubmitQuery(ctx, "fresh", "caller", lobby)
	require.NoError(t, err)

	pending, err := h.engine.ListQueries(ctx, core.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, fresh.Id, pending[0].Id)

	unresolved, err := h.engine.ListQueries(ctx, core.StatusUnresolved)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, old.Id, unresolved[0].Id)

	all, err := h.engine.ListQueries(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, fresh.Id, all[0].Id, "newest first")

	_, err = h.engine.ListQueries(ctx, "archived")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestSemanticSearch(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()

	a := h.seedAnswer(t, "hours?", "We open at 9am", []float32{0, 1, 0})
	h.seedAnswer(t, "parking?", "Behind the building", []float32{1, 0, 0})

	results, err := h.engine.SemanticSearch(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, a.Id, results[0].AnswerID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)

	_, err = h.engine.SemanticSearch(ctx, []float32{0, 1, 0}, -1)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = h.engine.SemanticSearch(ctx, []float32{0, 1}, 1)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	h.embed.WithVector("when do you open", []float32{0, 1, 0})
	byText, err := h.engine.SearchText(ctx, "when do you open", 2)
	require.NoError(t, err)
	require.Len(t, byText, 2)
	assert.Equal(t, a.Id, byText[0].AnswerID)
}

func TestRebuildIndex(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()

	h.seedAnswer(t, "q1", "first", []float32{1, 0, 0})
	h.seedAnswer(t, "q2", "second", []float32{0, 1, 0})
	h.embed.WithVector("close to first", []float32{1, 0, 0})
	q, _, err := h.engine.SubmitQuery(ctx, "close to first", "caller", lobby)
	require.NoError(t, err)
	require.Equal(t, core.StatusResolved, q.Status)

	h.index.Clear()
	n, err := h.engine.RebuildIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "auto-bound copy is not indexed")
	assert.Equal(t, 2, h.index.Len())
	assert.False(t, h.index.Contains(q.AnswerID))
}
