package search

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/poiesic/frontdesk/ai/mock"
	"github.com/poiesic/frontdesk/core"
	"github.com/poiesic/frontdesk/storage/badger"
	"github.com/poiesic/frontdesk/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	queries *badger.QueryRepository
	answers *badger.AnswerRepository
	index   *vector.Index
	embed   *mock.MockEmbedder
}

func setup(t *testing.T) *fixture {
	t.Helper()
	clock := core.NewManualClock(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	queries, answers, backend, err := badger.NewMemoryRepositories(clock, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() {
		answers.Close()
		queries.Close()
		backend.Close()
	})
	index, err := vector.NewIndex(3)
	require.NoError(t, err)
	return &fixture{queries: queries, answers: answers, index: index, embed: mock.NewMockEmbedder(3)}
}

// addAnswer stores an answer with the given embedding and indexes it.
func (f *fixture) addAnswer(t *testing.T, body, text string, v []float32) *core.Answer {
	t.Helper()
	ctx := context.Background()
	q, err := f.queries.CreateQuery(ctx, body, "caller", core.QueryContext{RoomName: "room", JobID: "job"})
	require.NoError(t, err)
	a, err := f.answers.CreateAnswer(ctx, q.Id, "supervisor", text, func(context.Context, string) ([]float32, error) {
		return v, nil
	})
	require.NoError(t, err)
	require.NoError(t, f.index.Insert(a.Id, a.Embedding))
	return a
}

func TestNewSearcher(t *testing.T) {
	f := setup(t)

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(f.answers, f.index, f.embed)
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(f.answers, f.index, f.embed, WithLogger(nil))
		require.NoError(t, err)
		assert.Equal(t, slog.Default(), searcher.logger)
	})

	t.Run("nil answer store", func(t *testing.T) {
		_, err := NewSearcher(nil, f.index, f.embed)
		assert.Equal(t, ErrAnswerStoreRequired, err)
	})

	t.Run("nil index", func(t *testing.T) {
		_, err := NewSearcher(f.answers, nil, f.embed)
		assert.Equal(t, ErrVectorIndexRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewSearcher(f.answers, f.index, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})
}

func TestFindSimilar_EmptyIndex(t *testing.T) {
	f := setup(t)
	searcher, err := NewSearcher(f.answers, f.index, f.embed)
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindSimilar_Hydrates(t *testing.T) {
	f := setup(t)
	hours := f.addAnswer(t, "When do you open?", "We open at 9am", []float32{1, 0, 0})
	parking := f.addAnswer(t, "Where do I park?", "Behind the building", []float32{0, 1, 0})

	f.embed.WithVector("what are your hours", []float32{0.9, 0.1, 0})
	searcher, err := NewSearcher(f.answers, f.index, f.embed)
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "what are your hours", 3)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, hours.Id, results[0].AnswerID)
	assert.Equal(t, hours.QueryID, results[0].QueryID)
	assert.Equal(t, "We open at 9am", results[0].Text)
	assert.True(t, hours.CreatedAt.Equal(results[0].CreatedAt))
	assert.Equal(t, parking.Id, results[1].AnswerID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestFindSimilar_TopK(t *testing.T) {
	f := setup(t)
	for i := 0; i < 5; i++ {
		f.addAnswer(t, "q", "a", []float32{1, float32(i), 0})
	}
	searcher, err := NewSearcher(f.answers, f.index, f.embed)
	require.NoError(t, err)

	results, err := searcher.FindSimilarVector(context.Background(), []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	_, err = searcher.FindSimilarVector(context.Background(), []float32{1, 0, 0}, 0)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestFindSimilar_SkipsStaleEntries(t *testing.T) {
	f := setup(t)
	kept := f.addAnswer(t, "q1", "kept", []float32{1, 0, 0})
	gone := f.addAnswer(t, "q2", "gone", []float32{1, 0.1, 0})
	require.NoError(t, f.answers.DeleteAnswer(context.Background(), gone.Id))

	searcher, err := NewSearcher(f.answers, f.index, f.embed)
	require.NoError(t, err)

	results, err := searcher.FindSimilarVector(context.Background(), []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, kept.Id, results[0].AnswerID)
}

func TestFindSimilar_EmbedderError(t *testing.T) {
	f := setup(t)
	boom := errors.New("embedding service unavailable")
	f.embed.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, boom
	}
	searcher, err := NewSearcher(f.answers, f.index, f.embed)
	require.NoError(t, err)

	_, err = searcher.FindSimilar(context.Background(), "hours", 3)
	assert.ErrorIs(t, err, boom)
}

type recordingMonitor struct {
	query     string
	embedded  bool
	matches   []core.SimilarityMatch
	retrieved int
	results   []core.MatchResult
}

func (m *recordingMonitor) Start(query string)                         { m.query = query }
func (m *recordingMonitor) AfterEmbedding(_ []float32)                 { m.embedded = true }
func (m *recordingMonitor) AfterIndexSearch(ms []core.SimilarityMatch) { m.matches = ms }
func (m *recordingMonitor) AfterAnswerRetrieval(as []*core.Answer)     { m.retrieved = len(as) }
func (m *recordingMonitor) Finish(rs []core.MatchResult)               { m.results = rs }

func TestFindSimilarWithMonitor(t *testing.T) {
	f := setup(t)
	f.addAnswer(t, "q", "a", []float32{0, 0, 1})
	f.embed.WithVector("probe", []float32{0, 0, 1})
	searcher, err := NewSearcher(f.answers, f.index, f.embed)
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	results, err := searcher.FindSimilarWithMonitor(context.Background(), "probe", 3, monitor)
	require.NoError(t, err)

	assert.Equal(t, "probe", monitor.query)
	assert.True(t, monitor.embedded)
	assert.Len(t, monitor.matches, 1)
	assert.Equal(t, 1, monitor.retrieved)
	assert.Equal(t, results, monitor.results)
}
