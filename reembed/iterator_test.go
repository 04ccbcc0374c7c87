package reembed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/frontdesk/core"
	"github.com/poiesic/frontdesk/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDB struct {
	queries *badger.QueryRepository
	answers *badger.AnswerRepository
	clock   *core.ManualClock
}

func setupTestDB(t *testing.T) *testDB {
	t.Helper()
	clock := core.NewManualClock(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	queries, answers, backend, err := badger.NewMemoryRepositories(clock, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() {
		answers.Close()
		queries.Close()
		backend.Close()
	})
	return &testDB{queries: queries, answers: answers, clock: clock}
}

// addAnswers stores n answers with a stale embedding, one second apart.
func (db *testDB) addAnswers(t *testing.T, n int) []*core.Answer {
	t.Helper()
	ctx := context.Background()
	stale := func(context.Context, string) ([]float32, error) {
		return []float32{0, 0, 1}, nil
	}
	var out []*core.Answer
	for i := 0; i < n; i++ {
		q, err := db.queries.CreateQuery(ctx, fmt.Sprintf("question %d", i), "caller", core.QueryContext{RoomName: "r", JobID: "j"})
		require.NoError(t, err)
		a, err := db.answers.CreateAnswer(ctx, q.Id, "sup", fmt.Sprintf("answer %d", i), stale)
		require.NoError(t, err)
		out = append(out, a)
		db.clock.Advance(time.Second)
	}
	return out
}

func TestAnswerIterator_Basic(t *testing.T) {
	db := setupTestDB(t)
	added := db.addAnswers(t, 3)

	it := NewAnswerIterator(db.answers, 10)
	all, err := it.Load(context.Background())
	require.NoError(t, err)
	var seen []core.ID
	err = it.ForEach(context.Background(), all, func(batch []*core.Answer) error {
		for _, a := range batch {
			seen = append(seen, a.Id)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []core.ID{added[0].Id, added[1].Id, added[2].Id}, seen)
}

func TestAnswerIterator_Batches(t *testing.T) {
	db := setupTestDB(t)
	db.addAnswers(t, 7)

	it := NewAnswerIterator(db.answers, 3)
	all, err := it.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 7)

	var sizes []int
	err = it.ForEach(context.Background(), all, func(batch []*core.Answer) error {
		sizes = append(sizes, len(batch))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 1}, sizes)
}

func TestAnswerIterator_LoadCanceled(t *testing.T) {
	db := setupTestDB(t)
	db.addAnswers(t, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewAnswerIterator(db.answers, 1).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnswerIterator_Empty(t *testing.T) {
	db := setupTestDB(t)

	it := NewAnswerIterator(db.answers, 0)
	all, err := it.Load(context.Background())
	require.NoError(t, err)

	called := false
	err = it.ForEach(context.Background(), all, func([]*core.Answer) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestAnswerIterator_StopsOnError(t *testing.T) {
	db := setupTestDB(t)
	all := db.addAnswers(t, 4)

	boom := fmt.Errorf("stop")
	calls := 0
	err := NewAnswerIterator(db.answers, 1).ForEach(context.Background(), all, func([]*core.Answer) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestAnswerIterator_ContextCanceled(t *testing.T) {
	db := setupTestDB(t)
	all := db.addAnswers(t, 4)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := NewAnswerIterator(db.answers, 1).ForEach(ctx, all, func([]*core.Answer) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
