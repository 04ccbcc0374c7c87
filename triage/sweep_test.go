package triage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/frontdesk/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepExpired(t *testing.T) {
	h := newHarness(t, time.Minute)
	ctx := context.Background()
	h.embed.WithVector("done", []float32{1, 0, 0}).WithVector("four", []float32{0, 0, 1})

	overdue1, _, err := h.engine.SubmitQuery(ctx, "one", "caller", lobby)
	require.NoError(t, err)
	overdue2, _, err := h.engine.SubmitQuery(ctx, "two", "caller", lobby)
	require.NoError(t, err)
	answered, _, err := h.engine.SubmitQuery(ctx, "three", "caller", lobby)
	require.NoError(t, err)
	_, err = h.engine.SubmitAnswer(ctx, answered.Id, "sup", "done")
	require.NoError(t, err)

	h.clock.Advance(30 * time.Second)
	fresh, _, err := h.engine.SubmitQuery(ctx, "four", "caller", lobby)
	require.NoError(t, err)

	h.clock.Advance(45 * time.Second)
	n, err := h.engine.SweepExpired(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []core.ID{overdue1.Id, overdue2.Id} {
		q, err := h.queries.GetQuery(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, core.StatusUnresolved, q.Status)
	}
	q, err := h.queries.GetQuery(ctx, answered.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusResolved, q.Status)
	q, err = h.queries.GetQuery(ctx, fresh.Id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, q.Status)

	// Nothing left to expire
	n, err = h.engine.SweepExpired(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	requireInvariant(t, h)
}

func TestSweepExpired_UsesGivenTime(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()

	q, _, err := h.engine.SubmitQuery(ctx, "body", "caller", lobby)
	require.NoError(t, err)

	n, err := h.engine.SweepExpired(ctx, q.Deadline.Add(-time.Nanosecond))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = h.engine.SweepExpired(ctx, q.Deadline)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSweepExpired_RacingSubmitAnswer(t *testing.T) {
	h := newHarness(t, time.Minute)
	ctx := context.Background()
	h.embed.WithVector("racing", []float32{1, 0, 0}).WithVector("answer", []float32{0, 1, 0})

	for i := 0; i < 25; i++ {
		q, _, err := h.engine.SubmitQuery(ctx, "racing", "caller", lobby)
		require.NoError(t, err)
		h.clock.Advance(2 * time.Minute)

		var wg sync.WaitGroup
		var answerErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, answerErr = h.engine.SubmitAnswer(ctx, q.Id, "sup", "answer")
		}()
		go func() {
			defer wg.Done()
			_, err := h.engine.SweepExpired(ctx, h.clock.Now())
			assert.NoError(t, err)
		}()
		wg.Wait()

		// Unresolved queries accept answers, so the answer always lands and
		// the sweep can never leave the query unresolved afterwards.
		require.NoError(t, answerErr)
		got, err := h.queries.GetQuery(ctx, q.Id)
		require.NoError(t, err)
		assert.Equal(t, core.StatusResolved, got.Status)
		assert.NotZero(t, got.AnswerID)
	}
	requireInvariant(t, h)
}

func TestSweeper_Run(t *testing.T) {
	h := newHarness(t, time.Minute)
	ctx := context.Background()

	q, _, err := h.engine.SubmitQuery(ctx, "body", "caller", lobby)
	require.NoError(t, err)
	h.clock.Advance(5 * time.Minute)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	sweeper := NewSweeper(h.engine, 10*time.Millisecond)
	go func() { done <- sweeper.Run(runCtx) }()

	assert.Eventually(t, func() bool {
		got, err := h.queries.GetQuery(ctx, q.Id)
		return err == nil && got.Status == core.StatusUnresolved
	}, 2*time.Second, 10*time.Millisecond)

	// Queries that become overdue later are picked up on a later tick
	later, _, err := h.engine.SubmitQuery(ctx, "later", "caller", lobby)
	require.NoError(t, err)
	h.clock.Advance(5 * time.Minute)
	assert.Eventually(t, func() bool {
		got, err := h.queries.GetQuery(ctx, later.Id)
		return err == nil && got.Status == core.StatusUnresolved
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
