package openai

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/poiesic/frontdesk/ai"
	"github.com/poiesic/frontdesk/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService stands in for the remote embedding API.
type fakeService struct {
	vectors [][]float32
	err     error
}

func (f *fakeService) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return f.vectors, f.err
}

func (f *fakeService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors[0], nil
}

func newTestEmbedder(svc *fakeService, dim int) *Embedder {
	return &Embedder{embedder: svc, dimensions: dim, logger: slog.Default()}
}

func TestNewEmbedder_InvalidConfig(t *testing.T) {
	_, err := NewEmbedder(&ai.Config{})
	assert.Error(t, err)
}

func TestEmbedder_EmbedText(t *testing.T) {
	ctx := context.Background()

	t.Run("matching size", func(t *testing.T) {
		e := newTestEmbedder(&fakeService{vectors: [][]float32{{1, 2, 3}}}, 3)
		v, err := e.EmbedText(ctx, "hello")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2, 3}, v)
	})

	t.Run("wrong size", func(t *testing.T) {
		e := newTestEmbedder(&fakeService{vectors: [][]float32{{1, 2}}}, 3)
		_, err := e.EmbedText(ctx, "hello")
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	})

	t.Run("no vectors", func(t *testing.T) {
		e := newTestEmbedder(&fakeService{}, 3)
		_, err := e.EmbedText(ctx, "hello")
		assert.Error(t, err)
	})

	t.Run("service error", func(t *testing.T) {
		boom := errors.New("unavailable")
		e := newTestEmbedder(&fakeService{err: boom}, 3)
		_, err := e.EmbedText(ctx, "hello")
		assert.ErrorIs(t, err, boom)
	})
}

func TestEmbedder_EmbedTexts(t *testing.T) {
	ctx := context.Background()

	t.Run("matching size", func(t *testing.T) {
		e := newTestEmbedder(&fakeService{vectors: [][]float32{{1, 0}, {0, 1}}}, 2)
		vs, err := e.EmbedTexts(ctx, []string{"a", "b"})
		require.NoError(t, err)
		assert.Len(t, vs, 2)
	})

	t.Run("one vector has the wrong size", func(t *testing.T) {
		e := newTestEmbedder(&fakeService{vectors: [][]float32{{1, 0}, {0, 1, 0}}}, 2)
		_, err := e.EmbedTexts(ctx, []string{"a", "b"})
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
		assert.Contains(t, err.Error(), "vector 1")
	})

	t.Run("count mismatch", func(t *testing.T) {
		e := newTestEmbedder(&fakeService{vectors: [][]float32{{1, 0}}}, 2)
		_, err := e.EmbedTexts(ctx, []string{"a", "b"})
		assert.Error(t, err)
	})
}
