package embed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbedReturnsZeroVectorForEmptyText(t *testing.T) {
	e := New(func(ctx context.Context, text string) ([]float32, error) {
		t.Fatal("EmbedFunc should not be called for empty text")
		return nil, nil
	}, 4, nil)

	got := e.Embed(context.Background(), "")
	require.Equal(t, []float32{0, 0, 0, 0}, got)
}

func TestEmbedNormalizesAndCaches(t *testing.T) {
	var calls int32
	e := New(func(ctx context.Context, text string) ([]float32, error) {
		atomic.AddInt32(&calls, 1)
		return []float32{3, 4}, nil // norm 5
	}, 2, nil)

	v1 := e.Embed(context.Background(), "hello")
	require.InDelta(t, 0.6, v1[0], 1e-6)
	require.InDelta(t, 0.8, v1[1], 1e-6)

	v2 := e.Embed(context.Background(), "hello")
	require.Equal(t, v1, v2)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls), "second call should hit the cache")
}

func TestEmbedFallsBackToZeroVectorOnError(t *testing.T) {
	e := New(func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("model unavailable")
	}, 3, nil)

	got := e.Embed(context.Background(), "anything")
	require.Equal(t, []float32{0, 0, 0}, got)
}
