package retriever

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoryd/internal/embed"
	"github.com/kittclouds/memoryd/internal/store"
)

func fakeEmbed(vec []float32) embed.EmbedFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return vec, nil
	}
}

func newTestRetriever(t *testing.T) *Retriever {
	t.Helper()
	st, err := store.New()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ann := store.NewANNIndexSet()
	fts, err := store.NewFTSIndexSet()
	require.NoError(t, err)
	t.Cleanup(func() { fts.Close() })

	emb := embed.New(fakeEmbed([]float32{1, 0, 0}), 3, nil)

	ts := time.Now().UnixMicro()
	e := &store.Entity{
		ID: "e1", Name: "Ada Lovelace", Type: "Person",
		ContentEmbedding: []float32{1, 0, 0},
		Validity:         store.NowMicros(ts), CreatedAt: ts, UpdatedAt: ts,
	}
	require.NoError(t, st.PutEntity(e))
	ann.IndexEntity(e)
	require.NoError(t, fts.IndexEntityName(e.ID, e.Name))

	return New(st, ann, fts, emb, nil)
}

func TestSearchReturnsIndexedEntity(t *testing.T) {
	r := newTestRetriever(t)

	resp, err := r.Search(context.Background(), Request{Query: "Ada Lovelace", Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	require.Equal(t, "e1", resp.Results[0].ID)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	r := newTestRetriever(t)
	_, err := r.Search(context.Background(), Request{Query: ""})
	require.Error(t, err)
}

func TestSearchAppliesEntityTypeFilter(t *testing.T) {
	r := newTestRetriever(t)
	resp, err := r.Search(context.Background(), Request{
		Query: "Ada Lovelace", Limit: 5,
		Filters: Filters{EntityTypes: []string{"Project"}},
	})
	require.NoError(t, err)
	require.Empty(t, resp.Results)
}

func TestSearchAppliesPlainEntityTypesFilter(t *testing.T) {
	r := newTestRetriever(t)
	resp, err := r.Search(context.Background(), Request{
		Query: "Ada Lovelace", Limit: 5, EntityTypes: []string{"Project"},
	})
	require.NoError(t, err)
	require.Empty(t, resp.Results)
}

func TestSearchAppliesTimeRangeHours(t *testing.T) {
	r := newTestRetriever(t)

	stale := time.Now().Add(-10 * time.Hour).UnixMicro()
	old := &store.Entity{
		ID: "e2", Name: "Ada Lovelace Archive", Type: "Person",
		ContentEmbedding: []float32{1, 0, 0},
		Validity:         store.NowMicros(stale), CreatedAt: stale, UpdatedAt: stale,
	}
	require.NoError(t, r.store.PutEntity(old))
	r.ann.IndexEntity(old)
	require.NoError(t, r.fts.IndexEntityName(old.ID, old.Name))

	resp, err := r.Search(context.Background(), Request{
		Query: "Ada Lovelace", Limit: 5, TimeRangeHours: 1,
	})
	require.NoError(t, err)
	var ids []string
	for _, res := range resp.Results {
		ids = append(ids, res.ID)
	}
	require.Contains(t, ids, "e1")
	require.NotContains(t, ids, "e2", "entity created 10 hours ago should be dropped by a 1-hour window")
}

func TestSearchCachesSecondCall(t *testing.T) {
	r := newTestRetriever(t)
	ctx := context.Background()
	req := Request{Query: "Ada Lovelace", Limit: 5}

	first, err := r.Search(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, first.Results)

	second, err := r.Search(ctx, req)
	require.NoError(t, err)
	require.Equal(t, first.Results, second.Results)
}
