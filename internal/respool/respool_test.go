package respool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoryd/internal/retriever"
	"github.com/kittclouds/memoryd/internal/store"
)

func TestGetMapReturnsClearedMap(t *testing.T) {
	m := GetMap()
	m["leftover"] = true
	PutMap(m)

	m2 := GetMap()
	require.Empty(t, m2)
	PutMap(m2)
}

func TestGetSliceReturnsZeroLength(t *testing.T) {
	s := GetSlice()
	s = append(s, "a", "b")
	PutSlice(s)

	s2 := GetSlice()
	require.Empty(t, s2)
	PutSlice(s2)
}

func TestFromEntityDropsEmbeddings(t *testing.T) {
	e := &store.Entity{
		ID: "e1", Name: "Alice", Type: "Person",
		ContentEmbedding: []float32{1, 2, 3}, NameEmbedding: []float32{4, 5, 6},
	}
	slim := FromEntity(e)
	require.Equal(t, "e1", slim.ID)
	require.Equal(t, "Alice", slim.Name)
}

func TestFromResultsConvertsEveryRow(t *testing.T) {
	resp := &retriever.Response{Results: []retriever.Result{
		{ID: "a", Name: "A", Source: retriever.SourceVector, Score: 0.9},
		{ID: "b", Name: "B", Source: retriever.SourceKeyword, Score: 0.5},
	}}
	slim := FromResults(resp)
	require.Len(t, slim, 2)
	require.Equal(t, "vector", slim[0].Source)
}
