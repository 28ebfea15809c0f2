package retriever

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoryd/internal/store"
)

func TestFuseAccumulatesWeightedReciprocalRank(t *testing.T) {
	bySource := map[string][]candidate{
		"dense-content": {{id: "a", rank: 1, src: SourceVector}},
		"fts-entity":    {{id: "a", rank: 1, src: SourceKeyword}},
	}
	fused := fuse(bySource)
	require.Contains(t, fused, "a")
	want := sourceWeights["dense-content"]/float64(rrfK+1) + sourceWeights["fts-entity"]/float64(rrfK+1)
	require.InDelta(t, want, fused["a"].score, 1e-9)
}

func TestProvenanceSourceCollapsesToMixed(t *testing.T) {
	e := &fusedEntry{sources: map[Source]struct{}{SourceVector: {}, SourceKeyword: {}}}
	require.Equal(t, SourceMixed, provenanceSource(e))
}

func TestApplyPriorsBoostsGlobalUserProfile(t *testing.T) {
	entries := map[string]*fusedEntry{
		store.GlobalUserProfileID: {id: store.GlobalUserProfileID, score: 1.0},
		"other":                   {id: "other", score: 1.0},
	}
	applyPriors(entries, map[string]float64{})

	require.InDelta(t, 1.5, entries[store.GlobalUserProfileID].score, 1e-9)
	require.InDelta(t, 1.0, entries["other"].score, 1e-9)
	require.Greater(t, entries[store.GlobalUserProfileID].score, entries["other"].score)
}

func TestApplyPriorsMultipliesByPageRank(t *testing.T) {
	entries := map[string]*fusedEntry{"a": {id: "a", score: 2.0}}
	applyPriors(entries, map[string]float64{"a": 0.5})
	require.InDelta(t, 3.0, entries["a"].score, 1e-9)
}
