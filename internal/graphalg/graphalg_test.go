package graphalg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoryd/internal/store"
)

func newTestAnalytics(t *testing.T) (*Analytics, *store.SQLiteStore) {
	t.Helper()
	st, err := store.New()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st), st
}

func putEntity(t *testing.T, st *store.SQLiteStore, id, typ string) {
	t.Helper()
	ts := time.Now().UnixMicro()
	require.NoError(t, st.PutEntity(&store.Entity{
		ID: id, Name: id, Type: typ,
		Validity: store.NowMicros(ts), CreatedAt: ts, UpdatedAt: ts,
	}))
}

func putRelationship(t *testing.T, st *store.SQLiteStore, from, to string, strength float64) {
	t.Helper()
	ts := time.Now().UnixMicro()
	require.NoError(t, st.PutRelationship(&store.Relationship{
		FromID: from, ToID: to, RelationType: "related_to", Strength: strength,
		Validity: store.NowMicros(ts), CreatedAt: ts,
	}))
}

func TestPageRankOnEmptyGraphReturnsEmpty(t *testing.T) {
	a, _ := newTestAnalytics(t)
	ranks, err := a.PageRank()
	require.NoError(t, err)
	require.Empty(t, ranks)
}

func TestPageRankFavorsHighInDegreeNode(t *testing.T) {
	a, st := newTestAnalytics(t)
	putEntity(t, st, "hub", "Note")
	putEntity(t, st, "a", "Note")
	putEntity(t, st, "b", "Note")
	putRelationship(t, st, "a", "hub", 1)
	putRelationship(t, st, "b", "hub", 1)

	ranks, err := a.PageRank()
	require.NoError(t, err)
	require.Greater(t, ranks["hub"], ranks["a"])

	persisted, err := st.GetEntityRanks()
	require.NoError(t, err)
	require.Equal(t, ranks["hub"], persisted["hub"])
}

func TestCommunitiesGroupsConnectedNodes(t *testing.T) {
	a, st := newTestAnalytics(t)
	putEntity(t, st, "a", "Note")
	putEntity(t, st, "b", "Note")
	putEntity(t, st, "c", "Note")
	putRelationship(t, st, "a", "b", 1)

	assignments, err := a.Communities()
	require.NoError(t, err)
	require.Equal(t, assignments["a"], assignments["b"])
	require.NotEqual(t, assignments["a"], assignments["c"])
}

func TestShortestPathFindsWeightedRoute(t *testing.T) {
	a, st := newTestAnalytics(t)
	putEntity(t, st, "a", "Note")
	putEntity(t, st, "b", "Note")
	putEntity(t, st, "c", "Note")
	putRelationship(t, st, "a", "b", 1)
	putRelationship(t, st, "b", "c", 1)

	ids, _, ok, err := a.ShortestPath("a", "c")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestShortestPathMissingNodeReturnsNotOK(t *testing.T) {
	a, _ := newTestAnalytics(t)
	_, _, ok, err := a.ShortestPath("nowhere", "also-nowhere")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBetweennessHighestForMiddleNode(t *testing.T) {
	a, st := newTestAnalytics(t)
	putEntity(t, st, "a", "Note")
	putEntity(t, st, "mid", "Note")
	putEntity(t, st, "c", "Note")
	putRelationship(t, st, "a", "mid", 1)
	putRelationship(t, st, "mid", "c", 1)

	scores, err := a.Betweenness()
	require.NoError(t, err)
	require.Greater(t, scores["mid"], scores["a"])
}

func TestHITSComputesHubsAndAuthorities(t *testing.T) {
	a, st := newTestAnalytics(t)
	putEntity(t, st, "a", "Note")
	putEntity(t, st, "b", "Note")
	putRelationship(t, st, "a", "b", 1)

	hubs, authorities, err := a.HITS()
	require.NoError(t, err)
	require.Contains(t, hubs, "a")
	require.Contains(t, authorities, "b")
}

func TestConnectedComponentsSeparatesIslands(t *testing.T) {
	a, st := newTestAnalytics(t)
	putEntity(t, st, "a", "Note")
	putEntity(t, st, "b", "Note")
	putEntity(t, st, "c", "Note")
	putRelationship(t, st, "a", "b", 1)

	components, err := a.ConnectedComponents()
	require.NoError(t, err)
	require.Len(t, components, 2)
}

func TestBridgeDiscoveryFindsCrossCommunityEntity(t *testing.T) {
	a, st := newTestAnalytics(t)
	putEntity(t, st, "a", "Note")
	putEntity(t, st, "bridge", "Note")
	putEntity(t, st, "c", "Note")
	putRelationship(t, st, "a", "bridge", 1)
	putRelationship(t, st, "bridge", "c", 1)

	assignments := map[string]int{"a": 0, "bridge": 0, "c": 1}
	bridges, err := a.BridgeDiscovery(assignments)
	require.NoError(t, err)
	require.NotEmpty(t, bridges)
	require.Equal(t, "bridge", bridges[0].EntityID)
}

func TestCommunitySizesSortsDescendingWithExamples(t *testing.T) {
	assignments := map[string]int{"a": 0, "b": 0, "c": 1}
	names := map[string]string{"a": "A", "b": "B", "c": "C"}
	groups := CommunitySizes(assignments, names)
	require.Len(t, groups, 2)
	require.Equal(t, 2, groups[0].Size)
}
