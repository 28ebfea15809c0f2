package inference

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoryd/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.SQLiteStore) {
	t.Helper()
	st, err := store.New()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ann := store.NewANNIndexSet()
	return New(st, ann, nil), st
}

func putEntity(t *testing.T, st *store.SQLiteStore, ann *store.ANNIndexSet, id, name, typ string, vec []float32) *store.Entity {
	t.Helper()
	ts := time.Now().UnixMicro()
	e := &store.Entity{
		ID: id, Name: name, Type: typ, ContentEmbedding: vec,
		Validity: store.NowMicros(ts), CreatedAt: ts, UpdatedAt: ts,
	}
	require.NoError(t, st.PutEntity(e))
	if ann != nil {
		ann.IndexEntity(e)
	}
	return e
}

func putObservation(t *testing.T, st *store.SQLiteStore, id, entityID, text string) {
	t.Helper()
	ts := time.Now().UnixMicro()
	require.NoError(t, st.PutObservation(&store.Observation{
		ID: id, EntityID: entityID, Text: text,
		Validity: store.NowMicros(ts), CreatedAt: ts, UpdatedAt: ts,
	}))
}

func putRelationship(t *testing.T, st *store.SQLiteStore, from, to, relType string, strength float64) {
	t.Helper()
	ts := time.Now().UnixMicro()
	require.NoError(t, st.PutRelationship(&store.Relationship{
		FromID: from, ToID: to, RelationType: relType, Strength: strength,
		Validity: store.NowMicros(ts), CreatedAt: ts,
	}))
}

func TestCoOccurrenceFindsMentionedEntity(t *testing.T) {
	e, st := newTestEngine(t)
	putEntity(t, st, e.ann, "alice", "Alice Zhang", "Person", nil)
	bob := putEntity(t, st, e.ann, "bob", "Bob O'Brien", "Person", nil)
	putObservation(t, st, "o1", "alice", "Had lunch with Bob O'Brien yesterday.")

	rels := e.coOccurrence(&store.Entity{ID: "alice", Name: "Alice Zhang", Type: "Person"}, time.Now().UnixMicro())
	require.Len(t, rels, 1)
	require.Equal(t, bob.ID, rels[0].ToID)
	require.Equal(t, "related_to", rels[0].RelationType)
	require.InDelta(t, 0.7, rels[0].Confidence, 1e-9)
}

func TestVectorProximityExcludesSelfAndFarNeighbors(t *testing.T) {
	e, st := newTestEngine(t)
	near := putEntity(t, st, e.ann, "near", "Near", "Note", []float32{1, 0, 0})
	putEntity(t, st, e.ann, "far", "Far", "Note", []float32{0, 1, 0})
	self := putEntity(t, st, e.ann, "self", "Self", "Note", []float32{1, 0, 0})

	rels := e.vectorProximity(self, time.Now().UnixMicro())
	var toIDs []string
	for _, r := range rels {
		toIDs = append(toIDs, r.ToID)
	}
	require.Contains(t, toIDs, near.ID)
	require.NotContains(t, toIDs, self.ID)
}

func TestTransitiveExcludesDirectNeighbors(t *testing.T) {
	e, st := newTestEngine(t)
	putEntity(t, st, nil, "a", "A", "Project", nil)
	putEntity(t, st, nil, "b", "B", "Project", nil)
	putEntity(t, st, nil, "c", "C", "Project", nil)
	putRelationship(t, st, "a", "b", "depends_on", 1)
	putRelationship(t, st, "b", "c", "depends_on", 1)

	asOf := time.Now().UnixMicro()
	rels := e.transitive(&store.Entity{ID: "a"}, asOf)
	require.Len(t, rels, 1)
	require.Equal(t, "c", rels[0].ToID)
	require.Equal(t, "potentially_related", rels[0].RelationType)
}

func TestTransitiveExpertiseFollowsTypedChain(t *testing.T) {
	e, st := newTestEngine(t)
	putRelationship(t, st, "person1", "proj1", "works_on", 1)
	putRelationship(t, st, "proj1", "go-lang", "uses_tech", 1)

	asOf := time.Now().UnixMicro()
	rels := e.transitiveExpertise(&store.Entity{ID: "person1", Type: "Person"}, asOf)
	require.Len(t, rels, 1)
	require.Equal(t, "go-lang", rels[0].ToID)
	require.Equal(t, "expert_in", rels[0].RelationType)
}

func TestTransitiveExpertiseSkipsNonPersons(t *testing.T) {
	e, _ := newTestEngine(t)
	rels := e.transitiveExpertise(&store.Entity{ID: "proj1", Type: "Project"}, time.Now().UnixMicro())
	require.Empty(t, rels)
}

func TestValidateRuleRejectsMissingRelatedPredicate(t *testing.T) {
	err := ValidateRule(`other("a", "b").`)
	require.Error(t, err)
}

func TestRunCustomRuleDerivesRelatedFacts(t *testing.T) {
	e, st := newTestEngine(t)
	putEntity(t, st, nil, "x1", "X One", "Project", nil)
	putEntity(t, st, nil, "x2", "X Two", "Project", nil)
	putRelationship(t, st, "x1", "x2", "depends_on", 1)

	rule := &store.InferenceRule{
		ID: "r1", Name: "same-project-deps",
		Datalog: `related(X, Y, "z", 0.8, "z") :- relationship(X, Y, "depends_on").`,
	}

	out, err := e.runCustomRule(context.Background(), rule, "x1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "x2", out[0].ToID)
}

func TestInferAllExcludesSelfRelations(t *testing.T) {
	e, st := newTestEngine(t)
	putEntity(t, st, e.ann, "solo", "Solo", "Note", []float32{1, 0, 0})

	out, err := e.InferAll(context.Background(), "solo")
	require.NoError(t, err)
	for _, rel := range out {
		require.NotEqual(t, rel.FromID, rel.ToID)
	}
}

func TestHNSWClustersGroupsNearEntities(t *testing.T) {
	e, st := newTestEngine(t)
	putEntity(t, st, e.ann, "n1", "N1", "Note", []float32{1, 0, 0})
	putEntity(t, st, e.ann, "n2", "N2", "Note", []float32{0.9, 0.1, 0})
	putEntity(t, st, e.ann, "n3", "N3", "Note", []float32{0, 1, 0})

	clusters, err := e.HNSWClusters("Note")
	require.NoError(t, err)
	require.Len(t, clusters, 3)
}

func TestSemanticWalkMarksPathType(t *testing.T) {
	e, st := newTestEngine(t)
	putEntity(t, st, e.ann, "start", "Start", "Note", []float32{1, 0, 0})
	putEntity(t, st, e.ann, "next", "Next", "Note", []float32{1, 0, 0})
	putRelationship(t, st, "start", "next", "related_to", 0.9)

	hits, err := e.SemanticWalk("start", 1, 0.7)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	for _, h := range hits {
		require.NotEqual(t, "start", h.EntityID)
		require.NotEmpty(t, h.PathType)
	}
}
