package evolution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoryd/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.New()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func putObservationAt(t *testing.T, st *store.SQLiteStore, entityID, text string, ts time.Time) {
	t.Helper()
	micros := ts.UnixMicro()
	require.NoError(t, st.PutEntity(&store.Entity{
		ID: entityID, Name: entityID, Type: "Project",
		Validity: store.NowMicros(micros), CreatedAt: micros, UpdatedAt: micros,
	}))
	require.NoError(t, st.PutObservation(&store.Observation{
		ID: entityID + "-" + text, EntityID: entityID, Text: text,
		Validity: store.NowMicros(micros), CreatedAt: micros, UpdatedAt: micros,
	}))
}

func TestDetectConflictsFlagsSameYearActiveAndDiscontinued(t *testing.T) {
	st := newTestStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	putObservationAt(t, st, "proj1", "this project is active and maintained", base)
	putObservationAt(t, st, "proj1", "status: discontinued as of last week", base.Add(time.Hour))

	conflicts, err := DetectConflicts(st, DefaultVocabulary, []string{"proj1"}, time.Now().UnixMicro())
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.Equal(t, "proj1", conflicts[0].EntityID)
}

func TestDetectConflictsIgnoresDifferentYears(t *testing.T) {
	st := newTestStore(t)
	putObservationAt(t, st, "proj2", "currently active", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	putObservationAt(t, st, "proj2", "later deprecated", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	conflicts, err := DetectConflicts(st, DefaultVocabulary, []string{"proj2"}, time.Now().UnixMicro())
	require.NoError(t, err)
	require.Empty(t, conflicts)
}

func TestDetectConflictsRequiresBothSides(t *testing.T) {
	st := newTestStore(t)
	putObservationAt(t, st, "proj3", "this project is active", time.Now())

	conflicts, err := DetectConflicts(st, DefaultVocabulary, []string{"proj3"}, time.Now().UnixMicro())
	require.NoError(t, err)
	require.Empty(t, conflicts)
}

func TestRelationEvolutionTracksAssertAndRetract(t *testing.T) {
	st := newTestStore(t)
	t0 := time.Now().Add(-2 * time.Hour).UnixMicro()
	t1 := time.Now().Add(-time.Hour).UnixMicro()

	require.NoError(t, st.PutRelationship(&store.Relationship{
		FromID: "a", ToID: "b", RelationType: "works_with", Strength: 1,
		Validity: store.NowMicros(t0), CreatedAt: t0,
	}))
	require.NoError(t, st.PutRelationship(&store.Relationship{
		FromID: "a", ToID: "b", RelationType: "works_with", Strength: 1,
		Validity: store.Validity{TimestampMicros: t1, Asserted: false}, CreatedAt: t0,
	}))

	tl, err := RelationEvolution(st, "a", "", 0, 0)
	require.NoError(t, err)
	require.Len(t, tl.Events, 2)
	require.Equal(t, EventAsserted, tl.Events[0].Kind)
	require.Equal(t, EventRetracted, tl.Events[1].Kind)
	require.Empty(t, tl.Added)
	require.Contains(t, tl.Removed, "b:works_with")
}

func TestRelationEvolutionFiltersByToIDAndWindow(t *testing.T) {
	st := newTestStore(t)
	now := time.Now()
	tsOld := now.Add(-48 * time.Hour).UnixMicro()
	tsRecent := now.Add(-time.Hour).UnixMicro()

	require.NoError(t, st.PutRelationship(&store.Relationship{
		FromID: "a", ToID: "b", RelationType: "related_to", Strength: 1,
		Validity: store.NowMicros(tsOld), CreatedAt: tsOld,
	}))
	require.NoError(t, st.PutRelationship(&store.Relationship{
		FromID: "a", ToID: "c", RelationType: "related_to", Strength: 1,
		Validity: store.NowMicros(tsRecent), CreatedAt: tsRecent,
	}))

	sinceMillis := now.Add(-24 * time.Hour).UnixMilli()
	tl, err := RelationEvolution(st, "a", "c", sinceMillis, 0)
	require.NoError(t, err)
	require.Len(t, tl.Events, 1)
	require.Equal(t, "c", tl.Events[0].ToID)
}
