package janitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/memoryd/internal/idgen"
	"github.com/kittclouds/memoryd/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.New()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func putAgedEntityWithObservations(t *testing.T, st *store.SQLiteStore, entityID string, age time.Duration, count int) {
	t.Helper()
	now := time.Now()
	ts := now.Add(-age).UnixMicro()
	require.NoError(t, st.PutEntity(&store.Entity{
		ID: entityID, Name: entityID, Type: "Note",
		Validity: store.NowMicros(ts), CreatedAt: ts, UpdatedAt: ts,
	}))
	for i := 0; i < count; i++ {
		require.NoError(t, st.PutObservation(&store.Observation{
			ID: idgen.New(), EntityID: entityID, Text: "fragment about " + entityID,
			Validity: store.NowMicros(ts), CreatedAt: ts, UpdatedAt: ts,
		}))
	}
}

func TestDryRunReportsCandidatesWithoutMutating(t *testing.T) {
	st := newTestStore(t)
	putAgedEntityWithObservations(t, st, "stale1", 60*24*time.Hour, 3)

	j := New(st, nil, nil)
	result, err := j.Run(context.Background(), Request{
		OlderThanDays: 30, MaxObservations: 10, MinEntityDegree: 1, Confirm: false,
	})
	require.NoError(t, err)
	require.True(t, result.DryRun)
	require.Contains(t, result.CandidateGroups, "stale1")
	require.Len(t, result.CandidateGroups["stale1"], 3)

	asOf := time.Now().UnixMicro()
	obs, err := st.ListObservationsForEntityLive("stale1", asOf)
	require.NoError(t, err)
	require.Len(t, obs, 3)
}

func TestConfirmRunReplacesObservationsWithSummary(t *testing.T) {
	st := newTestStore(t)
	putAgedEntityWithObservations(t, st, "stale2", 60*24*time.Hour, 2)

	j := New(st, nil, nil)
	result, err := j.Run(context.Background(), Request{
		OlderThanDays: 30, MaxObservations: 10, MinEntityDegree: 1, Confirm: true,
	})
	require.NoError(t, err)
	require.False(t, result.DryRun)
	require.Len(t, result.Outcomes, 1)
	require.True(t, result.Outcomes[0].SummaryCreated)

	asOf := time.Now().UnixMicro()
	obs, err := st.ListObservationsForEntityLive("stale2", asOf)
	require.NoError(t, err)
	require.Empty(t, obs)
}

func TestHighDegreeEntityIsSkipped(t *testing.T) {
	st := newTestStore(t)
	putAgedEntityWithObservations(t, st, "connected", 60*24*time.Hour, 2)
	putAgedEntityWithObservations(t, st, "neighbor", 60*24*time.Hour, 1)
	ts := time.Now().UnixMicro()
	require.NoError(t, st.PutRelationship(&store.Relationship{
		FromID: "connected", ToID: "neighbor", RelationType: "related_to", Strength: 1,
		Validity: store.NowMicros(ts), CreatedAt: ts,
	}))

	j := New(st, nil, nil)
	result, err := j.Run(context.Background(), Request{
		OlderThanDays: 30, MaxObservations: 10, MinEntityDegree: 1, Confirm: false,
	})
	require.NoError(t, err)
	require.NotContains(t, result.CandidateGroups, "connected")
}

func TestSummarizeFallsBackToConcatenationOnError(t *testing.T) {
	st := newTestStore(t)
	failingSummarize := func(ctx context.Context, prompt string) (string, error) {
		return "", context.DeadlineExceeded
	}
	j := New(st, failingSummarize, nil)
	out := j.summarizeFragments(context.Background(), "entity", []string{"a", "b"})
	require.Equal(t, "a b", out)
}
