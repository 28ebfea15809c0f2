package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func nowMicros() int64 { return time.Now().UnixMicro() }

func TestEntityLivenessAcrossStamps(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	t0 := nowMicros()
	e := &Entity{
		ID: "e1", Name: "Ada Lovelace", Type: "Person",
		Metadata: Metadata{"status": "active"},
		Validity: NowMicros(t0), CreatedAt: t0, UpdatedAt: t0,
	}
	require.NoError(t, s.PutEntity(e))

	got, err := s.GetEntityLive("e1", t0+1)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Ada Lovelace", got.Name)

	// Before the first stamp, nothing is live.
	none, err := s.GetEntityLive("e1", t0-1)
	require.NoError(t, err)
	require.Nil(t, none)

	// Retract at t1: insert a new stamp with Asserted=false.
	t1 := t0 + 1000
	require.NoError(t, s.PutEntity(&Entity{
		ID: "e1", Name: "Ada Lovelace", Type: "Person", Metadata: e.Metadata,
		Validity: Validity{TimestampMicros: t1, Asserted: false}, CreatedAt: t0, UpdatedAt: t1,
	}))

	liveAtT0 := mustGetLive(t, s, t0+1)
	require.NotNil(t, liveAtT0)
	liveAtT1 := mustGetLive(t, s, t1+1)
	require.Nil(t, liveAtT1)
}

func mustGetLive(t *testing.T, s *SQLiteStore, asOf int64) *Entity {
	t.Helper()
	e, err := s.GetEntityLive("e1", asOf)
	require.NoError(t, err)
	return e
}

func TestEntityByNameIsCaseInsensitive(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	ts := nowMicros()
	require.NoError(t, s.PutEntity(&Entity{
		ID: "e1", Name: "Project Atlas", Type: "Project",
		Validity: NowMicros(ts), CreatedAt: ts, UpdatedAt: ts,
	}))

	got, err := s.GetEntityByNameLive("project atlas", ts+1)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "e1", got.ID)
}

func TestObservationRoundTripsEmbedding(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	ts := nowMicros()
	emb := []float32{0.1, -0.2, 0.3, 0.4}
	require.NoError(t, s.PutObservation(&Observation{
		ID: "o1", EntityID: "e1", Text: "likes tea",
		Embedding: emb, Validity: NowMicros(ts), CreatedAt: ts, UpdatedAt: ts,
	}))

	got, err := s.GetObservationLive("o1", ts+1)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, emb, got.Embedding)
}

func TestRelationshipRejectsNothingAtStoreLayer(t *testing.T) {
	// Self-relationship rejection is a façade-level invariant (spec.md §4),
	// not enforced by the store, which persists whatever it is given.
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	ts := nowMicros()
	require.NoError(t, s.PutRelationship(&Relationship{
		FromID: "e1", ToID: "e2", RelationType: "knows",
		Strength: 0.8, Validity: NowMicros(ts), CreatedAt: ts,
	}))

	rels, err := s.ListRelationshipsForEntityLive("e1", ts+1)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	require.Equal(t, "knows", rels[0].RelationType)
}

func TestSearchCacheUpsertAndTTLSweep(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	now := time.Now().Unix()
	require.NoError(t, s.PutSearchCacheEntry(&SearchCache{
		QueryHash: "h1", QueryText: "tea preferences",
		Results: []byte(`[]`), Options: []byte(`{}`), CreatedAtSecond: now - 3600,
	}))
	require.NoError(t, s.PutSearchCacheEntry(&SearchCache{
		QueryHash: "h2", QueryText: "coffee preferences",
		Results: []byte(`[]`), Options: []byte(`{}`), CreatedAtSecond: now,
	}))

	removed, err := s.DeleteSearchCacheOlderThan(now - 60)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	remaining, err := s.ListSearchCacheEntries()
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, "h2", remaining[0].QueryHash)
}

func TestEntityRanksRoundTrip(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.PutEntityRanks(map[string]float64{"e1": 0.42, "e2": 0.08}))
	ranks, err := s.GetEntityRanks()
	require.NoError(t, err)
	require.InDelta(t, 0.42, ranks["e1"], 1e-9)
	require.InDelta(t, 0.08, ranks["e2"], 1e-9)
}

func TestANNIndexSetSearchesByType(t *testing.T) {
	idx := NewANNIndexSet()
	idx.IndexEntity(&Entity{ID: "e1", Type: "Person", ContentEmbedding: []float32{1, 0, 0}})
	idx.IndexEntity(&Entity{ID: "e2", Type: "Project", ContentEmbedding: []float32{0, 1, 0}})

	got := idx.SearchEntityContent([]float32{1, 0, 0}, 5, "Person")
	require.Contains(t, got, "e1")
	require.NotContains(t, got, "e2")
}

func TestLSHIndexFindsNearDuplicateCandidates(t *testing.T) {
	idx := NewLSHIndex()
	idx.Add("o1", "the quick brown fox jumps over the lazy dog")
	idx.Add("o2", "the quick brown fox jumps over the lazy cat")
	idx.Add("o3", "completely unrelated text about spacecraft telemetry")

	candidates := idx.Candidates("the quick brown fox jumps over the lazy dog")
	require.Contains(t, candidates, "o1")
}

func TestFTSIndexSetRanksMatches(t *testing.T) {
	fts, err := NewFTSIndexSet()
	require.NoError(t, err)
	defer fts.Close()

	require.NoError(t, fts.IndexEntityName("e1", "Ada Lovelace"))
	require.NoError(t, fts.IndexEntityName("e2", "Charles Babbage"))

	hits, err := fts.SearchEntityName("lovelace", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, "e1", hits[0].ID)
}
