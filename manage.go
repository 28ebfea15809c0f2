package memoryd

import (
	"context"
	"time"

	"github.com/kittclouds/memoryd/internal/evolution"
	"github.com/kittclouds/memoryd/internal/idgen"
	"github.com/kittclouds/memoryd/internal/janitor"
	"github.com/kittclouds/memoryd/internal/store"
)

// HealthResult is manage_system's health action payload: live counts and the
// number of entities with a current temporal status conflict.
type HealthResult struct {
	EntityCount       int
	ObservationCount  int
	RelationshipCount int
	Conflicts         int
}

// Health runs manage_system's health action.
func (m *Memory) Health() (*HealthResult, error) {
	now := nowMicros()
	entities, err := m.store.CountEntitiesLive(now)
	if err != nil {
		return nil, storeErr(err, "health: entity count failed")
	}
	observations, err := m.store.CountObservationsLive(now)
	if err != nil {
		return nil, storeErr(err, "health: observation count failed")
	}
	relationships, err := m.store.CountRelationshipsLive(now)
	if err != nil {
		return nil, storeErr(err, "health: relationship count failed")
	}

	ids, err := m.store.ListEntitiesLive("", now)
	if err != nil {
		return nil, storeErr(err, "health: entity listing failed")
	}
	entityIDs := make([]string, 0, len(ids))
	for _, e := range ids {
		entityIDs = append(entityIDs, e.ID)
	}
	conflicts, err := m.detectConflicts(entityIDs, now)
	if err != nil {
		return nil, storeErr(err, "health: conflict detection failed")
	}

	return &HealthResult{
		EntityCount: entities, ObservationCount: observations,
		RelationshipCount: relationships, Conflicts: len(conflicts),
	}, nil
}

// SnapshotCreate runs manage_system's snapshot_create action: records the
// current aggregate counts.
func (m *Memory) SnapshotCreate() (*store.MemorySnapshot, error) {
	now := nowMicros()
	entities, err := m.store.CountEntitiesLive(now)
	if err != nil {
		return nil, storeErr(err, "snapshot_create: entity count failed")
	}
	observations, err := m.store.CountObservationsLive(now)
	if err != nil {
		return nil, storeErr(err, "snapshot_create: observation count failed")
	}
	relationships, err := m.store.CountRelationshipsLive(now)
	if err != nil {
		return nil, storeErr(err, "snapshot_create: relationship count failed")
	}

	snap := &store.MemorySnapshot{
		ID: idgen.New(), EntityCount: entities, ObservationCount: observations,
		RelationshipCount: relationships, CreatedAtMilli: time.Now().UnixMilli(),
	}
	if err := m.store.PutMemorySnapshot(snap); err != nil {
		return nil, storeErr(err, "snapshot_create: insert failed")
	}
	return snap, nil
}

// SnapshotList runs manage_system's snapshot_list action.
func (m *Memory) SnapshotList() ([]*store.MemorySnapshot, error) {
	snaps, err := m.store.ListMemorySnapshots()
	if err != nil {
		return nil, storeErr(err, "snapshot_list: lookup failed")
	}
	return snaps, nil
}

// SnapshotDiff is manage_system's snapshot_diff action payload: the
// pairwise count deltas between two recorded snapshots.
type SnapshotDiff struct {
	EntityDelta       int
	ObservationDelta  int
	RelationshipDelta int
}

// SnapshotDiff runs manage_system's snapshot_diff action, comparing
// fromID's counts against toID's.
func (m *Memory) SnapshotDiff(fromID, toID string) (*SnapshotDiff, error) {
	snaps, err := m.store.ListMemorySnapshots()
	if err != nil {
		return nil, storeErr(err, "snapshot_diff: lookup failed")
	}
	var from, to *store.MemorySnapshot
	for _, s := range snaps {
		if s.ID == fromID {
			from = s
		}
		if s.ID == toID {
			to = s
		}
	}
	if from == nil {
		return nil, notFound("snapshot_diff: snapshot %q not found", fromID)
	}
	if to == nil {
		return nil, notFound("snapshot_diff: snapshot %q not found", toID)
	}
	return &SnapshotDiff{
		EntityDelta:       to.EntityCount - from.EntityCount,
		ObservationDelta:  to.ObservationCount - from.ObservationCount,
		RelationshipDelta: to.RelationshipCount - from.RelationshipCount,
	}, nil
}

// Cleanup runs manage_system's cleanup action: the janitor's consolidation
// sweep (spec.md §4.6).
func (m *Memory) Cleanup(ctx context.Context, req janitor.Request) (*janitor.Result, error) {
	result, err := m.janitor.Run(clampContext(ctx), req)
	if err != nil {
		return nil, storeErr(err, "cleanup: janitor run failed")
	}
	return result, nil
}

// Reflect runs manage_system's reflect action: a fresh executive summary
// over an entity's live observations, without consolidating anything.
func (m *Memory) Reflect(ctx context.Context, entityID string) (string, error) {
	ctx = clampContext(ctx)
	now := nowMicros()
	obs, err := m.store.ListObservationsForEntityLive(entityID, now)
	if err != nil {
		return "", storeErr(err, "reflect: observation lookup failed")
	}
	if len(obs) == 0 {
		return "", notFound("reflect: entity %q has no live observations", entityID)
	}
	fragments := make([]string, 0, len(obs))
	for _, o := range obs {
		fragments = append(fragments, o.Text)
	}
	return m.janitor.Summarize(ctx, entityID, fragments), nil
}

// ClearMemory runs manage_system's clear_memory action: wipes every
// record and rebuilds the in-process indexes from scratch. Destructive and
// irreversible, so it requires confirm=true, same as janitor.Request.Confirm
// gates Cleanup's consolidation commit.
func (m *Memory) ClearMemory(confirm bool) error {
	if !confirm {
		return invalidInput("clear_memory: confirm must be true to wipe all records")
	}

	if err := m.store.Clear(); err != nil {
		return storeErr(err, "clear_memory: wipe failed")
	}

	if err := m.fts.Close(); err != nil {
		m.logger.Warn("fts close failed during clear_memory")
	}
	ftsSet, err := store.NewFTSIndexSet()
	if err != nil {
		return storeErr(err, "clear_memory: rebuild fts failed")
	}
	m.fts = ftsSet
	m.ann = store.NewANNIndexSet()
	m.lsh = store.NewLSHIndex()

	return m.ensureGlobalUserProfile()
}

func (m *Memory) detectConflicts(entityIDs []string, asOfMicros int64) ([]evolution.Conflict, error) {
	return evolution.DetectConflicts(m.store, m.vocab, entityIDs, asOfMicros)
}
