package memoryd

import (
	"context"

	"github.com/kittclouds/memoryd/internal/evolution"
	"github.com/kittclouds/memoryd/internal/retriever"
	"github.com/kittclouds/memoryd/internal/store"
)

// Search runs query_memory's search action: cache-probed, RRF-fused
// candidate retrieval over the live graph.
func (m *Memory) Search(ctx context.Context, req retriever.Request) (*retriever.Response, error) {
	resp, err := m.retriever.Search(clampContext(ctx), req)
	if err != nil {
		return nil, storeErr(err, "search failed")
	}
	return resp, nil
}

// AdvancedSearch runs query_memory's advanced_search action: the same
// pipeline with explicit Filters/GraphConstraints applied. VectorParams is
// accepted but not read; ANN searches use the index's fixed ef_search.
func (m *Memory) AdvancedSearch(ctx context.Context, req retriever.Request) (*retriever.Response, error) {
	resp, err := m.retriever.AdvancedSearch(clampContext(ctx), req)
	if err != nil {
		return nil, storeErr(err, "advanced_search failed")
	}
	return resp, nil
}

// GraphRAG runs query_memory's graph_rag action: fused retrieval expanded
// up to MaxDepth hops (default 1) through the live relationship graph.
func (m *Memory) GraphRAG(ctx context.Context, req retriever.Request) (*retriever.Response, error) {
	resp, err := m.retriever.GraphRAG(clampContext(ctx), req)
	if err != nil {
		return nil, storeErr(err, "graph_rag failed")
	}
	return resp, nil
}

// GraphWalking runs query_memory's graph_walking action: a gated walk
// from StartEntityID (or, when it is empty, from the top dense-content
// matches) that only steps to entities whose similarity to the query
// exceeds 0.5, decaying the path score with depth (spec.md §4.3.3).
func (m *Memory) GraphWalking(ctx context.Context, req retriever.Request) (*retriever.Response, error) {
	resp, err := m.retriever.GraphWalking(clampContext(ctx), req)
	if err != nil {
		return nil, storeErr(err, "graph_walking failed")
	}
	return resp, nil
}

// ContextResult bundles an entity with its live observations and live
// relationships in either direction, the minimal "working context" for an
// entity.
type ContextResult struct {
	Entity        *store.Entity
	Observations  []*store.Observation
	Relationships []*store.Relationship
}

// Context implements query_memory's context action.
func (m *Memory) Context(id string) (*ContextResult, error) {
	now := nowMicros()
	e, err := m.store.GetEntityLive(id, now)
	if err != nil {
		return nil, storeErr(err, "context: entity lookup failed")
	}
	if e == nil {
		return nil, notFound("context: entity %q not found", id)
	}
	obs, err := m.store.ListObservationsForEntityLive(id, now)
	if err != nil {
		return nil, storeErr(err, "context: observation lookup failed")
	}
	rels, err := m.store.ListRelationshipsForEntityLive(id, now)
	if err != nil {
		return nil, storeErr(err, "context: relationship lookup failed")
	}
	return &ContextResult{Entity: e, Observations: obs, Relationships: rels}, nil
}

// EntityDetails implements query_memory's entity_details action: like
// Context, but additionally flags temporal status conflicts for the
// entity (spec.md §4.7).
type EntityDetailsResult struct {
	ContextResult
	Conflict *struct {
		LatestActiveMicros int64
		LatestDiscMicros   int64
	}
}

func (m *Memory) EntityDetails(id string) (*EntityDetailsResult, error) {
	ctx, err := m.Context(id)
	if err != nil {
		return nil, err
	}
	conflicts, err := evolution.DetectConflicts(m.store, m.vocab, []string{id}, nowMicros())
	if err != nil {
		return nil, storeErr(err, "entity_details: conflict detection failed")
	}
	result := &EntityDetailsResult{ContextResult: *ctx}
	if len(conflicts) > 0 {
		result.Conflict = &struct {
			LatestActiveMicros int64
			LatestDiscMicros   int64
		}{conflicts[0].LatestActiveMicros, conflicts[0].LatestDiscMicros}
	}
	return result, nil
}

// HistoryResult is query_memory's history action payload: every
// bitemporal stamp ever recorded for an entity, its observations, and its
// outgoing relationships.
type HistoryResult struct {
	EntityVersions       []*store.Entity
	ObservationVersions  map[string][]*store.Observation
	RelationshipVersions []*store.Relationship
}

// History implements query_memory's history action.
func (m *Memory) History(entityID string) (*HistoryResult, error) {
	entityVersions, err := m.store.ListEntityHistory(entityID)
	if err != nil {
		return nil, storeErr(err, "history: entity history failed")
	}
	if len(entityVersions) == 0 {
		return nil, notFound("history: entity %q not found", entityID)
	}

	now := nowMicros()
	obs, err := m.store.ListObservationsForEntityLive(entityID, now)
	if err != nil {
		return nil, storeErr(err, "history: observation lookup failed")
	}
	obsVersions := make(map[string][]*store.Observation, len(obs))
	for _, o := range obs {
		versions, err := m.store.ListObservationHistory(o.ID)
		if err != nil {
			return nil, storeErr(err, "history: observation history failed")
		}
		obsVersions[o.ID] = versions
	}

	relVersions, err := m.store.ListRelationshipHistory(entityID, "", 0, 0)
	if err != nil {
		return nil, storeErr(err, "history: relationship history failed")
	}

	return &HistoryResult{
		EntityVersions:       entityVersions,
		ObservationVersions:  obsVersions,
		RelationshipVersions: relVersions,
	}, nil
}
