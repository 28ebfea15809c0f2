package retriever

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kittclouds/memoryd/internal/embed"
	"github.com/kittclouds/memoryd/internal/store"
)

const (
	candidateK  = 20
	graphSeedK  = 5
	defaultLimit = 10
)

// Retriever implements search, advanced_search, graph_rag, and
// graph_walking over a Store plus its ANN/FTS sidecars.
type Retriever struct {
	store    *store.SQLiteStore
	ann      *store.ANNIndexSet
	fts      *store.FTSIndexSet
	embedder *embed.Embedder
	logger   *zap.Logger
}

// New builds a Retriever. logger defaults to a no-op logger when nil.
func New(st *store.SQLiteStore, ann *store.ANNIndexSet, fts *store.FTSIndexSet, embedder *embed.Embedder, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{store: st, ann: ann, fts: fts, embedder: embedder, logger: logger}
}

// Search implements spec.md §4.3's plain search action.
func (r *Retriever) Search(ctx context.Context, req Request) (*Response, error) {
	return r.run(ctx, req, false, false)
}

// AdvancedSearch adds filters and graph constraints atop Search.
func (r *Retriever) AdvancedSearch(ctx context.Context, req Request) (*Response, error) {
	return r.run(ctx, req, false, false)
}

// GraphRAG seeds via vectors and expands via relationships up to max_depth,
// re-scoring expanded nodes by vector similarity to the query (no gate).
func (r *Retriever) GraphRAG(ctx context.Context, req Request) (*Response, error) {
	return r.run(ctx, req, true, false)
}

// GraphWalking performs the gated semantic path walk of spec.md §4.3.3.
func (r *Retriever) GraphWalking(ctx context.Context, req Request) (*Response, error) {
	return r.run(ctx, req, true, true)
}

func (r *Retriever) run(ctx context.Context, req Request, expandGraph, gateSimilarity bool) (*Response, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("retriever: empty query")
	}
	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}

	queryEmbedding := r.embedder.Embed(ctx, req.Query)

	if cached, hit := r.cacheProbe(req, queryEmbedding); hit {
		return &Response{Results: cached}, nil
	}

	bySource, anySucceeded := r.generateCandidates(ctx, req, queryEmbedding)
	if !anySucceeded {
		return nil, fmt.Errorf("retriever: all candidate sources failed")
	}

	if expandGraph {
		seedIDs := topEntityIDs(bySource["dense-content"], graphSeedK)
		if gateSimilarity && req.StartEntityID != "" {
			seedIDs = []string{req.StartEntityID}
		}
		maxDepth := req.MaxDepth
		if maxDepth <= 0 {
			maxDepth = 1
		}
		if gateSimilarity {
			bySource["graph"] = r.walkGated(seedIDs, queryEmbedding, maxDepth)
		} else {
			bySource["graph"] = r.expandUngated(seedIDs, queryEmbedding, maxDepth)
		}
	}

	fused := fuse(bySource)

	ranks, _ := r.store.GetEntityRanks()
	applyPriors(fused, ranks)

	asOf := time.Now().UnixMicro()
	results := r.materialize(fused, asOf)
	results = r.postFilter(results, req, asOf)

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].CreatedAt < results[j].CreatedAt
	})
	if len(results) > req.Limit {
		results = results[:req.Limit]
	}

	r.cacheStore(req, queryEmbedding, results)
	return &Response{Results: results}, nil
}

// generateCandidates fans out the five dense/lexical source queries over an
// errgroup.Group (one goroutine each), then joins at a barrier before
// deriving the sixth, graph-seeded source from their results. Each source
// swallows its own error into namedResult.err rather than returning it to
// the group, so one failing source never cancels its siblings.
func (r *Retriever) generateCandidates(ctx context.Context, req Request, queryEmbedding []float32) (map[string][]candidate, bool) {
	type namedResult struct {
		name  string
		cands []candidate
		err   error
	}

	sources := []func() namedResult{
		func() namedResult {
			typ := singleTypeFilter(req.EntityTypes)
			ids := r.ann.SearchEntityContent(queryEmbedding, candidateK, typ)
			return namedResult{name: "dense-content", cands: rankCandidates(ids, SourceVector)}
		},
		func() namedResult {
			ids := r.ann.SearchEntityName(queryEmbedding, candidateK)
			return namedResult{name: "dense-name", cands: rankCandidates(ids, SourceVector)}
		},
		func() namedResult {
			obsIDs := r.ann.SearchObservations(queryEmbedding, candidateK)
			entityIDs := r.mapObservationsToEntities(obsIDs)
			return namedResult{name: "dense-observation", cands: rankCandidates(entityIDs, SourceVector)}
		},
		func() namedResult {
			hits, err := r.fts.SearchEntityName(req.Query, candidateK)
			if err != nil {
				return namedResult{name: "fts-entity", err: err}
			}
			return namedResult{name: "fts-entity", cands: rankHits(hits, SourceKeyword)}
		},
		func() namedResult {
			hits, err := r.fts.SearchObservationText(req.Query, candidateK)
			if err != nil {
				return namedResult{name: "fts-observation", err: err}
			}
			entityIDs := r.mapObservationsToEntities(hitIDs(hits))
			return namedResult{name: "fts-observation", cands: rankCandidates(entityIDs, SourceKeyword)}
		},
	}

	results := make([]namedResult, len(sources))
	g, _ := errgroup.WithContext(ctx)
	for i, fn := range sources {
		i, fn := i, fn
		g.Go(func() error {
			results[i] = fn()
			return nil
		})
	}
	_ = g.Wait() // each source reports failure via namedResult.err, never a Go error

	out := make(map[string][]candidate, len(sources))
	anySucceeded := false
	for _, res := range results {
		if res.err != nil {
			r.logger.Warn("candidate source failed", zap.String("source", res.name), zap.Error(res.err))
			out[res.name] = nil
			continue
		}
		out[res.name] = res.cands
		anySucceeded = true
	}

	// Graph seed (1-hop neighbors of top dense-content entities) always
	// runs, even outside graph_rag/graph_walking.
	seedIDs := topEntityIDs(out["dense-content"], graphSeedK)
	asOf := time.Now().UnixMicro()
	var graphCands []candidate
	rank := 1
	seen := make(map[string]bool)
	for _, id := range seedIDs {
		rels, err := r.store.ListRelationshipsForEntityLive(id, asOf)
		if err != nil {
			continue
		}
		for _, rel := range rels {
			other := rel.ToID
			if other == id {
				other = rel.FromID
			}
			if seen[other] {
				continue
			}
			seen[other] = true
			graphCands = append(graphCands, candidate{id: other, rank: rank, src: SourceGraph})
			rank++
		}
	}
	out["graph"] = graphCands
	if len(graphCands) > 0 {
		anySucceeded = true
	}

	return out, anySucceeded
}

func (r *Retriever) mapObservationsToEntities(obsIDs []string) []string {
	asOf := time.Now().UnixMicro()
	var out []string
	seen := make(map[string]bool)
	for _, id := range obsIDs {
		obs, err := r.store.GetObservationLive(id, asOf)
		if err != nil || obs == nil {
			continue
		}
		if !seen[obs.EntityID] {
			seen[obs.EntityID] = true
			out = append(out, obs.EntityID)
		}
	}
	return out
}

func rankCandidates(ids []string, src Source) []candidate {
	out := make([]candidate, len(ids))
	for i, id := range ids {
		out[i] = candidate{id: id, rank: i + 1, src: src}
	}
	return out
}

func rankHits(hits []store.FTSHit, src Source) []candidate {
	out := make([]candidate, len(hits))
	for i, h := range hits {
		out[i] = candidate{id: h.ID, rank: i + 1, score: h.Score, src: src}
	}
	return out
}

func hitIDs(hits []store.FTSHit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ID
	}
	return out
}

func topEntityIDs(cands []candidate, k int) []string {
	if len(cands) > k {
		cands = cands[:k]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.id
	}
	return out
}

// singleTypeFilter returns the lone entity type in types, or "" when zero
// or multiple types are given (the type-filtered HNSW partitions only cover
// a single filter at a time; multi-type filters fall back to post-filter).
func singleTypeFilter(types []string) string {
	if len(types) == 1 {
		return types[0]
	}
	return ""
}

// materialize resolves fused entries into full result rows.
func (r *Retriever) materialize(entries map[string]*fusedEntry, asOf int64) []Result {
	out := make([]Result, 0, len(entries))
	for id, e := range entries {
		ent, err := r.store.GetEntityLive(id, asOf)
		if err != nil || ent == nil {
			continue
		}
		out = append(out, Result{
			ID:        ent.ID,
			Name:      ent.Name,
			Type:      ent.Type,
			Score:     e.score,
			Source:    provenanceSource(e),
			EntityID:  ent.ID,
			CreatedAt: ent.CreatedAt,
			UpdatedAt: ent.UpdatedAt,
			Metadata:  ent.Metadata,
		})
	}
	return out
}

// postFilter applies spec.md §4.3.2 step 5: drop ids whose entity type is
// not in entity_types (if given, from either the plain or advanced_search
// parameter), whose metadata doesn't match every advanced_search filter
// key, whose creation falls outside time_range_hours (if given), or that
// aren't connected to any graph-constraint target.
func (r *Retriever) postFilter(results []Result, req Request, asOf int64) []Result {
	entityTypes := req.EntityTypes
	if len(req.Filters.EntityTypes) > 0 {
		entityTypes = append(append([]string(nil), entityTypes...), req.Filters.EntityTypes...)
	}

	var cutoff int64
	if req.TimeRangeHours > 0 {
		cutoff = asOf - int64(req.TimeRangeHours)*int64(time.Hour/time.Microsecond)
	}

	out := results[:0]
	for _, res := range results {
		if len(entityTypes) > 0 && !contains(entityTypes, res.Type) {
			continue
		}
		if len(req.Filters.Metadata) > 0 && !res.Metadata.MatchesAll(req.Filters.Metadata) {
			continue
		}
		if req.TimeRangeHours > 0 && res.CreatedAt < cutoff {
			continue
		}
		if len(req.GraphConstraints.TargetEntityIDs) > 0 && !r.connectedToAny(res.ID, req.GraphConstraints) {
			continue
		}
		out = append(out, res)
	}
	return out
}

func (r *Retriever) connectedToAny(id string, gc GraphConstraints) bool {
	asOf := time.Now().UnixMicro()
	rels, err := r.store.ListRelationshipsForEntityLive(id, asOf)
	if err != nil {
		return false
	}
	for _, rel := range rels {
		if len(gc.RequiredRelations) > 0 && !contains(gc.RequiredRelations, rel.RelationType) {
			continue
		}
		other := rel.ToID
		if other == id {
			other = rel.FromID
		}
		if contains(gc.TargetEntityIDs, other) {
			return true
		}
	}
	return false
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
