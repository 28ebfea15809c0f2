package retriever

import "time"

// walkGated implements spec.md §4.3.3's graph_walking: from each seed at
// path_score 1.0, expand along incident relationships (either direction)
// up to maxDepth, keeping a step only when the next entity's embedding is
// similar enough to the query (cos > 0.5), decaying score by similarity and
// a 10%-per-depth penalty. The max path_score per id is kept.
func (r *Retriever) walkGated(seedIDs []string, queryEmbedding []float32, maxDepth int) []candidate {
	best := make(map[string]float64)
	type frontierEntry struct {
		id    string
		score float64
		depth int
	}
	var frontier []frontierEntry
	for _, id := range seedIDs {
		frontier = append(frontier, frontierEntry{id: id, score: 1.0, depth: 0})
	}

	asOf := time.Now().UnixMicro()
	visited := make(map[string]bool)
	for len(frontier) > 0 && frontier[0].depth < maxDepth {
		var next []frontierEntry
		for _, f := range frontier {
			if visited[f.id] {
				continue
			}
			visited[f.id] = true
			rels, err := r.store.ListRelationshipsForEntityLive(f.id, asOf)
			if err != nil {
				continue
			}
			depth := f.depth + 1
			for _, rel := range rels {
				nextID := rel.ToID
				if nextID == f.id {
					nextID = rel.FromID
				}
				nextEntity, err := r.store.GetEntityLive(nextID, asOf)
				if err != nil || nextEntity == nil {
					continue
				}
				sim := cosineSimilarity(queryEmbedding, nextEntity.ContentEmbedding)
				if sim <= 0.5 {
					continue
				}
				pathScore := f.score * sim * (1 - 0.1*float64(depth))
				if pathScore > best[nextID] {
					best[nextID] = pathScore
				}
				next = append(next, frontierEntry{id: nextID, score: pathScore, depth: depth})
			}
		}
		frontier = next
	}

	return bestToCandidates(best, SourceGraph)
}

// expandUngated implements graph_rag: the same relationship expansion
// without the similarity gate; expanded nodes are re-scored by vector
// similarity to the query rather than filtered during the walk.
func (r *Retriever) expandUngated(seedIDs []string, queryEmbedding []float32, maxDepth int) []candidate {
	best := make(map[string]float64)
	asOf := time.Now().UnixMicro()
	frontier := append([]string(nil), seedIDs...)
	visited := make(map[string]bool)

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			if visited[id] {
				continue
			}
			visited[id] = true
			rels, err := r.store.ListRelationshipsForEntityLive(id, asOf)
			if err != nil {
				continue
			}
			for _, rel := range rels {
				nextID := rel.ToID
				if nextID == id {
					nextID = rel.FromID
				}
				nextEntity, err := r.store.GetEntityLive(nextID, asOf)
				if err != nil || nextEntity == nil {
					continue
				}
				sim := cosineSimilarity(queryEmbedding, nextEntity.ContentEmbedding)
				if sim > best[nextID] {
					best[nextID] = sim
				}
				next = append(next, nextID)
			}
		}
		frontier = next
	}

	return bestToCandidates(best, SourceGraph)
}

func bestToCandidates(best map[string]float64, src Source) []candidate {
	type kv struct {
		id    string
		score float64
	}
	ordered := make([]kv, 0, len(best))
	for id, score := range best {
		ordered = append(ordered, kv{id, score})
	}
	// Simple insertion sort is fine: graph expansions are bounded by
	// max_depth and fan-out, never large enough to need sort.Slice's
	// overhead to matter, but correctness is what's being grounded here.
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].score > ordered[j-1].score; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	out := make([]candidate, len(ordered))
	for i, kv := range ordered {
		out[i] = candidate{id: kv.id, rank: i + 1, score: kv.score, src: src}
	}
	return out
}
