package inference

const semanticWalkBranching = 5

// PathType classifies how an entity was reached during a SemanticWalk.
type PathType string

const (
	PathExplicit PathType = "explicit"
	PathSemantic PathType = "semantic"
	PathMixed    PathType = "mixed"
)

// WalkHit is one row of a SemanticWalk result.
type WalkHit struct {
	EntityID   string
	Distance   int
	PathScore  float64
	PathType   PathType
}

// SemanticWalk implements spec.md §4.4's mixed explicit/semantic walk: each
// step either follows a live outgoing relationship (decaying by its
// strength) or an ANN semantic jump (top-5 neighbors at cosine similarity >=
// minSimilarity, decaying by sim*0.8). path_type tracks whether every step
// taken to reach an entity was uniformly explicit or semantic, else "mixed".
// Entities are aggregated by id keeping the max path_score seen.
func (e *Engine) SemanticWalk(startID string, maxDepth int, minSimilarity float64) ([]WalkHit, error) {
	if minSimilarity <= 0 {
		minSimilarity = 0.7
	}
	asOf := nowMicros()

	start, err := e.store.GetEntityLive(startID, asOf)
	if err != nil || start == nil {
		return nil, err
	}

	type state struct {
		id        string
		score     float64
		depth     int
		pathType  PathType
	}
	best := make(map[string]WalkHit)
	frontier := []state{{id: startID, score: 1.0, depth: 0, pathType: ""}}
	visited := make(map[string]bool)

	for len(frontier) > 0 {
		var next []state
		for _, f := range frontier {
			if f.depth >= maxDepth || visited[f.id] {
				continue
			}
			visited[f.id] = true

			entity, err := e.store.GetEntityLive(f.id, asOf)
			if err != nil || entity == nil {
				continue
			}

			rels, _ := e.store.ListRelationshipsForEntityLive(f.id, asOf)
			for _, rel := range rels {
				if rel.FromID != f.id {
					continue
				}
				targetID := otherEnd(rel, f.id)
				if targetID == startID {
					continue
				}
				score := f.score * rel.Strength
				pt := combinePathType(f.pathType, PathExplicit)
				recordWalkHit(best, targetID, f.depth+1, score, pt)
				next = append(next, state{id: targetID, score: score, depth: f.depth + 1, pathType: pt})
			}

			if len(entity.ContentEmbedding) > 0 {
				neighbors := e.ann.SearchEntityContent(entity.ContentEmbedding, semanticWalkBranching+1, entity.Type)
				for _, targetID := range neighbors {
					if targetID == f.id || targetID == startID {
						continue
					}
					target, err := e.store.GetEntityLive(targetID, asOf)
					if err != nil || target == nil || len(target.ContentEmbedding) == 0 {
						continue
					}
					sim := cosineSimilarity(entity.ContentEmbedding, target.ContentEmbedding)
					if sim < minSimilarity {
						continue
					}
					score := f.score * sim * 0.8
					pt := combinePathType(f.pathType, PathSemantic)
					recordWalkHit(best, targetID, f.depth+1, score, pt)
					next = append(next, state{id: targetID, score: score, depth: f.depth + 1, pathType: pt})
				}
			}
		}
		frontier = next
	}

	out := make([]WalkHit, 0, len(best))
	for _, hit := range best {
		out = append(out, hit)
	}
	return out, nil
}

func combinePathType(prior, step PathType) PathType {
	if prior == "" {
		return step
	}
	if prior == step {
		return prior
	}
	return PathMixed
}

func recordWalkHit(best map[string]WalkHit, id string, depth int, score float64, pt PathType) {
	existing, ok := best[id]
	if !ok || score > existing.PathScore {
		best[id] = WalkHit{EntityID: id, Distance: depth, PathScore: score, PathType: pt}
	}
}

func cosineSimilarity(a, b []float32) float64 {
	return 1 - cosineDistance(a, b)
}
