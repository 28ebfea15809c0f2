package inference

import (
	"math"

	"github.com/kittclouds/memoryd/internal/store"
)

// vectorProximity emits similar_to for the top-5 nearest neighbors of
// entity's content embedding at cosine distance < 0.2, excluding itself.
func (e *Engine) vectorProximity(entity *store.Entity, asOf int64) []store.InferredRelation {
	if len(entity.ContentEmbedding) == 0 {
		return nil
	}
	neighborIDs := e.ann.SearchEntityContent(entity.ContentEmbedding, 6, entity.Type)

	var out []store.InferredRelation
	for _, id := range neighborIDs {
		if id == entity.ID {
			continue
		}
		other, err := e.store.GetEntityLive(id, asOf)
		if err != nil || other == nil || len(other.ContentEmbedding) == 0 {
			continue
		}
		dist := cosineDistance(entity.ContentEmbedding, other.ContentEmbedding)
		if dist >= 0.2 {
			continue
		}
		out = append(out, store.InferredRelation{
			FromID: entity.ID, ToID: other.ID, RelationType: "similar_to",
			Confidence: (1 - dist) * 0.9, Reason: "near neighbor in content embedding space",
		})
	}
	return out
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// transitive emits potentially_related for every entity reachable from
// entity in exactly two relationship hops that isn't already a direct
// neighbor.
func (e *Engine) transitive(entity *store.Entity, asOf int64) []store.InferredRelation {
	direct := make(map[string]bool)
	firstHop, err := e.store.ListRelationshipsForEntityLive(entity.ID, asOf)
	if err != nil {
		return nil
	}
	var hopIDs []string
	for _, rel := range firstHop {
		other := otherEnd(rel, entity.ID)
		direct[other] = true
		hopIDs = append(hopIDs, other)
	}
	direct[entity.ID] = true

	seen := make(map[string]bool)
	var out []store.InferredRelation
	for _, mid := range hopIDs {
		secondHop, err := e.store.ListRelationshipsForEntityLive(mid, asOf)
		if err != nil {
			continue
		}
		for _, rel := range secondHop {
			target := otherEnd(rel, mid)
			if direct[target] || seen[target] {
				continue
			}
			seen[target] = true
			out = append(out, store.InferredRelation{
				FromID: entity.ID, ToID: target, RelationType: "potentially_related",
				Confidence: 0.5, Reason: "reachable via a two-hop relationship path",
			})
		}
	}
	return out
}

// transitiveExpertise implements the typed Person-works_on->Project-uses_tech->Tech
// chain, emitting expert_in for each tech reached, deduped to the max
// confidence seen across all project paths.
func (e *Engine) transitiveExpertise(entity *store.Entity, asOf int64) []store.InferredRelation {
	if entity.Type != "Person" {
		return nil
	}
	rels, err := e.store.ListRelationshipsForEntityLive(entity.ID, asOf)
	if err != nil {
		return nil
	}

	best := make(map[string]float64)
	for _, rel := range rels {
		if rel.RelationType != "works_on" || rel.FromID != entity.ID {
			continue
		}
		projectRels, err := e.store.ListRelationshipsForEntityLive(rel.ToID, asOf)
		if err != nil {
			continue
		}
		for _, pr := range projectRels {
			if pr.RelationType != "uses_tech" || pr.FromID != rel.ToID {
				continue
			}
			if pr.Strength > best[pr.ToID] {
				best[pr.ToID] = pr.Strength
			}
		}
	}

	out := make([]store.InferredRelation, 0, len(best))
	for techID := range best {
		out = append(out, store.InferredRelation{
			FromID: entity.ID, ToID: techID, RelationType: "expert_in",
			Confidence: 0.7, Reason: "works on a project that uses this technology",
		})
	}
	return out
}

func otherEnd(rel *store.Relationship, id string) string {
	if rel.FromID == id {
		return rel.ToID
	}
	return rel.FromID
}
