package retriever

import "github.com/kittclouds/memoryd/internal/store"

const rrfK = 60

// sourceWeights are the default per-source RRF contributions, summing to 1,
// per spec.md §4.3.2 step 3.
var sourceWeights = map[string]float64{
	"dense-content":     0.3,
	"dense-name":        0.2,
	"fts-entity":        0.2,
	"fts-observation":   0.15,
	"dense-observation": 0.1,
	"graph":             0.05,
}

// fusedEntry accumulates one candidate id's reciprocal-rank score across
// every source that surfaced it, plus the set of sources for provenance.
type fusedEntry struct {
	id      string
	score   float64
	sources map[Source]struct{}
}

// fuse applies Reciprocal Rank Fusion: for each source's ranked candidate
// list, each id at rank r contributes weight/(rrfK+r) to its running total.
func fuse(bySource map[string][]candidate) map[string]*fusedEntry {
	out := make(map[string]*fusedEntry)
	for sourceName, cands := range bySource {
		w, ok := sourceWeights[sourceName]
		if !ok {
			w = 0
		}
		for _, c := range cands {
			e, ok := out[c.id]
			if !ok {
				e = &fusedEntry{id: c.id, sources: make(map[Source]struct{})}
				out[c.id] = e
			}
			e.score += w / float64(rrfK+c.rank)
			e.sources[c.src] = struct{}{}
		}
	}
	return out
}

// provenanceSource collapses a fusedEntry's source set into a single tag:
// the lone source if only one contributed, else "mixed".
func provenanceSource(e *fusedEntry) Source {
	if len(e.sources) == 1 {
		for s := range e.sources {
			return s
		}
	}
	return SourceMixed
}

// applyPriors multiplies the fused score by (1 + pagerank) and, for the
// reserved global-profile entity, by an additional 1.5 boost.
func applyPriors(entries map[string]*fusedEntry, ranks map[string]float64) {
	for id, e := range entries {
		pr := ranks[id] // zero value when absent, per spec.md §4.3.2 step 4
		e.score *= 1 + pr
		if id == store.GlobalUserProfileID {
			e.score *= 1.5
		}
	}
}
