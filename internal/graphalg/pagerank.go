package graphalg

import "gonum.org/v1/gonum/graph/network"

const (
	pageRankDamping = 0.85
	pageRankTol     = 1e-8
)

// PageRank computes and persists PageRank over the live weighted
// relationship graph. Empty graphs return an empty map without error.
func (a *Analytics) PageRank() (map[string]float64, error) {
	g, ix, err := a.buildWeightedDirected()
	if err != nil {
		return nil, err
	}
	if g.Nodes().Len() == 0 {
		return map[string]float64{}, nil
	}

	ranks := network.PageRank(g, pageRankDamping, pageRankTol)
	out := make(map[string]float64, len(ranks))
	for id, rank := range ranks {
		out[ix.str(id)] = rank
	}

	if err := a.store.PutEntityRanks(out); err != nil {
		return nil, err
	}
	return out, nil
}
