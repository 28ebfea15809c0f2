package graphalg

import "gonum.org/v1/gonum/graph/network"

const hitsTol = 1e-8

// Betweenness computes shortest-path betweenness centrality over the live
// relationship graph treated as undirected, via gonum's Brandes' algorithm
// implementation (the same graph/network subpackage PageRank already uses).
func (a *Analytics) Betweenness() (map[string]float64, error) {
	g, ix, err := a.buildUndirected()
	if err != nil {
		return nil, err
	}
	if g.Nodes().Len() == 0 {
		return map[string]float64{}, nil
	}

	scores := network.Betweenness(g)
	out := make(map[string]float64, len(scores))
	for id, s := range scores {
		out[ix.str(id)] = s
	}
	return out, nil
}

// HITS computes hub and authority scores over the live directed relationship
// graph via gonum's HITS implementation.
func (a *Analytics) HITS() (hubs, authorities map[string]float64, err error) {
	g, ix, err := a.buildWeightedDirected()
	if err != nil {
		return nil, nil, err
	}
	if g.Nodes().Len() == 0 {
		return map[string]float64{}, map[string]float64{}, nil
	}

	scores := network.HITS(g, hitsTol)
	hubs = make(map[string]float64, len(scores))
	authorities = make(map[string]float64, len(scores))
	for id, ha := range scores {
		hubs[ix.str(id)] = ha.Hub
		authorities[ix.str(id)] = ha.Authority
	}
	return hubs, authorities, nil
}
