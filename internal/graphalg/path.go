package graphalg

import (
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// ShortestPath runs Dijkstra over the live weighted directed graph between
// fromID and toID. ok is false when either id is absent from the graph or
// no path exists.
func (a *Analytics) ShortestPath(fromID, toID string) (ids []string, distance float64, ok bool, err error) {
	g, ix, err := a.buildWeightedDirected()
	if err != nil {
		return nil, 0, false, err
	}
	from, fromOK := ix.toInt[fromID]
	to, toOK := ix.toInt[toID]
	if !fromOK || !toOK {
		return nil, 0, false, nil
	}

	shortest := path.DijkstraFrom(simple.Node(from), g)
	nodes, weight := shortest.To(to)
	if len(nodes) == 0 {
		return nil, 0, false, nil
	}

	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = ix.str(n.ID())
	}
	return out, weight, true, nil
}
