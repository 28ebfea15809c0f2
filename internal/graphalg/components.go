package graphalg

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/graph/topo"
)

// ConnectedComponents returns each connected component of the live
// relationship graph treated as undirected, as groups of entity ids.
func (a *Analytics) ConnectedComponents() ([][]string, error) {
	g, ix, err := a.buildUndirected()
	if err != nil {
		return nil, err
	}
	components := topo.ConnectedComponents(g)
	out := make([][]string, len(components))
	for i, comp := range components {
		ids := make([]string, len(comp))
		for j, n := range comp {
			ids[j] = ix.str(n.ID())
		}
		sort.Strings(ids)
		out[i] = ids
	}
	return out, nil
}

// BridgeDiscovery reports, for every entity whose incident live
// relationships connect two or more distinct communities in assignments, the
// count of distinct communities it touches. Sorted by count descending.
func (a *Analytics) BridgeDiscovery(assignments map[string]int) ([]Bridge, error) {
	asOf := time.Now().UnixMicro()
	rels, err := a.liveRelationships(asOf)
	if err != nil {
		return nil, err
	}

	touched := make(map[string]map[int]bool)
	for _, rel := range rels {
		fromCommunity, ok1 := assignments[rel.FromID]
		toCommunity, ok2 := assignments[rel.ToID]
		if !ok1 || !ok2 {
			continue
		}
		if touched[rel.FromID] == nil {
			touched[rel.FromID] = make(map[int]bool)
		}
		if touched[rel.ToID] == nil {
			touched[rel.ToID] = make(map[int]bool)
		}
		touched[rel.FromID][toCommunity] = true
		touched[rel.ToID][fromCommunity] = true
		touched[rel.FromID][fromCommunity] = true
		touched[rel.ToID][toCommunity] = true
	}

	var out []Bridge
	for id, communities := range touched {
		if len(communities) >= 2 {
			out = append(out, Bridge{EntityID: id, CommunityCount: len(communities)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CommunityCount != out[j].CommunityCount {
			return out[i].CommunityCount > out[j].CommunityCount
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out, nil
}

// Bridge is one row of a bridge_discovery result.
type Bridge struct {
	EntityID       string
	CommunityCount int
}
