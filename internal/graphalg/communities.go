package graphalg

import "sort"

const labelPropagationMaxIterations = 50

// Communities runs label propagation over the live relationship graph
// treated as undirected, updating each node's label in place one node at a
// time, and persists the assignment.
func (a *Analytics) Communities() (map[string]int, error) {
	g, ix, err := a.buildUndirected()
	if err != nil {
		return nil, err
	}
	ids := nodeIDs(g.Nodes())
	if len(ids) == 0 {
		return map[string]int{}, nil
	}

	labels := make(map[int64]int, len(ids))
	for i, id := range ids {
		labels[id] = i
	}

	for iter := 0; iter < labelPropagationMaxIterations; iter++ {
		changed := false
		for _, id := range ids {
			counts := make(map[int]float64)
			to := g.From(id)
			for to.Next() {
				neighbor := to.Node().ID()
				w, _ := g.Weight(id, neighbor)
				counts[labels[neighbor]] += w
			}
			best, bestWeight := labels[id], -1.0
			for label, weight := range counts {
				if weight > bestWeight || (weight == bestWeight && label < best) {
					best, bestWeight = label, weight
				}
			}
			if bestWeight > 0 && best != labels[id] {
				labels[id] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	out := make(map[string]int, len(labels))
	for id, label := range labels {
		out[ix.str(id)] = label
	}

	if err := a.store.PutEntityCommunities(out); err != nil {
		return nil, err
	}
	return out, nil
}

// CommunitySizes groups community ids by member count, descending, each
// capped at up to 5 example entity names (spec.md §4.4's hnsw_clusters
// shape is reused here for analyze_graph's communities action).
func CommunitySizes(assignments map[string]int, names map[string]string) []CommunityGroup {
	bySize := make(map[int][]string)
	for id, community := range assignments {
		bySize[community] = append(bySize[community], names[id])
	}
	groups := make([]CommunityGroup, 0, len(bySize))
	for community, members := range bySize {
		sort.Strings(members)
		examples := members
		if len(examples) > 5 {
			examples = examples[:5]
		}
		groups = append(groups, CommunityGroup{CommunityID: community, Size: len(members), ExampleNames: examples})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Size > groups[j].Size })
	return groups
}

// CommunityGroup is one row of a communities analyze_graph response.
type CommunityGroup struct {
	CommunityID  int
	Size         int
	ExampleNames []string
}
