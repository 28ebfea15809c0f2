package inference

import (
	"sort"

	"github.com/kittclouds/memoryd/internal/store"
)

// clusterNeighborK bounds the per-node adjacency proxy used for label
// propagation: the public coder/hnsw API doesn't expose the layer-0 graph
// directly, so a top-K ANN query per node stands in for "node's neighbors"
// the way SearchEntityContent's partitions already group by entity type.
const clusterNeighborK = 8

// HNSWClusters runs label propagation over the proxy adjacency graph built
// from per-node top-K nearest neighbor queries against the entity-content
// HNSW partition, returning a community id per entity.
func (e *Engine) HNSWClusters(entityType string) (map[string]int, error) {
	asOf := nowMicros()
	entities, err := e.store.ListEntitiesLive(entityType, asOf)
	if err != nil {
		return nil, err
	}

	adjacency := make(map[string][]string, len(entities))
	for _, ent := range entities {
		if len(ent.ContentEmbedding) == 0 {
			adjacency[ent.ID] = nil
			continue
		}
		neighbors := e.ann.SearchEntityContent(ent.ContentEmbedding, clusterNeighborK+1, entityType)
		var filtered []string
		for _, n := range neighbors {
			if n != ent.ID {
				filtered = append(filtered, n)
			}
		}
		adjacency[ent.ID] = filtered
	}

	labels := make(map[string]int, len(entities))
	order := make([]string, 0, len(entities))
	for i, ent := range entities {
		labels[ent.ID] = i
		order = append(order, ent.ID)
	}
	sort.Strings(order)

	const maxIterations = 20
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for _, id := range order {
			counts := make(map[int]int)
			for _, n := range adjacency[id] {
				counts[labels[n]]++
			}
			best, bestCount := labels[id], -1
			for label, count := range counts {
				if count > bestCount || (count == bestCount && label < best) {
					best, bestCount = label, count
				}
			}
			if bestCount > 0 && best != labels[id] {
				labels[id] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	return labels, nil
}

// PersistClusters computes clusters for every well-known entity type and
// writes the merged community map.
func (e *Engine) PersistClusters() (map[string]int, error) {
	merged := make(map[string]int)
	offset := 0
	for _, typ := range store.WellKnownEntityTypes {
		clusters, err := e.HNSWClusters(typ)
		if err != nil {
			return nil, err
		}
		maxLabel := 0
		for id, label := range clusters {
			merged[id] = label + offset
			if label > maxLabel {
				maxLabel = label
			}
		}
		offset += maxLabel + 1
	}
	if err := e.store.PutEntityCommunities(merged); err != nil {
		return nil, err
	}
	return merged, nil
}
