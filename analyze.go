package memoryd

import (
	"context"

	"github.com/kittclouds/memoryd/internal/evolution"
	"github.com/kittclouds/memoryd/internal/graphalg"
	"github.com/kittclouds/memoryd/internal/inference"
	"github.com/kittclouds/memoryd/internal/store"
)

// Explore runs analyze_graph's explore action: the live neighborhood of an
// entity, one hop out.
func (m *Memory) Explore(entityID string) ([]*store.Relationship, error) {
	rels, err := m.store.ListRelationshipsForEntityLive(entityID, nowMicros())
	if err != nil {
		return nil, storeErr(err, "explore: lookup failed")
	}
	return rels, nil
}

// Communities runs analyze_graph's communities action: label-propagation
// community detection over the live undirected graph. The assignment is
// persisted by Analytics.Communities itself, for use by bridge_discovery
// and future retrieval priors.
func (m *Memory) Communities() (map[string]int, error) {
	communities, err := m.analytics.Communities()
	if err != nil {
		return nil, storeErr(err, "communities: computation failed")
	}
	return communities, nil
}

// PageRank runs analyze_graph's pagerank action over the live directed
// graph. Analytics.PageRank persists the scores itself, which the
// retriever's applyPriors then reads as a retrieval-score prior.
func (m *Memory) PageRank() (map[string]float64, error) {
	ranks, err := m.analytics.PageRank()
	if err != nil {
		return nil, storeErr(err, "pagerank: computation failed")
	}
	return ranks, nil
}

// Betweenness runs analyze_graph's betweenness action.
func (m *Memory) Betweenness() (map[string]float64, error) {
	scores, err := m.analytics.Betweenness()
	if err != nil {
		return nil, storeErr(err, "betweenness: computation failed")
	}
	return scores, nil
}

// HITSResult is analyze_graph's hits action payload.
type HITSResult struct {
	Hubs        map[string]float64
	Authorities map[string]float64
}

// HITS runs analyze_graph's hits action.
func (m *Memory) HITS() (*HITSResult, error) {
	hubs, authorities, err := m.analytics.HITS()
	if err != nil {
		return nil, storeErr(err, "hits: computation failed")
	}
	return &HITSResult{Hubs: hubs, Authorities: authorities}, nil
}

// ConnectedComponents runs analyze_graph's connected_components action.
func (m *Memory) ConnectedComponents() ([][]string, error) {
	components, err := m.analytics.ConnectedComponents()
	if err != nil {
		return nil, storeErr(err, "connected_components: computation failed")
	}
	return components, nil
}

// ShortestPath runs analyze_graph's shortest_path action.
func (m *Memory) ShortestPath(fromID, toID string) (ids []string, distance float64, found bool, err error) {
	ids, distance, found, err = m.analytics.ShortestPath(fromID, toID)
	if err != nil {
		return nil, 0, false, storeErr(err, "shortest_path: computation failed")
	}
	return ids, distance, found, nil
}

// BridgeDiscovery runs analyze_graph's bridge_discovery action: entities
// whose incident edges reach two or more distinct communities.
func (m *Memory) BridgeDiscovery() ([]graphalg.Bridge, error) {
	communities, err := m.store.GetEntityCommunities()
	if err != nil {
		return nil, storeErr(err, "bridge_discovery: community lookup failed")
	}
	if len(communities) == 0 {
		communities, err = m.analytics.Communities()
		if err != nil {
			return nil, storeErr(err, "bridge_discovery: community computation failed")
		}
	}
	bridges, err := m.analytics.BridgeDiscovery(communities)
	if err != nil {
		return nil, storeErr(err, "bridge_discovery: computation failed")
	}
	return bridges, nil
}

// InferRelations runs analyze_graph's infer_relations action: every
// inference strategy's output for a single entity, without inserting
// anything (add_observation's implicit trigger returns the same
// suggestions without inserting them either).
func (m *Memory) InferRelations(ctx context.Context, entityID string) ([]store.InferredRelation, error) {
	relations, err := m.inference.InferAll(clampContext(ctx), entityID)
	if err != nil {
		return nil, storeErr(err, "infer_relations: computation failed")
	}
	return relations, nil
}

// GetRelationEvolution runs analyze_graph's get_relation_evolution action.
func (m *Memory) GetRelationEvolution(fromID, toID string, sinceMillis, untilMillis int64) (*evolution.Timeline, error) {
	timeline, err := evolution.RelationEvolution(m.store, fromID, toID, sinceMillis, untilMillis)
	if err != nil {
		return nil, storeErr(err, "get_relation_evolution: computation failed")
	}
	return timeline, nil
}

// SemanticWalk runs analyze_graph's semantic_walk action: a breadth-first
// walk from startID, up to maxDepth steps, over relationships and ANN
// neighbors; minSimilarity gates only the semantic (ANN) steps.
func (m *Memory) SemanticWalk(startID string, maxDepth int, minSimilarity float64) ([]inference.WalkHit, error) {
	hits, err := m.inference.SemanticWalk(startID, maxDepth, minSimilarity)
	if err != nil {
		return nil, storeErr(err, "semantic_walk: computation failed")
	}
	return hits, nil
}

// HNSWClusters runs analyze_graph's hnsw_clusters action for the given
// entity type, returning the cluster assignments without persisting them.
func (m *Memory) HNSWClusters(entityType string) (map[string]int, error) {
	clusters, err := m.inference.HNSWClusters(entityType)
	if err != nil {
		return nil, storeErr(err, "hnsw_clusters: computation failed")
	}
	return clusters, nil
}
