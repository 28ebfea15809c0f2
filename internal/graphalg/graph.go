// Package graphalg computes graph analytics (PageRank, communities,
// shortest paths, centrality, connected components, bridges) over the live
// relationship graph, persisting the results that spec.md calls out for
// persistence (entity_rank, entity_community) back to the store.
package graphalg

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/kittclouds/memoryd/internal/store"
)

// Analytics computes every algorithm of spec.md §4.5 over a shared Store.
type Analytics struct {
	store *store.SQLiteStore
}

// New builds an Analytics engine.
func New(st *store.SQLiteStore) *Analytics {
	return &Analytics{store: st}
}

// idIndex maps entity ids to gonum's dense int64 node ids and back, since
// gonum's graph package works in terms of int64 node identity rather than
// arbitrary keys.
type idIndex struct {
	toInt map[string]int64
	toStr []string
}

func newIDIndex() *idIndex {
	return &idIndex{toInt: make(map[string]int64)}
}

func (ix *idIndex) intern(id string) int64 {
	if n, ok := ix.toInt[id]; ok {
		return n
	}
	n := int64(len(ix.toStr))
	ix.toInt[id] = n
	ix.toStr = append(ix.toStr, id)
	return n
}

func (ix *idIndex) str(n int64) string {
	if n < 0 || int(n) >= len(ix.toStr) {
		return ""
	}
	return ix.toStr[n]
}

// buildWeightedDirected constructs a weighted directed graph over every
// live relationship, using Strength as edge weight (0 is renormalized to a
// floor weight so PageRank/Dijkstra still treat it as a real edge).
func (a *Analytics) buildWeightedDirected() (*simple.WeightedDirectedGraph, *idIndex, error) {
	asOf := time.Now().UnixMicro()
	ix := newIDIndex()
	g := simple.NewWeightedDirectedGraph(0, 0)

	if err := a.internAllEntities(asOf, ix); err != nil {
		return nil, nil, err
	}
	for _, id := range ix.toStr {
		g.SetNode(simple.Node(ix.toInt[id]))
	}

	rels, err := a.liveRelationships(asOf)
	if err != nil {
		return nil, nil, err
	}
	for _, rel := range rels {
		from := ix.intern(rel.FromID)
		to := ix.intern(rel.ToID)
		g.SetNode(simple.Node(from))
		g.SetNode(simple.Node(to))
		w := rel.Strength
		if w <= 0 {
			w = 0.01
		}
		g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(from), T: simple.Node(to), W: w})
	}
	return g, ix, nil
}

func (a *Analytics) buildUndirected() (*simple.WeightedUndirectedGraph, *idIndex, error) {
	asOf := time.Now().UnixMicro()
	ix := newIDIndex()
	g := simple.NewWeightedUndirectedGraph(0, 0)

	if err := a.internAllEntities(asOf, ix); err != nil {
		return nil, nil, err
	}
	for _, id := range ix.toStr {
		g.SetNode(simple.Node(ix.toInt[id]))
	}

	rels, err := a.liveRelationships(asOf)
	if err != nil {
		return nil, nil, err
	}
	for _, rel := range rels {
		from := ix.intern(rel.FromID)
		to := ix.intern(rel.ToID)
		g.SetNode(simple.Node(from))
		g.SetNode(simple.Node(to))
		w := rel.Strength
		if w <= 0 {
			w = 0.01
		}
		g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(from), T: simple.Node(to), W: w})
	}
	return g, ix, nil
}

// internAllEntities registers every live entity in ix so isolated nodes
// (no incident relationship) still appear in the graph, e.g. as their own
// connected component.
func (a *Analytics) internAllEntities(asOf int64, ix *idIndex) error {
	for _, typ := range store.WellKnownEntityTypes {
		entities, err := a.store.ListEntitiesLive(typ, asOf)
		if err != nil {
			return err
		}
		for _, ent := range entities {
			ix.intern(ent.ID)
		}
	}
	return nil
}

func (a *Analytics) liveRelationships(asOf int64) ([]*store.Relationship, error) {
	return a.store.ListAllRelationshipsLive(asOf)
}

func nodeIDs(nodes graph.Nodes) []int64 {
	var out []int64
	for nodes.Next() {
		out = append(out, nodes.Node().ID())
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
