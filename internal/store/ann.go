package store

import (
	"sync"

	"github.com/coder/hnsw"
)

// Fixed HNSW parameters for every partition: newANNIndex applies m=16
// neighbors per layer-0 node, ef_search=64 and cosine distance.
// annEfConstruction holds 200 but newANNIndex does not apply it.
const (
	annM             = 16
	annEfConstruction = 200
	annEfSearch       = 64
)

// annIndex wraps one coder/hnsw graph plus the mutex GoKitt's pool.go and
// sqlite_store.go both reach for around any structure mutated from
// concurrent WASM callbacks.
type annIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[string]
}

func newANNIndex() *annIndex {
	g := hnsw.NewGraph[string]()
	g.M = annM
	g.EfSearch = annEfSearch
	g.Distance = hnsw.CosineDistance
	return &annIndex{graph: g}
}

func (a *annIndex) add(id string, vec []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.graph.Add(hnsw.MakeNode(id, hnsw.Vector(vec)))
}

func (a *annIndex) remove(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.graph.Delete(id)
}

// search returns up to k ids ordered by ascending cosine distance.
func (a *annIndex) search(vec []float32, k int) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.graph.Len() == 0 {
		return nil
	}
	neighbors := a.graph.Search(hnsw.Vector(vec), k)
	out := make([]string, len(neighbors))
	for i, n := range neighbors {
		out[i] = n.Key
	}
	return out
}

func (a *annIndex) len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.graph.Len()
}

// ANNIndexSet holds the per-field HNSW partitions spec.md §4.1 calls for:
// one index each over entity content embeddings and name embeddings, plus
// one type-filtered content partition per well-known entity type, and one
// over observation embeddings.
type ANNIndexSet struct {
	EntityContent *annIndex
	EntityName    *annIndex
	Observation   *annIndex

	mu         sync.RWMutex
	byType     map[string]*annIndex
}

// NewANNIndexSet builds an empty index set, pre-creating a partition for
// every well-known entity type.
func NewANNIndexSet() *ANNIndexSet {
	s := &ANNIndexSet{
		EntityContent: newANNIndex(),
		EntityName:    newANNIndex(),
		Observation:   newANNIndex(),
		byType:        make(map[string]*annIndex),
	}
	for _, t := range WellKnownEntityTypes {
		s.byType[t] = newANNIndex()
	}
	return s
}

// typePartition returns (creating if needed) the partition for an entity
// type outside the well-known set, so arbitrary types still get ANN search,
// just without a name reserved in WellKnownEntityTypes.
func (s *ANNIndexSet) typePartition(entityType string) *annIndex {
	s.mu.RLock()
	idx, ok := s.byType[entityType]
	s.mu.RUnlock()
	if ok {
		return idx
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.byType[entityType]; ok {
		return idx
	}
	idx = newANNIndex()
	s.byType[entityType] = idx
	return idx
}

// IndexEntity adds an entity's content and name embeddings to every relevant
// partition.
func (s *ANNIndexSet) IndexEntity(e *Entity) {
	if len(e.ContentEmbedding) > 0 {
		s.EntityContent.add(e.ID, e.ContentEmbedding)
		s.typePartition(e.Type).add(e.ID, e.ContentEmbedding)
	}
	if len(e.NameEmbedding) > 0 {
		s.EntityName.add(e.ID, e.NameEmbedding)
	}
}

// RemoveEntity drops an entity from every partition it could be in.
func (s *ANNIndexSet) RemoveEntity(e *Entity) {
	s.EntityContent.remove(e.ID)
	s.EntityName.remove(e.ID)
	s.typePartition(e.Type).remove(e.ID)
}

// IndexObservation adds an observation's embedding to the observation
// partition.
func (s *ANNIndexSet) IndexObservation(o *Observation) {
	if len(o.Embedding) > 0 {
		s.Observation.add(o.ID, o.Embedding)
	}
}

// RemoveObservation drops an observation from the observation partition.
func (s *ANNIndexSet) RemoveObservation(o *Observation) {
	s.Observation.remove(o.ID)
}

// SearchEntityContent returns up to k entity ids nearest vec, restricted to
// entityType when non-empty.
func (s *ANNIndexSet) SearchEntityContent(vec []float32, k int, entityType string) []string {
	if entityType != "" {
		return s.typePartition(entityType).search(vec, k)
	}
	return s.EntityContent.search(vec, k)
}

// SearchEntityName returns up to k entity ids nearest vec by name embedding.
func (s *ANNIndexSet) SearchEntityName(vec []float32, k int) []string {
	return s.EntityName.search(vec, k)
}

// SearchObservations returns up to k observation ids nearest vec.
func (s *ANNIndexSet) SearchObservations(vec []float32, k int) []string {
	return s.Observation.search(vec, k)
}
