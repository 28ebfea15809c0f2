// Package retriever implements memoryd's candidate-generation, fusion, and
// caching pipeline: search, advanced_search, graph_rag, and graph_walking.
package retriever

import "github.com/kittclouds/memoryd/internal/store"

// Source tags which candidate generator contributed a result row, carried
// through to the final result's provenance field.
type Source string

const (
	SourceVector    Source = "vector"
	SourceKeyword   Source = "keyword"
	SourceGraph     Source = "graph"
	SourceInference Source = "inference"
	SourceMixed     Source = "mixed"
)

// Filters narrows post-fusion candidates, per spec.md §4.3.2 step 5.
type Filters struct {
	EntityTypes []string
	Metadata    store.Metadata
}

// GraphConstraints further narrows candidates to those connected to a set
// of target entities via named relations.
type GraphConstraints struct {
	RequiredRelations []string
	TargetEntityIDs   []string
}

// VectorParams carries advanced_search's vector parameters. The retriever
// does not read it; every ANN search uses the index's fixed ef_search (64).
type VectorParams struct {
	EfSearch int
}

// Request is the common shape behind search/advanced_search/graph_rag/
// graph_walking; unused fields are zero-valued for the simpler actions.
type Request struct {
	Query              string
	Limit              int
	IncludeEntities    bool
	IncludeObservations bool
	EntityTypes        []string
	TimeRangeHours      int

	Filters          Filters
	GraphConstraints GraphConstraints
	VectorParams     VectorParams

	MaxDepth       int
	StartEntityID  string
}

// Result is one row of a search response.
type Result struct {
	ID          string
	Name        string
	Type        string
	Text        string
	Score       float64
	Source      Source
	EntityID    string
	CreatedAt   int64
	UpdatedAt   int64
	Metadata    store.Metadata
	Explanation string
}

// Response wraps the ordered result rows for a single call.
type Response struct {
	Results []Result
}

// candidate is the per-source ranked contribution before fusion.
type candidate struct {
	id    string
	rank  int // 1-based rank within this source's ranked list
	score float64
	src   Source
}
