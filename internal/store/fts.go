package store

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/en" // registers the "en" analyzer: tokenize, lowercase, stem, stopword-filter
	"github.com/blevesearch/bleve/v2/mapping"
)

// ftsDoc is the indexed unit for both FTS partitions: a single text field
// scored with bleve's default BM25 similarity.
type ftsDoc struct {
	Text string `json:"text"`
}

func newFTSMapping() *mapping.IndexMappingImpl {
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = "en"

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("text", textField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = "en"
	return m
}

// FTSIndexSet holds the two full-text partitions spec.md §4.2 names:
// entity.name and observation.text, each tokenized/stemmed/stopworded by
// bleve's "en" analyzer and scored with BM25.
type FTSIndexSet struct {
	EntityName  bleve.Index
	Observation bleve.Index
}

// NewFTSIndexSet builds two in-memory bleve indexes.
func NewFTSIndexSet() (*FTSIndexSet, error) {
	nameIdx, err := bleve.NewMemOnly(newFTSMapping())
	if err != nil {
		return nil, fmt.Errorf("build entity-name fts index: %w", err)
	}
	obsIdx, err := bleve.NewMemOnly(newFTSMapping())
	if err != nil {
		return nil, fmt.Errorf("build observation fts index: %w", err)
	}
	return &FTSIndexSet{EntityName: nameIdx, Observation: obsIdx}, nil
}

// IndexEntityName indexes an entity's name for FTS, keyed by entity id.
func (f *FTSIndexSet) IndexEntityName(id, name string) error {
	return f.EntityName.Index(id, ftsDoc{Text: name})
}

// RemoveEntityName drops an entity from the name FTS index.
func (f *FTSIndexSet) RemoveEntityName(id string) error {
	return f.EntityName.Delete(id)
}

// IndexObservationText indexes an observation's text for FTS, keyed by
// observation id.
func (f *FTSIndexSet) IndexObservationText(id, text string) error {
	return f.Observation.Index(id, ftsDoc{Text: text})
}

// RemoveObservationText drops an observation from the text FTS index.
func (f *FTSIndexSet) RemoveObservationText(id string) error {
	return f.Observation.Delete(id)
}

// FTSHit is one scored FTS match.
type FTSHit struct {
	ID    string
	Score float64
}

func searchFTS(idx bleve.Index, query string, k int) ([]FTSHit, error) {
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	result, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("fts search: %w", err)
	}
	hits := make([]FTSHit, 0, len(result.Hits))
	for _, h := range result.Hits {
		hits = append(hits, FTSHit{ID: h.ID, Score: h.Score})
	}
	return hits, nil
}

// SearchEntityName runs a BM25 match query against entity names.
func (f *FTSIndexSet) SearchEntityName(query string, k int) ([]FTSHit, error) {
	return searchFTS(f.EntityName, query, k)
}

// SearchObservationText runs a BM25 match query against observation text.
func (f *FTSIndexSet) SearchObservationText(query string, k int) ([]FTSHit, error) {
	return searchFTS(f.Observation, query, k)
}

// Close releases both underlying bleve indexes.
func (f *FTSIndexSet) Close() error {
	if err := f.EntityName.Close(); err != nil {
		return err
	}
	return f.Observation.Close()
}
