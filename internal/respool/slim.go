package respool

import (
	"github.com/kittclouds/memoryd/internal/retriever"
	"github.com/kittclouds/memoryd/internal/store"
)

// SlimEntity is the JSON view of an Entity with embeddings dropped -
// query_memory/analyze_graph responses never need to round-trip vectors
// back to the caller.
type SlimEntity struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	Metadata  store.Metadata `json:"metadata,omitempty"`
	CreatedAt int64          `json:"createdAt"`
	UpdatedAt int64          `json:"updatedAt"`
}

// SlimRelationship is the JSON view of a Relationship.
type SlimRelationship struct {
	FromID       string         `json:"fromId"`
	ToID         string         `json:"toId"`
	RelationType string         `json:"relationType"`
	Strength     float64        `json:"strength"`
	Metadata     store.Metadata `json:"metadata,omitempty"`
	CreatedAt    int64          `json:"createdAt"`
}

// SlimResult is the JSON view of a retriever.Result.
type SlimResult struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Text        string  `json:"text,omitempty"`
	Score       float64 `json:"score"`
	Source      string  `json:"source"`
	EntityID    string  `json:"entityId,omitempty"`
	Explanation string  `json:"explanation,omitempty"`
}

// FromEntity strips an Entity down to its slim JSON view.
func FromEntity(e *store.Entity) SlimEntity {
	if e == nil {
		return SlimEntity{}
	}
	return SlimEntity{
		ID: e.ID, Name: e.Name, Type: e.Type, Metadata: e.Metadata,
		CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt,
	}
}

// FromRelationship strips a Relationship down to its slim JSON view.
func FromRelationship(r *store.Relationship) SlimRelationship {
	if r == nil {
		return SlimRelationship{}
	}
	return SlimRelationship{
		FromID: r.FromID, ToID: r.ToID, RelationType: r.RelationType,
		Strength: r.Strength, Metadata: r.Metadata, CreatedAt: r.CreatedAt,
	}
}

// FromResults converts a retriever.Response into its slim JSON view.
func FromResults(resp *retriever.Response) []SlimResult {
	out := make([]SlimResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, SlimResult{
			ID: r.ID, Name: r.Name, Type: r.Type, Text: r.Text,
			Score: r.Score, Source: string(r.Source), EntityID: r.EntityID,
			Explanation: r.Explanation,
		})
	}
	return out
}
