// Package store provides the bitemporal record store backing memoryd:
// entities, observations, relationships, and their indexes (HNSW, FTS, LSH).
//
// It generalizes GoKitt's single-timestamp "temporal table" pattern (a
// version-per-row Note with ValidFrom/ValidTo/IsCurrent) to a full bitemporal
// validity stamp per spec.md §3: every record's key carries a
// (timestamp_micros, asserted) stamp, and "live at T" means the latest stamp
// with timestamp <= T has asserted = true.
package store

import "encoding/json"

// Validity is the bitemporal stamp attached to every record's key.
type Validity struct {
	TimestampMicros int64 `json:"timestampMicros"`
	Asserted        bool  `json:"asserted"`
}

// NowMicros returns a Validity asserting "now" at the given microsecond
// timestamp (callers pass time.Now().UnixMicro() so store tests can control
// the clock).
func NowMicros(tsMicros int64) Validity {
	return Validity{TimestampMicros: tsMicros, Asserted: true}
}

// Metadata is the tagged-variant free-form map described in spec.md §9:
// string / number / bool / array / object / null, modeled directly as
// Go's JSON decode target. Comparison for metadata filters is structural
// equality over this shape.
type Metadata map[string]interface{}

// Clone returns a deep-enough copy for safe mutation (round-trips through
// JSON, which is adequate for the tagged-variant tree metadata represents).
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return Metadata{}
	}
	var out Metadata
	if err := json.Unmarshal(b, &out); err != nil {
		return Metadata{}
	}
	return out
}

// MatchesAll reports whether m contains every key/value pair in filter,
// compared by structural equality (spec.md §4.3.2 post-filtering step).
func (m Metadata) MatchesAll(filter Metadata) bool {
	for k, want := range filter {
		got, ok := m[k]
		if !ok {
			return false
		}
		wantJSON, _ := json.Marshal(want)
		gotJSON, _ := json.Marshal(got)
		if string(wantJSON) != string(gotJSON) {
			return false
		}
	}
	return true
}

// Status reads the well-known metadata.status key.
func (m Metadata) Status() string {
	if v, ok := m["status"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Archived reads the well-known metadata.archived key.
func (m Metadata) Archived() bool {
	if v, ok := m["archived"]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// JanitorLevel reads the well-known metadata.janitor.level key, or -1 if
// absent.
func (m Metadata) JanitorLevel() int {
	nested, ok := m["janitor"].(map[string]interface{})
	if !ok {
		return -1
	}
	if lvl, ok := nested["level"].(float64); ok {
		return int(lvl)
	}
	return -1
}

// Entity is keyed by (id, validity). Name is case-insensitively unique
// across live entities; ContentEmbedding/NameEmbedding are unit vectors of
// fixed dimension D.
type Entity struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	Metadata         Metadata  `json:"metadata"`
	ContentEmbedding []float32 `json:"contentEmbedding,omitempty"`
	NameEmbedding    []float32 `json:"nameEmbedding,omitempty"`
	Validity         Validity  `json:"validity"`
	CreatedAt        int64     `json:"createdAt"` // unix micros, first assertion
	UpdatedAt        int64     `json:"updatedAt"` // unix micros, this assertion
}

// WellKnownEntityTypes are the types that get their own type-filtered HNSW
// partition (spec.md §4.1).
var WellKnownEntityTypes = []string{"Person", "Project", "Task", "Note"}

// GlobalUserProfileID is the reserved entity id that receives the retrieval
// "profile boost" (spec.md §4.3.2 step 4).
const GlobalUserProfileID = "global_user_profile"

// Observation is keyed by (id, validity); EntityID references some Entity's
// id (not validity-enforced).
type Observation struct {
	ID        string    `json:"id"`
	EntityID  string    `json:"entityId"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
	Metadata  Metadata  `json:"metadata"`
	Validity  Validity  `json:"validity"`
	CreatedAt int64     `json:"createdAt"`
	UpdatedAt int64     `json:"updatedAt"`
}

// Relationship is keyed by (fromID, toID, relationType, validity).
// Invariant: FromID != ToID.
type Relationship struct {
	FromID       string   `json:"fromId"`
	ToID         string   `json:"toId"`
	RelationType string   `json:"relationType"`
	Strength     float64  `json:"strength"` // in [0,1]
	Metadata     Metadata `json:"metadata"`
	Validity     Validity `json:"validity"`
	CreatedAt    int64    `json:"createdAt"`
}

// SearchCache is keyed by QueryHash. CreatedAtSecond resolves spec.md §9's
// noted created_at scale ambiguity in favor of seconds everywhere for this
// relation (MemorySnapshot.CreatedAtMilli stays milliseconds, per the
// glossary).
type SearchCache struct {
	QueryHash       string    `json:"queryHash"`
	QueryText       string    `json:"queryText"`
	Results         []byte    `json:"results"` // opaque JSON blob
	Options         []byte    `json:"options"` // opaque JSON blob, canonicalized
	QueryEmbedding  []float32 `json:"queryEmbedding,omitempty"`
	CreatedAtSecond int64     `json:"createdAt"`
}

// EntityCommunity maps an entity to the community label computed by the
// last label-propagation run.
type EntityCommunity struct {
	EntityID    string `json:"entityId"`
	CommunityID int    `json:"communityId"`
}

// EntityRank maps an entity to its last computed PageRank score.
type EntityRank struct {
	EntityID string  `json:"entityId"`
	PageRank float64 `json:"pagerank"`
}

// InferenceRule is a user-supplied declarative rule whose Datalog text
// derives related(from_id, to_id, relation_type, confidence, reason) rows.
// No $id parameter is bound when it runs: the rule is evaluated over the
// whole seeded fact set and only rows whose from_id is the start entity are
// kept.
type InferenceRule struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Datalog   string `json:"datalog"`
	CreatedAt int64  `json:"createdAt"`
}

// MemorySnapshot is an aggregate-counts record at a point in time.
type MemorySnapshot struct {
	ID                string   `json:"id"`
	EntityCount       int      `json:"entityCount"`
	ObservationCount  int      `json:"observationCount"`
	RelationshipCount int      `json:"relationshipCount"`
	Metadata          Metadata `json:"metadata"`
	CreatedAtMilli    int64    `json:"createdAt"`
}

// InferredRelation is the uniform shape every InferenceEngine strategy
// returns (spec.md §4.4).
type InferredRelation struct {
	FromID       string  `json:"fromId"`
	ToID         string  `json:"toId"`
	RelationType string  `json:"relationType"`
	Confidence   float64 `json:"confidence"`
	Reason       string  `json:"reason"`
}
