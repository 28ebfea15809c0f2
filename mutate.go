package memoryd

import (
	"context"
	"strings"

	"github.com/kittclouds/memoryd/internal/idgen"
	"github.com/kittclouds/memoryd/internal/inference"
	"github.com/kittclouds/memoryd/internal/ingest"
	"github.com/kittclouds/memoryd/internal/store"
)

// CreateEntityRequest is mutate_memory's create_entity action.
type CreateEntityRequest struct {
	Name     string
	Type     string
	Metadata store.Metadata
}

// CreateEntity inserts a new entity, enforcing the case-insensitive
// unique-name invariant and computing both embeddings.
func (m *Memory) CreateEntity(ctx context.Context, req CreateEntityRequest) (*store.Entity, error) {
	ctx = clampContext(ctx)
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Type) == "" {
		return nil, invalidInput("create_entity: name and type are required")
	}

	now := nowMicros()
	if existing, err := m.store.GetEntityByNameLive(req.Name, now); err != nil {
		return nil, storeErr(err, "create_entity: name lookup failed")
	} else if existing != nil {
		return nil, conflict("create_entity: an entity named %q already exists", req.Name)
	}

	e := &store.Entity{
		ID: idgen.New(), Name: req.Name, Type: req.Type, Metadata: req.Metadata,
		ContentEmbedding: m.embedder.Embed(ctx, req.Name),
		NameEmbedding:    m.embedder.Embed(ctx, req.Name),
		Validity:         store.NowMicros(now), CreatedAt: now, UpdatedAt: now,
	}
	if err := m.store.PutEntity(e); err != nil {
		return nil, storeErr(err, "create_entity: insert failed")
	}
	m.ann.IndexEntity(e)
	if err := m.fts.IndexEntityName(e.ID, e.Name); err != nil {
		m.logger.Warn("fts index failed for new entity")
	}
	return e, nil
}

// UpdateEntityRequest is mutate_memory's update_entity action: a fresh
// bitemporal stamp asserting the new field values.
type UpdateEntityRequest struct {
	ID       string
	Name     string
	Type     string
	Metadata store.Metadata
}

// UpdateEntity appends a new asserted stamp for id with the given fields.
// Fields left zero-valued keep the prior value.
func (m *Memory) UpdateEntity(ctx context.Context, req UpdateEntityRequest) (*store.Entity, error) {
	ctx = clampContext(ctx)
	now := nowMicros()
	prior, err := m.store.GetEntityLive(req.ID, now)
	if err != nil {
		return nil, storeErr(err, "update_entity: lookup failed")
	}
	if prior == nil {
		return nil, notFound("update_entity: entity %q not found", req.ID)
	}

	next := *prior
	if req.Name != "" && req.Name != prior.Name {
		if existing, err := m.store.GetEntityByNameLive(req.Name, now); err != nil {
			return nil, storeErr(err, "update_entity: name lookup failed")
		} else if existing != nil && existing.ID != req.ID {
			return nil, conflict("update_entity: an entity named %q already exists", req.Name)
		}
		next.Name = req.Name
		next.NameEmbedding = m.embedder.Embed(ctx, req.Name)
	}
	if req.Type != "" {
		next.Type = req.Type
	}
	if req.Metadata != nil {
		next.Metadata = req.Metadata
	}
	next.UpdatedAt = now
	next.Validity = store.NowMicros(now)

	if err := m.store.PutEntity(&next); err != nil {
		return nil, storeErr(err, "update_entity: insert failed")
	}
	m.ann.IndexEntity(&next)
	if err := m.fts.IndexEntityName(next.ID, next.Name); err != nil {
		m.logger.Warn("fts reindex failed for updated entity")
	}
	return &next, nil
}

// DeleteEntity appends a retracted stamp for id (soft delete, per the
// bitemporal lifecycle).
func (m *Memory) DeleteEntity(id string) error {
	now := nowMicros()
	prior, err := m.store.GetEntityLive(id, now)
	if err != nil {
		return storeErr(err, "delete_entity: lookup failed")
	}
	if prior == nil {
		return notFound("delete_entity: entity %q not found", id)
	}
	retracted := *prior
	retracted.Validity = store.Validity{TimestampMicros: now, Asserted: false}
	retracted.UpdatedAt = now
	if err := m.store.PutEntity(&retracted); err != nil {
		return storeErr(err, "delete_entity: insert failed")
	}
	m.ann.RemoveEntity(prior)
	if err := m.fts.RemoveEntityName(prior.ID); err != nil {
		m.logger.Warn("fts remove failed for deleted entity")
	}
	return nil
}

// AddObservationRequest is mutate_memory's add_observation action.
type AddObservationRequest struct {
	EntityID    string
	Text        string
	Metadata    store.Metadata
	Deduplicate *bool // defaults to true when nil
}

// AddObservationResult reports the dedup outcome alongside any triggered
// inference suggestions (spec.md §6's deduplication contract).
type AddObservationResult struct {
	Observation       *store.Observation
	Duplicate         bool
	Similarity        float64
	InferredRelations []store.InferredRelation
}

// AddObservation implements spec.md §6's three-step deduplication: exact
// text match, then LSH probe, then insert + trigger inference.
func (m *Memory) AddObservation(ctx context.Context, req AddObservationRequest) (*AddObservationResult, error) {
	ctx = clampContext(ctx)
	if strings.TrimSpace(req.Text) == "" {
		return nil, invalidInput("add_observation: text is required")
	}
	dedup := req.Deduplicate == nil || *req.Deduplicate
	now := nowMicros()

	existing, err := m.store.ListObservationsForEntityLive(req.EntityID, now)
	if err != nil {
		return nil, storeErr(err, "add_observation: lookup failed")
	}

	if dedup {
		for _, o := range existing {
			if o.Text == req.Text {
				return &AddObservationResult{Observation: o, Duplicate: true, Similarity: 1.0}, nil
			}
		}
		for _, id := range m.lsh.Candidates(req.Text) {
			for _, o := range existing {
				if o.ID == id {
					return &AddObservationResult{Observation: o, Duplicate: true, Similarity: 0.9}, nil
				}
			}
		}
	}

	obs := &store.Observation{
		ID: idgen.New(), EntityID: req.EntityID, Text: req.Text, Metadata: req.Metadata,
		Embedding: m.embedder.Embed(ctx, req.Text),
		Validity:  store.NowMicros(now), CreatedAt: now, UpdatedAt: now,
	}
	if err := m.store.PutObservation(obs); err != nil {
		return nil, storeErr(err, "add_observation: insert failed")
	}
	m.ann.IndexObservation(obs)
	m.lsh.Add(obs.ID, obs.Text)
	if err := m.fts.IndexObservationText(obs.ID, obs.Text); err != nil {
		m.logger.Warn("fts index failed for new observation")
	}

	inferred, err := m.inference.InferAll(ctx, req.EntityID)
	if err != nil {
		m.logger.Warn("inference after add_observation failed")
		inferred = nil
	}

	return &AddObservationResult{Observation: obs, InferredRelations: inferred}, nil
}

// CreateRelationRequest is mutate_memory's create_relation action.
type CreateRelationRequest struct {
	FromID       string
	ToID         string
	RelationType string
	Strength     float64
	Metadata     store.Metadata
}

// CreateRelation inserts a relationship, rejecting self-relationships.
func (m *Memory) CreateRelation(req CreateRelationRequest) (*store.Relationship, error) {
	if req.FromID == req.ToID {
		return nil, conflict("create_relation: self-relationship on %q is not allowed", req.FromID)
	}
	if strings.TrimSpace(req.RelationType) == "" {
		return nil, invalidInput("create_relation: relation_type is required")
	}
	now := nowMicros()
	strength := req.Strength
	if strength == 0 {
		strength = 1.0
	}
	rel := &store.Relationship{
		FromID: req.FromID, ToID: req.ToID, RelationType: req.RelationType,
		Strength: strength, Metadata: req.Metadata,
		Validity: store.NowMicros(now), CreatedAt: now,
	}
	if err := m.store.PutRelationship(rel); err != nil {
		return nil, storeErr(err, "create_relation: insert failed")
	}
	return rel, nil
}

// AddInferenceRuleRequest is mutate_memory's add_inference_rule action.
type AddInferenceRuleRequest struct {
	Name    string
	Datalog string
}

// AddInferenceRule validates the rule's result schema before storing it,
// refusing rules that don't return the canonical related/5 columns
// (spec.md §4.4 point 5, §9's user-defined-rule design note).
func (m *Memory) AddInferenceRule(req AddInferenceRuleRequest) (*store.InferenceRule, error) {
	if err := inference.ValidateRule(req.Datalog); err != nil {
		return nil, invalidInput("add_inference_rule: %v", err)
	}
	now := nowMicros()
	rule := &store.InferenceRule{ID: idgen.New(), Name: req.Name, Datalog: req.Datalog, CreatedAt: now}
	if err := m.store.PutInferenceRule(rule); err != nil {
		return nil, storeErr(err, "add_inference_rule: insert failed")
	}
	return rule, nil
}

// IngestFileRequest is mutate_memory's ingest_file action: exactly one of
// Markdown/JSON is set.
type IngestFileRequest struct {
	EntityID        string
	Markdown        string
	JSON            []byte
	MetadataOverlay store.Metadata
	Deduplicate     *bool
}

// IngestFileResult reports requested/added/duplicate-skipped counts.
type IngestFileResult struct {
	Requested int
	Added     int
	Skipped   int
}

// IngestFile splits markdown (blank-line paragraphs) or JSON (array of
// strings/{text,metadata}) into observations and inserts each through the
// same dedup path as AddObservation.
func (m *Memory) IngestFile(ctx context.Context, req IngestFileRequest) (*IngestFileResult, error) {
	ctx = clampContext(ctx)
	var chunks []ingest.Chunk
	var err error
	switch {
	case req.Markdown != "":
		chunks = ingest.ParseMarkdown(req.Markdown)
	case len(req.JSON) > 0:
		chunks, err = ingest.ParseJSON(req.JSON)
		if err != nil {
			return nil, invalidInput("ingest_file: %v", err)
		}
	default:
		return nil, invalidInput("ingest_file: one of markdown or json is required")
	}

	result := &IngestFileResult{Requested: len(chunks)}
	for _, c := range chunks {
		meta := req.MetadataOverlay
		if c.Metadata != nil {
			meta = store.Metadata(c.Metadata)
		}
		out, err := m.AddObservation(ctx, AddObservationRequest{
			EntityID: req.EntityID, Text: c.Text, Metadata: meta, Deduplicate: req.Deduplicate,
		})
		if err != nil {
			return nil, err
		}
		if out.Duplicate {
			result.Skipped++
		} else {
			result.Added++
		}
	}
	return result, nil
}

// TransactionStatement is one write within a RunTransaction batch.
type TransactionStatement struct {
	CreateEntity   *CreateEntityRequest
	AddObservation *AddObservationRequest
	CreateRelation *CreateRelationRequest
}

// RunTransaction executes every statement as one atomic commit (spec.md
// §5): embeddings are computed up front (outside the lock) and the actual
// inserts all land in a single store transaction (store.RunTransaction).
func (m *Memory) RunTransaction(ctx context.Context, stmts []TransactionStatement) error {
	ctx = clampContext(ctx)
	now := nowMicros()
	built := make([]store.TransactionStatement, 0, len(stmts))

	for _, s := range stmts {
		switch {
		case s.CreateEntity != nil:
			req := s.CreateEntity
			if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Type) == "" {
				return invalidInput("run_transaction: create_entity requires name and type")
			}
			built = append(built, store.TransactionStatement{
				Op: store.OpCreateEntity,
				Entity: &store.Entity{
					ID: idgen.New(), Name: req.Name, Type: req.Type, Metadata: req.Metadata,
					ContentEmbedding: m.embedder.Embed(ctx, req.Name),
					NameEmbedding:    m.embedder.Embed(ctx, req.Name),
					Validity:         store.NowMicros(now), CreatedAt: now, UpdatedAt: now,
				},
			})
		case s.AddObservation != nil:
			req := s.AddObservation
			if strings.TrimSpace(req.Text) == "" {
				return invalidInput("run_transaction: add_observation requires text")
			}
			built = append(built, store.TransactionStatement{
				Op: store.OpAddObservation,
				Observation: &store.Observation{
					ID: idgen.New(), EntityID: req.EntityID, Text: req.Text, Metadata: req.Metadata,
					Embedding: m.embedder.Embed(ctx, req.Text),
					Validity:  store.NowMicros(now), CreatedAt: now, UpdatedAt: now,
				},
			})
		case s.CreateRelation != nil:
			req := s.CreateRelation
			if req.FromID == req.ToID {
				return conflict("run_transaction: self-relationship on %q is not allowed", req.FromID)
			}
			strength := req.Strength
			if strength == 0 {
				strength = 1.0
			}
			built = append(built, store.TransactionStatement{
				Op: store.OpCreateRelation,
				Relationship: &store.Relationship{
					FromID: req.FromID, ToID: req.ToID, RelationType: req.RelationType,
					Strength: strength, Metadata: req.Metadata,
					Validity: store.NowMicros(now), CreatedAt: now,
				},
			})
		default:
			return invalidInput("run_transaction: empty statement")
		}
	}

	if err := m.store.RunTransaction(built); err != nil {
		return storeErr(err, "run_transaction: commit failed")
	}

	for _, s := range built {
		switch s.Op {
		case store.OpCreateEntity:
			m.ann.IndexEntity(s.Entity)
			if err := m.fts.IndexEntityName(s.Entity.ID, s.Entity.Name); err != nil {
				m.logger.Warn("fts index failed for transaction entity")
			}
		case store.OpAddObservation:
			m.ann.IndexObservation(s.Observation)
			m.lsh.Add(s.Observation.ID, s.Observation.Text)
			if err := m.fts.IndexObservationText(s.Observation.ID, s.Observation.Text); err != nil {
				m.logger.Warn("fts index failed for transaction observation")
			}
		}
	}
	return nil
}
