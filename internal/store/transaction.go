package store

import (
	"database/sql"
	"fmt"
)

// TransactionOp names the kind of write a TransactionStatement performs.
// run_transaction only ever composes the same primitive writes exposed
// individually as Put*, batched into a single commit.
type TransactionOp string

const (
	OpCreateEntity   TransactionOp = "create_entity"
	OpAddObservation TransactionOp = "add_observation"
	OpCreateRelation TransactionOp = "create_relation"
)

// TransactionStatement is one write within a run_transaction batch. Exactly
// one of Entity/Observation/Relationship is set, matching Op.
type TransactionStatement struct {
	Op           TransactionOp
	Entity       *Entity
	Observation  *Observation
	Relationship *Relationship
}

// RunTransaction executes every statement inside one database/sql
// transaction (a plain BEGIN, taken under the store's write lock): either
// all commit or none do, per spec.md §5's multi-statement write guarantee.
func (s *SQLiteStore) RunTransaction(stmts []TransactionStatement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i, stmt := range stmts {
		var execErr error
		switch stmt.Op {
		case OpCreateEntity:
			execErr = execEntityInsert(tx, stmt.Entity)
		case OpAddObservation:
			execErr = execObservationInsert(tx, stmt.Observation)
		case OpCreateRelation:
			execErr = execRelationshipInsert(tx, stmt.Relationship)
		default:
			execErr = fmt.Errorf("unknown transaction op %q", stmt.Op)
		}
		if execErr != nil {
			return fmt.Errorf("transaction statement %d (%s): %w", i, stmt.Op, execErr)
		}
	}

	return tx.Commit()
}

func execEntityInsert(tx *sql.Tx, e *Entity) error {
	metaJSON, err := encodeMetadata(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal entity metadata: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO entities (id, name, type, metadata, content_embedding, name_embedding,
			validity_ts, validity_asserted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Name, e.Type, string(metaJSON), encodeVector(e.ContentEmbedding), encodeVector(e.NameEmbedding),
		e.Validity.TimestampMicros, boolToInt(e.Validity.Asserted), e.CreatedAt, e.UpdatedAt)
	return err
}

func execObservationInsert(tx *sql.Tx, o *Observation) error {
	metaJSON, err := encodeMetadata(o.Metadata)
	if err != nil {
		return fmt.Errorf("marshal observation metadata: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO observations (id, entity_id, text, embedding, metadata,
			validity_ts, validity_asserted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.EntityID, o.Text, encodeVector(o.Embedding), string(metaJSON),
		o.Validity.TimestampMicros, boolToInt(o.Validity.Asserted), o.CreatedAt, o.UpdatedAt)
	return err
}

func execRelationshipInsert(tx *sql.Tx, r *Relationship) error {
	metaJSON, err := encodeMetadata(r.Metadata)
	if err != nil {
		return fmt.Errorf("marshal relationship metadata: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO relationships (from_id, to_id, relation_type, strength, metadata,
			validity_ts, validity_asserted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.FromID, r.ToID, r.RelationType, r.Strength, string(metaJSON),
		r.Validity.TimestampMicros, boolToInt(r.Validity.Asserted), r.CreatedAt)
	return err
}
