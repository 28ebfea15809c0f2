// Package store provides the SQLite-backed bitemporal record store for
// memoryd entities, observations, relationships, and their derived indexes.
// Uses ncruces/go-sqlite3/driver, same as GoKitt, which wraps a WASM build of
// SQLite behind a database/sql driver and needs no cgo toolchain.
package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
)

// SQLiteStore is the SQLite-backed bitemporal store. Safe for concurrent use.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// New opens an in-memory store.
func New() (*SQLiteStore, error) {
	return NewWithDSN(":memory:")
}

// NewWithDSN opens a store at dsn. Use ":memory:" for ephemeral, or a file
// path for persistent storage.
func NewWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	applyMigrations(func(q string) error {
		_, err := db.Exec(q)
		return err
	})
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// encodeVector packs a []float32 into a little-endian BLOB, matching the
// layout the HNSW and FTS components read back with decodeVector.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	if len(buf) == 0 {
		return nil
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

func encodeMetadata(m Metadata) ([]byte, error) {
	if m == nil {
		m = Metadata{}
	}
	return json.Marshal(m)
}

func decodeMetadata(buf []byte) Metadata {
	if len(buf) == 0 {
		return Metadata{}
	}
	var m Metadata
	if err := json.Unmarshal(buf, &m); err != nil {
		return Metadata{}
	}
	return m
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// =============================================================================
// Entity CRUD
// =============================================================================

// PutEntity inserts a new bitemporal stamp for an entity. It never updates a
// row in place: retraction and correction are both a fresh row with a new
// validity stamp, per the bitemporal model.
func (s *SQLiteStore) PutEntity(e *Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metaJSON, err := encodeMetadata(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal entity metadata: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO entities (id, name, type, metadata, content_embedding, name_embedding,
			validity_ts, validity_asserted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Name, e.Type, string(metaJSON), encodeVector(e.ContentEmbedding), encodeVector(e.NameEmbedding),
		e.Validity.TimestampMicros, boolToInt(e.Validity.Asserted), e.CreatedAt, e.UpdatedAt)

	return err
}

// GetEntityLive returns the entity live at asOfMicros, or nil if none is
// asserted at that time (deleted, not-yet-created, or never existed).
func (s *SQLiteStore) GetEntityLive(id string, asOfMicros int64) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, name, type, metadata, content_embedding, name_embedding,
			validity_ts, validity_asserted, created_at, updated_at
		FROM entities
		WHERE id = ? AND validity_ts <= ?
		ORDER BY validity_ts DESC LIMIT 1
	`, id, asOfMicros)

	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !e.Validity.Asserted {
		return nil, nil
	}
	return e, nil
}

// GetEntityByNameLive finds the live entity with the given name
// (case-insensitive), enforcing the unique-name invariant.
func (s *SQLiteStore) GetEntityByNameLive(name string, asOfMicros int64) (*Entity, error) {
	s.mu.RLock()
	ids, err := s.liveEntityIDsLocked(asOfMicros)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		e, err := s.GetEntityLive(id, asOfMicros)
		if err != nil {
			return nil, err
		}
		if e != nil && equalFold(e.Name, name) {
			return e, nil
		}
	}
	return nil, nil
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// ListEntitiesLive returns every entity live at asOfMicros, optionally
// filtered by type (pass "" for all types).
func (s *SQLiteStore) ListEntitiesLive(typ string, asOfMicros int64) ([]*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, err := s.liveEntityIDsLocked(asOfMicros)
	if err != nil {
		return nil, err
	}

	var out []*Entity
	for _, id := range ids {
		row := s.db.QueryRow(`
			SELECT id, name, type, metadata, content_embedding, name_embedding,
				validity_ts, validity_asserted, created_at, updated_at
			FROM entities WHERE id = ? AND validity_ts <= ?
			ORDER BY validity_ts DESC LIMIT 1
		`, id, asOfMicros)
		e, err := scanEntity(row)
		if err != nil {
			return nil, err
		}
		if !e.Validity.Asserted {
			continue
		}
		if typ != "" && e.Type != typ {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// liveEntityIDsLocked returns the distinct set of entity ids that have any
// stamp at or before asOfMicros. Caller must hold s.mu.
func (s *SQLiteStore) liveEntityIDsLocked(asOfMicros int64) ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT id FROM entities WHERE validity_ts <= ?`, asOfMicros)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountEntitiesLive returns the number of entities live at asOfMicros.
func (s *SQLiteStore) CountEntitiesLive(asOfMicros int64) (int, error) {
	s.mu.RLock()
	ids, err := s.liveEntityIDsLocked(asOfMicros)
	s.mu.RUnlock()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, id := range ids {
		e, err := s.GetEntityLive(id, asOfMicros)
		if err != nil {
			return 0, err
		}
		if e != nil {
			count++
		}
	}
	return count, nil
}

func scanEntity(row *sql.Row) (*Entity, error) {
	var e Entity
	var metaJSON string
	var contentEmb, nameEmb []byte
	var asserted int
	if err := row.Scan(
		&e.ID, &e.Name, &e.Type, &metaJSON, &contentEmb, &nameEmb,
		&e.Validity.TimestampMicros, &asserted, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.Metadata = decodeMetadata([]byte(metaJSON))
	e.ContentEmbedding = decodeVector(contentEmb)
	e.NameEmbedding = decodeVector(nameEmb)
	e.Validity.Asserted = asserted != 0
	return &e, nil
}

// =============================================================================
// Observation CRUD
// =============================================================================

// PutObservation inserts a new bitemporal stamp for an observation.
func (s *SQLiteStore) PutObservation(o *Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metaJSON, err := encodeMetadata(o.Metadata)
	if err != nil {
		return fmt.Errorf("marshal observation metadata: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO observations (id, entity_id, text, embedding, metadata,
			validity_ts, validity_asserted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.EntityID, o.Text, encodeVector(o.Embedding), string(metaJSON),
		o.Validity.TimestampMicros, boolToInt(o.Validity.Asserted), o.CreatedAt, o.UpdatedAt)

	return err
}

// GetObservationLive returns the observation live at asOfMicros, or nil.
func (s *SQLiteStore) GetObservationLive(id string, asOfMicros int64) (*Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, entity_id, text, embedding, metadata, validity_ts, validity_asserted, created_at, updated_at
		FROM observations WHERE id = ? AND validity_ts <= ?
		ORDER BY validity_ts DESC LIMIT 1
	`, id, asOfMicros)

	o, err := scanObservation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !o.Validity.Asserted {
		return nil, nil
	}
	return o, nil
}

// ListObservationsForEntityLive returns observations attached to entityID
// live at asOfMicros.
func (s *SQLiteStore) ListObservationsForEntityLive(entityID string, asOfMicros int64) ([]*Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT DISTINCT id FROM observations WHERE entity_id = ? AND validity_ts <= ?`, entityID, asOfMicros)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []*Observation
	for _, id := range ids {
		row := s.db.QueryRow(`
			SELECT id, entity_id, text, embedding, metadata, validity_ts, validity_asserted, created_at, updated_at
			FROM observations WHERE id = ? AND validity_ts <= ?
			ORDER BY validity_ts DESC LIMIT 1
		`, id, asOfMicros)
		o, err := scanObservation(row)
		if err != nil {
			return nil, err
		}
		if o.Validity.Asserted {
			out = append(out, o)
		}
	}
	return out, nil
}

func scanObservation(row *sql.Row) (*Observation, error) {
	var o Observation
	var metaJSON string
	var emb []byte
	var asserted int
	if err := row.Scan(
		&o.ID, &o.EntityID, &o.Text, &emb, &metaJSON,
		&o.Validity.TimestampMicros, &asserted, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.Metadata = decodeMetadata([]byte(metaJSON))
	o.Embedding = decodeVector(emb)
	o.Validity.Asserted = asserted != 0
	return &o, nil
}

// =============================================================================
// Relationship CRUD
// =============================================================================

// PutRelationship inserts a new bitemporal stamp for a relationship.
func (s *SQLiteStore) PutRelationship(r *Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metaJSON, err := encodeMetadata(r.Metadata)
	if err != nil {
		return fmt.Errorf("marshal relationship metadata: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO relationships (from_id, to_id, relation_type, strength, metadata,
			validity_ts, validity_asserted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.FromID, r.ToID, r.RelationType, r.Strength, string(metaJSON),
		r.Validity.TimestampMicros, boolToInt(r.Validity.Asserted), r.CreatedAt)

	return err
}

// ListRelationshipsForEntityLive returns relationships where entityID is
// either endpoint, live at asOfMicros.
func (s *SQLiteStore) ListRelationshipsForEntityLive(entityID string, asOfMicros int64) ([]*Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT DISTINCT from_id, to_id, relation_type FROM relationships
		WHERE (from_id = ? OR to_id = ?) AND validity_ts <= ?
	`, entityID, entityID, asOfMicros)
	if err != nil {
		return nil, err
	}
	type key struct{ from, to, rel string }
	var keys []key
	for rows.Next() {
		var k key
		if err := rows.Scan(&k.from, &k.to, &k.rel); err != nil {
			rows.Close()
			return nil, err
		}
		keys = append(keys, k)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []*Relationship
	for _, k := range keys {
		row := s.db.QueryRow(`
			SELECT from_id, to_id, relation_type, strength, metadata, validity_ts, validity_asserted, created_at
			FROM relationships
			WHERE from_id = ? AND to_id = ? AND relation_type = ? AND validity_ts <= ?
			ORDER BY validity_ts DESC LIMIT 1
		`, k.from, k.to, k.rel, asOfMicros)
		r, err := scanRelationship(row)
		if err != nil {
			return nil, err
		}
		if r.Validity.Asserted {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListAllRelationshipsLive returns every relationship live at asOfMicros,
// used by graph analytics to build a full adjacency view.
func (s *SQLiteStore) ListAllRelationshipsLive(asOfMicros int64) ([]*Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT DISTINCT from_id, to_id, relation_type FROM relationships WHERE validity_ts <= ?
	`, asOfMicros)
	if err != nil {
		return nil, err
	}
	type key struct{ from, to, rel string }
	var keys []key
	for rows.Next() {
		var k key
		if err := rows.Scan(&k.from, &k.to, &k.rel); err != nil {
			rows.Close()
			return nil, err
		}
		keys = append(keys, k)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []*Relationship
	for _, k := range keys {
		row := s.db.QueryRow(`
			SELECT from_id, to_id, relation_type, strength, metadata, validity_ts, validity_asserted, created_at
			FROM relationships
			WHERE from_id = ? AND to_id = ? AND relation_type = ? AND validity_ts <= ?
			ORDER BY validity_ts DESC LIMIT 1
		`, k.from, k.to, k.rel, asOfMicros)
		r, err := scanRelationship(row)
		if err != nil {
			return nil, err
		}
		if r.Validity.Asserted {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListRelationshipHistory returns every validity stamp ever recorded for
// outgoing relationships of fromID (optionally narrowed to a specific
// toID), within [sinceMicros, untilMicros] when those bounds are non-zero,
// sorted ascending by timestamp. Unlike the Live queries above this
// includes retracted (asserted=false) rows, since evolution timelines need
// every assertion/retraction event, not just the current state.
func (s *SQLiteStore) ListRelationshipHistory(fromID, toID string, sinceMicros, untilMicros int64) ([]*Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT from_id, to_id, relation_type, strength, metadata, validity_ts, validity_asserted, created_at
		FROM relationships WHERE from_id = ?
	`
	args := []interface{}{fromID}
	if toID != "" {
		query += " AND to_id = ?"
		args = append(args, toID)
	}
	if sinceMicros > 0 {
		query += " AND validity_ts >= ?"
		args = append(args, sinceMicros)
	}
	if untilMicros > 0 {
		query += " AND validity_ts <= ?"
		args = append(args, untilMicros)
	}
	query += " ORDER BY validity_ts ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Relationship
	for rows.Next() {
		var r Relationship
		var metaJSON string
		var asserted int
		if err := rows.Scan(
			&r.FromID, &r.ToID, &r.RelationType, &r.Strength, &metaJSON,
			&r.Validity.TimestampMicros, &asserted, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		r.Metadata = decodeMetadata([]byte(metaJSON))
		r.Validity.Asserted = asserted != 0
		out = append(out, &r)
	}
	return out, rows.Err()
}

func scanRelationship(row *sql.Row) (*Relationship, error) {
	var r Relationship
	var metaJSON string
	var asserted int
	if err := row.Scan(
		&r.FromID, &r.ToID, &r.RelationType, &r.Strength, &metaJSON,
		&r.Validity.TimestampMicros, &asserted, &r.CreatedAt,
	); err != nil {
		return nil, err
	}
	r.Metadata = decodeMetadata([]byte(metaJSON))
	r.Validity.Asserted = asserted != 0
	return &r, nil
}

// =============================================================================
// Search cache
// =============================================================================

// PutSearchCacheEntry upserts a cache row keyed by QueryHash.
func (s *SQLiteStore) PutSearchCacheEntry(c *SearchCache) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO search_cache (query_hash, query_text, results, options, query_embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(query_hash) DO UPDATE SET
			query_text = excluded.query_text,
			results = excluded.results,
			options = excluded.options,
			query_embedding = excluded.query_embedding,
			created_at = excluded.created_at
	`, c.QueryHash, c.QueryText, c.Results, c.Options, encodeVector(c.QueryEmbedding), c.CreatedAtSecond)

	return err
}

// GetSearchCacheEntry retrieves a cache row by its exact hash.
func (s *SQLiteStore) GetSearchCacheEntry(hash string) (*SearchCache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c SearchCache
	var emb []byte
	err := s.db.QueryRow(`
		SELECT query_hash, query_text, results, options, query_embedding, created_at
		FROM search_cache WHERE query_hash = ?
	`, hash).Scan(&c.QueryHash, &c.QueryText, &c.Results, &c.Options, &emb, &c.CreatedAtSecond)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.QueryEmbedding = decodeVector(emb)
	return &c, nil
}

// ListSearchCacheEntries returns every cache row, used by the semantic-tier
// scan and by the janitor's TTL sweep.
func (s *SQLiteStore) ListSearchCacheEntries() ([]*SearchCache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT query_hash, query_text, results, options, query_embedding, created_at FROM search_cache`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*SearchCache
	for rows.Next() {
		var c SearchCache
		var emb []byte
		if err := rows.Scan(&c.QueryHash, &c.QueryText, &c.Results, &c.Options, &emb, &c.CreatedAtSecond); err != nil {
			return nil, err
		}
		c.QueryEmbedding = decodeVector(emb)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// DeleteSearchCacheEntry removes a single cache row by hash.
func (s *SQLiteStore) DeleteSearchCacheEntry(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM search_cache WHERE query_hash = ?`, hash)
	return err
}

// DeleteSearchCacheOlderThan purges cache rows with created_at < cutoffSecond.
func (s *SQLiteStore) DeleteSearchCacheOlderThan(cutoffSecond int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`DELETE FROM search_cache WHERE created_at < ?`, cutoffSecond)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// =============================================================================
// Graph analytics results (communities, ranks)
// =============================================================================

// PutEntityCommunities replaces the full community assignment table.
func (s *SQLiteStore) PutEntityCommunities(assignments map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM entity_communities`); err != nil {
		tx.Rollback()
		return err
	}
	for id, community := range assignments {
		if _, err := tx.Exec(`INSERT INTO entity_communities (entity_id, community_id) VALUES (?, ?)`, id, community); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// GetEntityCommunities returns the last computed community assignment.
func (s *SQLiteStore) GetEntityCommunities() (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT entity_id, community_id FROM entity_communities`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var community int
		if err := rows.Scan(&id, &community); err != nil {
			return nil, err
		}
		out[id] = community
	}
	return out, rows.Err()
}

// PutEntityRanks replaces the full PageRank score table.
func (s *SQLiteStore) PutEntityRanks(ranks map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM entity_ranks`); err != nil {
		tx.Rollback()
		return err
	}
	for id, rank := range ranks {
		if _, err := tx.Exec(`INSERT INTO entity_ranks (entity_id, pagerank) VALUES (?, ?)`, id, rank); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// GetEntityRanks returns the last computed PageRank scores.
func (s *SQLiteStore) GetEntityRanks() (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT entity_id, pagerank FROM entity_ranks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var id string
		var rank float64
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, err
		}
		out[id] = rank
	}
	return out, rows.Err()
}

// =============================================================================
// Inference rules
// =============================================================================

// PutInferenceRule upserts a named Datalog rule.
func (s *SQLiteStore) PutInferenceRule(r *InferenceRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO inference_rules (id, name, datalog, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, datalog = excluded.datalog
	`, r.ID, r.Name, r.Datalog, r.CreatedAt)

	return err
}

// GetInferenceRule retrieves a rule by id.
func (s *SQLiteStore) GetInferenceRule(id string) (*InferenceRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r InferenceRule
	err := s.db.QueryRow(`SELECT id, name, datalog, created_at FROM inference_rules WHERE id = ?`, id).
		Scan(&r.ID, &r.Name, &r.Datalog, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListInferenceRules returns every stored rule.
func (s *SQLiteStore) ListInferenceRules() ([]*InferenceRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, name, datalog, created_at FROM inference_rules ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*InferenceRule
	for rows.Next() {
		var r InferenceRule
		if err := rows.Scan(&r.ID, &r.Name, &r.Datalog, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// DeleteInferenceRule removes a rule by id.
func (s *SQLiteStore) DeleteInferenceRule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM inference_rules WHERE id = ?`, id)
	return err
}

// =============================================================================
// Memory snapshots
// =============================================================================

// PutMemorySnapshot records an aggregate-counts snapshot.
func (s *SQLiteStore) PutMemorySnapshot(snap *MemorySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	metaJSON, err := encodeMetadata(snap.Metadata)
	if err != nil {
		return fmt.Errorf("marshal snapshot metadata: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO memory_snapshots (id, entity_count, observation_count, relationship_count, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.EntityCount, snap.ObservationCount, snap.RelationshipCount, string(metaJSON), snap.CreatedAtMilli)

	return err
}

// ListMemorySnapshots returns every recorded snapshot, oldest first.
func (s *SQLiteStore) ListMemorySnapshots() ([]*MemorySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, entity_count, observation_count, relationship_count, metadata, created_at FROM memory_snapshots ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*MemorySnapshot
	for rows.Next() {
		var snap MemorySnapshot
		var metaJSON string
		if err := rows.Scan(&snap.ID, &snap.EntityCount, &snap.ObservationCount, &snap.RelationshipCount, &metaJSON, &snap.CreatedAtMilli); err != nil {
			return nil, err
		}
		snap.Metadata = decodeMetadata([]byte(metaJSON))
		out = append(out, &snap)
	}
	return out, rows.Err()
}

// =============================================================================
// Janitor support: hard delete and aging scans
// =============================================================================

// ListObservationsOlderThan returns up to limit live observations whose
// created_at is strictly before cutoffMicros, oldest first.
func (s *SQLiteStore) ListObservationsOlderThan(cutoffMicros int64, asOfMicros int64, limit int) ([]*Observation, error) {
	s.mu.RLock()
	rows, err := s.db.Query(`
		SELECT DISTINCT id FROM observations WHERE created_at < ? AND validity_ts <= ?
		ORDER BY created_at ASC
	`, cutoffMicros, asOfMicros)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []*Observation
	for _, id := range ids {
		o, err := s.GetObservationLive(id, asOfMicros)
		if err != nil || o == nil {
			continue
		}
		out = append(out, o)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// HardDeleteObservation removes every stamp of an observation id, bypassing
// bitemporal retraction. Used only by the janitor's consolidation step,
// which replaces source observations with a provenance-linked summary.
func (s *SQLiteStore) HardDeleteObservation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM observations WHERE id = ?`, id)
	return err
}

// HardDeleteEntity removes every stamp of an entity plus every stamp of its
// observations and incident relationships. mutate_memory's delete_entity
// does not call it: it appends a bitemporal retraction stamp instead.
func (s *SQLiteStore) HardDeleteEntity(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM observations WHERE entity_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM relationships WHERE from_id = ? OR to_id = ?`, id, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM entities WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}
