package store

// Clear wipes every record from the store. Used by manage_system's
// clear_memory action; callers are responsible for rebuilding the ANN/FTS/
// LSH indexes afterward since those live outside the SQLite store.
func (s *SQLiteStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{
		"entities", "observations", "relationships", "search_cache",
		"entity_communities", "entity_ranks", "inference_rules", "memory_snapshots",
	} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CountObservationsLive returns the number of distinct observations live
// at asOfMicros, across every entity.
func (s *SQLiteStore) CountObservationsLive(asOfMicros int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT DISTINCT id FROM observations WHERE validity_ts <= ?`, asOfMicros)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		row := s.db.QueryRow(`
			SELECT validity_asserted FROM observations
			WHERE id = ? AND validity_ts <= ? ORDER BY validity_ts DESC LIMIT 1
		`, id, asOfMicros)
		var asserted int
		if err := row.Scan(&asserted); err != nil {
			return 0, err
		}
		if asserted != 0 {
			count++
		}
	}
	return count, nil
}

// CountRelationshipsLive returns the number of distinct (from, to,
// relation_type) relationships live at asOfMicros.
func (s *SQLiteStore) CountRelationshipsLive(asOfMicros int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT DISTINCT from_id, to_id, relation_type FROM relationships WHERE validity_ts <= ?
	`, asOfMicros)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type key struct{ from, to, rel string }
	var keys []key
	for rows.Next() {
		var k key
		if err := rows.Scan(&k.from, &k.to, &k.rel); err != nil {
			return 0, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	count := 0
	for _, k := range keys {
		row := s.db.QueryRow(`
			SELECT validity_asserted FROM relationships
			WHERE from_id = ? AND to_id = ? AND relation_type = ? AND validity_ts <= ?
			ORDER BY validity_ts DESC LIMIT 1
		`, k.from, k.to, k.rel, asOfMicros)
		var asserted int
		if err := row.Scan(&asserted); err != nil {
			return 0, err
		}
		if asserted != 0 {
			count++
		}
	}
	return count, nil
}

// ListEntityHistory returns every validity stamp ever recorded for id,
// sorted ascending by timestamp (entities are append-only: PutEntity
// always inserts a fresh stamp, never updates in place).
func (s *SQLiteStore) ListEntityHistory(id string) ([]*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, name, type, metadata, content_embedding, name_embedding,
			validity_ts, validity_asserted, created_at, updated_at
		FROM entities WHERE id = ? ORDER BY validity_ts ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entity
	for rows.Next() {
		var e Entity
		var metaJSON string
		var contentEmb, nameEmb []byte
		var asserted int
		if err := rows.Scan(
			&e.ID, &e.Name, &e.Type, &metaJSON, &contentEmb, &nameEmb,
			&e.Validity.TimestampMicros, &asserted, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		e.Metadata = decodeMetadata([]byte(metaJSON))
		e.ContentEmbedding = decodeVector(contentEmb)
		e.NameEmbedding = decodeVector(nameEmb)
		e.Validity.Asserted = asserted != 0
		out = append(out, &e)
	}
	return out, rows.Err()
}

// ListObservationHistory returns every validity stamp ever recorded for
// observation id, sorted ascending by timestamp.
func (s *SQLiteStore) ListObservationHistory(id string) ([]*Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, entity_id, text, embedding, metadata, validity_ts, validity_asserted, created_at, updated_at
		FROM observations WHERE id = ? ORDER BY validity_ts ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Observation
	for rows.Next() {
		var o Observation
		var metaJSON string
		var emb []byte
		var asserted int
		if err := rows.Scan(
			&o.ID, &o.EntityID, &o.Text, &emb, &metaJSON,
			&o.Validity.TimestampMicros, &asserted, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		o.Metadata = decodeMetadata([]byte(metaJSON))
		o.Embedding = decodeVector(emb)
		o.Validity.Asserted = asserted != 0
		out = append(out, &o)
	}
	return out, rows.Err()
}
