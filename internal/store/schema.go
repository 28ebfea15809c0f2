package store

// schema defines every table backing memoryd's bitemporal record store.
//
// Unlike GoKitt's notes table (a version-per-row "current snapshot" scheme
// keyed by (id, version) with is_current/valid_from/valid_to columns), every
// versioned table here carries the full bitemporal key (id, validity_ts,
// validity_asserted): a record is "live at T" when the row with the largest
// validity_ts <= T has validity_asserted = 1. Puts never update a row in
// place; retraction and correction both insert a new stamped row. The
// hard-delete paths (HardDeleteObservation, HardDeleteEntity, Clear) remove
// rows outright.
const schema = `
CREATE TABLE IF NOT EXISTS entities (
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    metadata TEXT NOT NULL DEFAULT '{}',
    content_embedding BLOB,
    name_embedding BLOB,
    validity_ts INTEGER NOT NULL,
    validity_asserted INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (id, validity_ts)
);

CREATE INDEX IF NOT EXISTS idx_entities_id_ts ON entities(id, validity_ts DESC);
CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);
CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);

CREATE TABLE IF NOT EXISTS observations (
    id TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    text TEXT NOT NULL,
    embedding BLOB,
    metadata TEXT NOT NULL DEFAULT '{}',
    validity_ts INTEGER NOT NULL,
    validity_asserted INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (id, validity_ts)
);

CREATE INDEX IF NOT EXISTS idx_observations_id_ts ON observations(id, validity_ts DESC);
CREATE INDEX IF NOT EXISTS idx_observations_entity ON observations(entity_id);

CREATE TABLE IF NOT EXISTS relationships (
    from_id TEXT NOT NULL,
    to_id TEXT NOT NULL,
    relation_type TEXT NOT NULL,
    strength REAL NOT NULL DEFAULT 1.0,
    metadata TEXT NOT NULL DEFAULT '{}',
    validity_ts INTEGER NOT NULL,
    validity_asserted INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (from_id, to_id, relation_type, validity_ts)
);

CREATE INDEX IF NOT EXISTS idx_relationships_key_ts ON relationships(from_id, to_id, relation_type, validity_ts DESC);
CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships(from_id);
CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_id);

CREATE TABLE IF NOT EXISTS search_cache (
    query_hash TEXT PRIMARY KEY,
    query_text TEXT NOT NULL,
    results BLOB NOT NULL,
    options BLOB NOT NULL,
    query_embedding BLOB,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS entity_communities (
    entity_id TEXT PRIMARY KEY,
    community_id INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS entity_ranks (
    entity_id TEXT PRIMARY KEY,
    pagerank REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS inference_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    datalog TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS memory_snapshots (
    id TEXT PRIMARY KEY,
    entity_count INTEGER NOT NULL,
    observation_count INTEGER NOT NULL,
    relationship_count INTEGER NOT NULL,
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at INTEGER NOT NULL
);
`

// migrations holds idempotent ALTER/backfill statements applied after
// schema creation, for columns added after a store's tables already existed
// (mirrors GoKitt's practice of widening notes/entities in place rather than
// bumping a schema version table).
var migrations = []string{
	`ALTER TABLE entities ADD COLUMN validity_asserted INTEGER NOT NULL DEFAULT 1`,
	`ALTER TABLE observations ADD COLUMN validity_asserted INTEGER NOT NULL DEFAULT 1`,
	`ALTER TABLE relationships ADD COLUMN validity_asserted INTEGER NOT NULL DEFAULT 1`,
}

// applyMigrations runs each migration and ignores every failure; the
// expected one is "duplicate column", since ALTER TABLE ADD COLUMN has no
// IF NOT EXISTS form in SQLite.
func applyMigrations(exec func(query string) error) {
	for _, m := range migrations {
		_ = exec(m) // best-effort: column already present is the common case
	}
}
