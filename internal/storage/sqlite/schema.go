package sqlite

// Schema is the embedded SQLite schema for the embedded single-file
// storage backend (spec §4.1). Embeddings are stored as binary BLOBs
// (see embedding.go) since sqlite has no native vector type; similarity
// search is computed application-side over the candidate rows.
const Schema = `
CREATE TABLE IF NOT EXISTS memories (
	id               TEXT PRIMARY KEY,
	workspace_id     TEXT NOT NULL,
	tenant_id        TEXT NOT NULL DEFAULT '',
	context_id       TEXT NOT NULL DEFAULT '',
	content          TEXT NOT NULL,
	content_hash     TEXT NOT NULL,
	abstract         TEXT NOT NULL DEFAULT '',
	overview         TEXT NOT NULL DEFAULT '',
	type             TEXT NOT NULL,
	subtype          TEXT NOT NULL DEFAULT '',
	importance       REAL NOT NULL DEFAULT 0.5,
	pinned           INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'active',
	tags             TEXT NOT NULL DEFAULT '[]',
	metadata         TEXT NOT NULL DEFAULT '{}',
	embedding        BLOB,
	embedding_dim    INTEGER NOT NULL DEFAULT 0,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL,
	last_accessed_at DATETIME NOT NULL,
	access_count     INTEGER NOT NULL DEFAULT 0,
	deleted_at       DATETIME,
	source_memory_id TEXT NOT NULL DEFAULT '',
	UNIQUE(workspace_id, content_hash)
);

CREATE INDEX IF NOT EXISTS idx_memories_workspace_status ON memories(workspace_id, status);
CREATE INDEX IF NOT EXISTS idx_memories_workspace_updated ON memories(workspace_id, updated_at);

CREATE TABLE IF NOT EXISTS associations (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	source_id    TEXT NOT NULL,
	target_id    TEXT NOT NULL,
	relationship TEXT NOT NULL,
	strength     REAL NOT NULL DEFAULT 1.0,
	metadata     TEXT NOT NULL DEFAULT '{}',
	created_at   DATETIME NOT NULL,
	UNIQUE(source_id, target_id, relationship)
);

CREATE INDEX IF NOT EXISTS idx_assoc_workspace_source ON associations(workspace_id, source_id);
CREATE INDEX IF NOT EXISTS idx_assoc_workspace_target ON associations(workspace_id, target_id);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
