package store

import "database/sql"

const schemaSQL = `
PRAGMA foreign_keys = ON;
PRAGMA journal_mode = WAL;

CREATE TABLE IF NOT EXISTS memory_entries (
	id               TEXT PRIMARY KEY,
	repo_id          TEXT NOT NULL,
	type             TEXT NOT NULL,
	title            TEXT NOT NULL,
	content          TEXT NOT NULL,
	evidence_json    TEXT,
	git_sha          TEXT,
	file_refs_json   TEXT,
	file_hashes_json TEXT,
	stale            INTEGER NOT NULL DEFAULT 0,
	integrity_status TEXT NOT NULL DEFAULT 'ok',
	sensitivity      TEXT NOT NULL DEFAULT 'internal',
	created_at       INTEGER NOT NULL,
	updated_at       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memory_entries_repo ON memory_entries(repo_id);
CREATE INDEX IF NOT EXISTS idx_memory_entries_repo_type ON memory_entries(repo_id, type);
CREATE INDEX IF NOT EXISTS idx_memory_entries_updated ON memory_entries(updated_at);

CREATE VIRTUAL TABLE IF NOT EXISTS memory_entries_fts USING fts5(
	title,
	content,
	content='memory_entries',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS memory_entries_ai AFTER INSERT ON memory_entries BEGIN
	INSERT INTO memory_entries_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
END;

CREATE TRIGGER IF NOT EXISTS memory_entries_ad AFTER DELETE ON memory_entries BEGIN
	INSERT INTO memory_entries_fts(memory_entries_fts, rowid, title, content) VALUES('delete', old.rowid, old.title, old.content);
END;

CREATE TRIGGER IF NOT EXISTS memory_entries_au AFTER UPDATE ON memory_entries BEGIN
	INSERT INTO memory_entries_fts(memory_entries_fts, rowid, title, content) VALUES('delete', old.rowid, old.title, old.content);
	INSERT INTO memory_entries_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
END;

CREATE TABLE IF NOT EXISTS memory_vectors_presence (
	entry_id   TEXT PRIMARY KEY REFERENCES memory_entries(id) ON DELETE CASCADE,
	updated_at INTEGER NOT NULL
);
`

// migrate applies the schema idempotently (CREATE ... IF NOT EXISTS
// throughout, matching §4.2's "applies migrations idempotently").
func migrate(db *sql.DB) error {
	_, err := db.Exec(schemaSQL)
	return err
}
