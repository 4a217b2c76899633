// Package index mirrors a collection snapshot into SQLite so it can be
// inspected with ordinary SQL tooling. The snapshot file stays the source of
// truth; every export replaces the mirrored rows wholesale.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS entries (
	id        INTEGER PRIMARY KEY,
	path      TEXT NOT NULL UNIQUE,
	name      TEXT NOT NULL,
	tag_names TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS tags (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tag_names (
	tag_id   INTEGER NOT NULL,
	position INTEGER NOT NULL,
	name     TEXT NOT NULL,
	PRIMARY KEY (tag_id, position)
);

CREATE TABLE IF NOT EXISTS tag_implies (
	tag_id     INTEGER NOT NULL,
	implied_id INTEGER NOT NULL,
	PRIMARY KEY (tag_id, implied_id)
);

CREATE TABLE IF NOT EXISTS entry_tags (
	entry_id INTEGER NOT NULL,
	position INTEGER NOT NULL,
	tag_id   INTEGER NOT NULL,
	PRIMARY KEY (entry_id, position)
);

CREATE TABLE IF NOT EXISTS sequences (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sequence_entries (
	sequence_id INTEGER NOT NULL,
	position    INTEGER NOT NULL,
	entry_id    INTEGER NOT NULL,
	PRIMARY KEY (sequence_id, position)
);

CREATE INDEX IF NOT EXISTS idx_tag_names_name ON tag_names(name);
CREATE INDEX IF NOT EXISTS idx_entry_tags_tag ON entry_tags(tag_id);
CREATE INDEX IF NOT EXISTS idx_sequence_entries_entry ON sequence_entries(entry_id);
`

// DB wraps a sql.DB with export and query operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
