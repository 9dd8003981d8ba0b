// Package index provides a SQLite-backed store of extracted dream entries,
// metric values and conflicts, with optional FTS5 full-text search.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	path       TEXT PRIMARY KEY,
	checksum   TEXT NOT NULL DEFAULT '',
	warnings   TEXT NOT NULL DEFAULT '[]',
	indexed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS entries (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	document       TEXT NOT NULL REFERENCES documents(path) ON DELETE CASCADE,
	position       INTEGER NOT NULL,
	date           TEXT NOT NULL,
	title          TEXT NOT NULL DEFAULT '',
	content        TEXT NOT NULL DEFAULT '',
	block_id       TEXT NOT NULL DEFAULT '',
	word_count     INTEGER NOT NULL DEFAULT 0,
	metrics        TEXT NOT NULL DEFAULT '{}',
	metrics_source TEXT NOT NULL DEFAULT '',
	has_conflicts  INTEGER NOT NULL DEFAULT 0,
	unknown        TEXT NOT NULL DEFAULT '[]',
	callout        TEXT NOT NULL DEFAULT '{}',
	UNIQUE(document, position)
);

CREATE TABLE IF NOT EXISTS metric_values (
	entry_id INTEGER NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
	metric   TEXT NOT NULL,
	value    TEXT NOT NULL,
	num      REAL
);

CREATE TABLE IF NOT EXISTS conflicts (
	document          TEXT NOT NULL REFERENCES documents(path) ON DELETE CASCADE,
	block_id          TEXT NOT NULL DEFAULT '',
	metric            TEXT NOT NULL,
	frontmatter_value TEXT NOT NULL,
	callout_value     TEXT NOT NULL,
	severity          TEXT NOT NULL,
	suggested         TEXT NOT NULL,
	applied           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_date ON entries(date);
CREATE INDEX IF NOT EXISTS idx_metric_values_metric ON metric_values(metric);
CREATE INDEX IF NOT EXISTS idx_conflicts_document ON conflicts(document);
`

// DB wraps a sql.DB with index-specific operations.
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
