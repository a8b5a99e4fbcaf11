// Package index provides a SQLite-backed search projection of the registry
// with optional FTS5 full-text search, used by serve mode and the MCP
// server.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS apis (
	provider    TEXT NOT NULL,
	service     TEXT NOT NULL DEFAULT '',
	version     TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	filename    TEXT NOT NULL DEFAULT '',
	checksum    TEXT NOT NULL DEFAULT '',
	preferred   INTEGER NOT NULL DEFAULT 0,
	valid       INTEGER NOT NULL DEFAULT 1,
	endpoints   INTEGER NOT NULL DEFAULT 0,
	added       DATETIME,
	updated     DATETIME,
	PRIMARY KEY (provider, service, version)
);

CREATE INDEX IF NOT EXISTS idx_apis_provider ON apis(provider);
CREATE INDEX IF NOT EXISTS idx_apis_preferred ON apis(preferred);
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
