//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS apis_fts USING fts5(
			key UNINDEXED,
			provider,
			service,
			title,
			description,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, key, provider, service, title, description string) error {
	_, _ = tx.Exec(`DELETE FROM apis_fts WHERE key = ?`, key)
	_, err := tx.Exec(`INSERT INTO apis_fts (key, provider, service, title, description) VALUES (?, ?, ?, ?, ?)`,
		key, provider, service, title, description)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, key string) {
	_, _ = tx.Exec(`DELETE FROM apis_fts WHERE key = ?`, key)
}

// Search performs an FTS5 full-text search and returns matching entries with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT key,
		       title,
		       snippet(apis_fts, 4, '<b>', '</b>', '...', 64)
		FROM apis_fts
		WHERE apis_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var key string
		var r SearchResult
		if err := rows.Scan(&key, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		r.Provider, r.Service, r.Version = splitKey(key)
		out = append(out, r)
	}
	return out, rows.Err()
}
