package index

import (
	"fmt"
	"strings"
	"time"
)

// EntryRow is the search projection of one registry version entry.
type EntryRow struct {
	Provider    string    `json:"provider"`
	Service     string    `json:"service,omitempty"`
	Version     string    `json:"version"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Filename    string    `json:"filename"`
	Checksum    string    `json:"checksum"`
	Preferred   bool      `json:"preferred"`
	Valid       bool      `json:"valid"`
	Endpoints   int       `json:"endpoints"`
	Added       time.Time `json:"added"`
	Updated     time.Time `json:"updated"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Provider string `json:"provider"`
	Service  string `json:"service,omitempty"`
	Version  string `json:"version"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
}

// Key identifies one entry row.
func (r EntryRow) Key() string {
	return r.Provider + "/" + r.Service + "/" + r.Version
}

func splitKey(key string) (provider, service, version string) {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) != 3 {
		return key, "", ""
	}
	return parts[0], parts[1], parts[2]
}

// UpsertEntry inserts or replaces an entry row and its FTS document within
// a transaction.
func (db *DB) UpsertEntry(r EntryRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO apis (provider, service, version, title, description, filename, checksum, preferred, valid, endpoints, added, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider, service, version) DO UPDATE SET
			title       = excluded.title,
			description = excluded.description,
			filename    = excluded.filename,
			checksum    = excluded.checksum,
			preferred   = excluded.preferred,
			valid       = excluded.valid,
			endpoints   = excluded.endpoints,
			added       = excluded.added,
			updated     = excluded.updated
	`, r.Provider, r.Service, r.Version, r.Title, r.Description, r.Filename, r.Checksum,
		r.Preferred, r.Valid, r.Endpoints, r.Added, r.Updated)
	if err != nil {
		return fmt.Errorf("index: upsert entry: %w", err)
	}

	if err := ftsUpsert(tx, r.Key(), r.Provider, r.Service, r.Title, r.Description); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteEntry removes an entry row and its FTS document.
func (db *DB) DeleteEntry(provider, service, version string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, provider+"/"+service+"/"+version)
	_, _ = tx.Exec(`DELETE FROM apis WHERE provider = ? AND service = ? AND version = ?`,
		provider, service, version)
	return tx.Commit()
}

// GetEntry returns one entry row, or nil when absent.
func (db *DB) GetEntry(provider, service, version string) (*EntryRow, error) {
	row := db.conn.QueryRow(`
		SELECT provider, service, version, title, description, filename, checksum, preferred, valid, endpoints, added, updated
		FROM apis WHERE provider = ? AND service = ? AND version = ?
	`, provider, service, version)
	var r EntryRow
	err := row.Scan(&r.Provider, &r.Service, &r.Version, &r.Title, &r.Description,
		&r.Filename, &r.Checksum, &r.Preferred, &r.Valid, &r.Endpoints, &r.Added, &r.Updated)
	if err != nil {
		return nil, nil // not found is fine
	}
	return &r, nil
}

// ListProviders returns provider names with entry counts, sorted by name.
func (db *DB) ListProviders() (map[string]int, error) {
	rows, err := db.conn.Query(`SELECT provider, count(*) FROM apis GROUP BY provider`)
	if err != nil {
		return nil, fmt.Errorf("index: list providers: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var p string
		var n int
		if err := rows.Scan(&p, &n); err != nil {
			return nil, err
		}
		out[p] = n
	}
	return out, rows.Err()
}

// ListByProvider returns every entry row under a provider, sorted.
func (db *DB) ListByProvider(provider string) ([]EntryRow, error) {
	rows, err := db.conn.Query(`
		SELECT provider, service, version, title, description, filename, checksum, preferred, valid, endpoints, added, updated
		FROM apis WHERE provider = ? ORDER BY service, version
	`, provider)
	if err != nil {
		return nil, fmt.Errorf("index: list by provider: %w", err)
	}
	defer rows.Close()
	var out []EntryRow
	for rows.Next() {
		var r EntryRow
		if err := rows.Scan(&r.Provider, &r.Service, &r.Version, &r.Title, &r.Description,
			&r.Filename, &r.Checksum, &r.Preferred, &r.Valid, &r.Endpoints, &r.Added, &r.Updated); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AllKeys returns every indexed (provider, service, version) key with its
// recorded checksum, for stale-row reconciliation.
func (db *DB) AllKeys() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT provider, service, version, checksum FROM apis`)
	if err != nil {
		return nil, fmt.Errorf("index: all keys: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, s, v, cs string
		if err := rows.Scan(&p, &s, &v, &cs); err != nil {
			return nil, err
		}
		out[p+"/"+s+"/"+v] = cs
	}
	return out, rows.Err()
}

// Stats returns aggregate counts for the status endpoint.
func (db *DB) Stats() (providers, entries, invalid int, err error) {
	if err = db.conn.QueryRow(`SELECT count(DISTINCT provider), count(*) FROM apis`).Scan(&providers, &entries); err != nil {
		return 0, 0, 0, fmt.Errorf("index: stats: %w", err)
	}
	if err = db.conn.QueryRow(`SELECT count(*) FROM apis WHERE valid = 0`).Scan(&invalid); err != nil {
		return 0, 0, 0, fmt.Errorf("index: stats: %w", err)
	}
	return providers, entries, invalid, nil
}
