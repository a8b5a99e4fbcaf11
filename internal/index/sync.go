package index

import (
	"log/slog"

	"github.com/starford/raido/internal/parser"
	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/storage"
)

// Sync projects the registry tree into the index:
//   - entries whose materialized document changed are re-read and upserted
//   - rows whose entry left the registry are deleted
//
// Documents are only read from disk when the recorded hash differs from the
// indexed checksum, so a steady-state sync touches no files.
func Sync(db *DB, reg registry.Registry, store storage.Provider, logger *slog.Logger) error {
	indexed, err := db.AllKeys()
	if err != nil {
		return err
	}

	live := make(map[string]struct{})
	for _, pn := range reg.ProviderNames() {
		p := reg[pn]
		for _, sn := range p.ServiceNames() {
			svc := p.APIs[sn]
			for _, vn := range svc.VersionKeys() {
				md := svc.Versions[vn]
				if md.Filename == "" {
					continue
				}
				key := pn + "/" + sn + "/" + vn
				live[key] = struct{}{}

				if indexed[key] == md.Hash {
					continue
				}
				row := rowFor(pn, sn, vn, md)
				if data, readErr := store.Read(md.Filename); readErr == nil {
					if res, parseErr := parser.Parse(data); parseErr == nil {
						row.Title = res.Title
						row.Description = docDescription(res.Doc)
					}
				} else {
					logger.Warn("sync: read failed", slog.String("path", md.Filename), slog.String("error", readErr.Error()))
				}
				if err := db.UpsertEntry(row); err != nil {
					logger.Warn("sync: index failed", slog.String("key", key), slog.String("error", err.Error()))
				} else {
					logger.Debug("sync: indexed", slog.String("key", key))
				}
			}
		}
	}

	// Remove stale rows.
	for key := range indexed {
		if _, ok := live[key]; ok {
			continue
		}
		pn, sn, vn := splitKey(key)
		if err := db.DeleteEntry(pn, sn, vn); err != nil {
			logger.Warn("sync: delete failed", slog.String("key", key), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("key", key))
		}
	}

	return nil
}

func rowFor(provider, service, version string, md *registry.VersionEntry) EntryRow {
	return EntryRow{
		Provider:  provider,
		Service:   service,
		Version:   version,
		Filename:  md.Filename,
		Checksum:  md.Hash,
		Preferred: md.Preferred != nil && *md.Preferred,
		Valid:     md.Valid == nil || *md.Valid,
		Endpoints: md.Endpoints,
		Added:     md.Added,
		Updated:   md.Updated,
	}
}

func docDescription(doc map[string]any) string {
	info, ok := doc["info"].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := info["description"].(string)
	return s
}
