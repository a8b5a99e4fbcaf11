// Package scan walks the local tree of materialized API description
// documents and parses each one's identity, producing the transient
// path-keyed map the metadata reconciler merges into the registry.
package scan

import (
	"log/slog"

	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/parser"
	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/storage"
)

// Document is one discovered description document, keyed by its path
// relative to the tree root.
type Document struct {
	Path string
	Name string
	Hash string

	Format        string
	FormatVersion string
	Version       string

	// HasService is true when the document carries an explicit
	// x-serviceName marker (even an empty one).
	HasService   bool
	ServiceName  string
	ProviderName string

	Origins    []registry.Origin
	Preferred  *bool
	Unofficial bool
	Endpoints  int

	ProviderPatch map[string]any
	ServicePatch  map[string]any
}

// Tree walks pathSpec (relative to the store root) and parses every
// description document under it. Files that fail to parse are logged and
// skipped; the scan itself only fails when the walk does.
func Tree(store storage.Provider, pathSpec string, logger *slog.Logger) (map[string]*Document, error) {
	metas, err := store.List(pathSpec)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*Document, len(metas))
	for _, m := range metas {
		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("scan: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		res, err := parser.Parse(data)
		if err != nil {
			logger.Warn("scan: parse failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		out[m.Path] = &Document{
			Path:          m.Path,
			Hash:          checksum.Sum(data),
			Format:        res.Format,
			FormatVersion: res.FormatVersion,
			Version:       res.Version,
			HasService:    res.HasService,
			ServiceName:   res.ServiceName,
			ProviderName:  res.ProviderName,
			Origins:       res.Origins,
			Preferred:     res.Preferred,
			Unofficial:    res.Unofficial,
			Endpoints:     res.Endpoints,
			ProviderPatch: res.ProviderPatch,
			ServicePatch:  res.ServicePatch,
		}
		logger.Debug("scan: discovered", slog.String("path", m.Path))
	}
	return out, nil
}
