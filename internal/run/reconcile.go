package run

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/scan"
)

// SmallProviderCap is the service count at or above which a provider is
// skipped by the marking phase under the small run option. Keeps
// bounded-time CI runs from touching the largest providers.
const SmallProviderCap = 50

// ReconcileOptions adjusts metadata reconciliation behaviour.
type ReconcileOptions struct {
	// Small caps the marking phase for providers with many services.
	Small bool
}

// Reconcile merges discovered documents into the registry in place.
//
// With an empty discovery set (fast, incremental runs) only the marking
// phase runs: every entry whose filename is under pathSpec gets the current
// run token. With a non-empty set, each document is decomposed into its
// (provider, service, version) identity, missing nodes are auto-vivified,
// and a fresh entry is overlaid onto any existing one. The added timestamp
// is set exactly once, the first time an entry is observed.
func (c *Context) Reconcile(docs map[string]*scan.Document, pathSpec string, opts ReconcileOptions) {
	reg := c.Store.Reg

	if len(docs) == 0 {
		c.mark(reg, pathSpec, opts)
		return
	}

	paths := make([]string, 0, len(docs))
	for p := range docs {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		c.ingest(reg, docs[path])
	}
}

// mark flags every in-scope entry with the current run token.
func (c *Context) mark(reg registry.Registry, pathSpec string, opts ReconcileOptions) {
	for _, pn := range reg.ProviderNames() {
		p := reg[pn]
		if opts.Small && len(p.APIs) >= SmallProviderCap {
			c.Logger.Debug("reconcile: provider over small cap, skipping",
				slog.String("provider", pn), slog.Int("services", len(p.APIs)))
			continue
		}
		for _, sn := range p.ServiceNames() {
			s := p.APIs[sn]
			for _, vn := range s.VersionKeys() {
				e := s.Versions[vn]
				if !strings.HasPrefix(e.Filename, pathSpec) {
					continue
				}
				e.Run = c.Token
				c.Store.Touch()
			}
		}
	}
}

// ingest merges one discovered document into the registry.
func (c *Context) ingest(reg registry.Registry, doc *scan.Document) {
	provider, service, version, name := identity(doc)
	if provider == "" || version == "" {
		c.Logger.Warn("reconcile: document missing identity, skipping",
			slog.String("path", doc.Path))
		return
	}

	p := reg.GetOrCreateProvider(provider)
	s := p.GetOrCreateService(service)

	// Patches attach at provider/service granularity and are replaced, not
	// merged, on each ingestion.
	if doc.ProviderPatch != nil {
		p.Patch = doc.ProviderPatch
	}
	if doc.ServicePatch != nil {
		s.Patch = doc.ServicePatch
	}

	origins := doc.Origins
	if len(origins) == 0 {
		origins = []registry.Origin{{}}
	}
	source := origins[len(origins)-1]
	history := append([]registry.Origin(nil), origins[:len(origins)-1]...)

	fresh := &registry.VersionEntry{
		Name:          name,
		Filename:      doc.Path,
		Hash:          doc.Hash,
		Format:        doc.Format,
		FormatVersion: doc.FormatVersion,
		Source:        &source,
		History:       history,
		Preferred:     doc.Preferred,
		Unofficial:    doc.Unofficial,
		Endpoints:     doc.Endpoints,
		Run:           c.Token,
	}

	entry, ok := s.Versions[version]
	if !ok {
		entry = &registry.VersionEntry{}
		s.Versions[version] = entry
	}
	registry.MergeEntry(entry, fresh)
	if entry.Added.IsZero() {
		entry.Added = c.Now
	}
	c.Store.Touch()
}

// identity resolves a document's (provider, service, version, name).
// Document-carried identity wins; trailing path segments are the fallback,
// popped in the fixed order name, version, [service], provider. Service is
// present only when the document carries an explicit service-name marker.
func identity(doc *scan.Document) (provider, service, version, name string) {
	segs := strings.Split(strings.Trim(doc.Path, "/"), "/")
	pop := func() string {
		if len(segs) == 0 {
			return ""
		}
		last := segs[len(segs)-1]
		segs = segs[:len(segs)-1]
		return last
	}

	name = pop()
	version = pop()
	if doc.HasService && doc.ServiceName != "" {
		service = doc.ServiceName
		pop()
	}
	provider = pop()

	if doc.Version != "" {
		version = doc.Version
	}
	version = registry.SanitizeVersion(version)
	if doc.ProviderName != "" {
		provider = doc.ProviderName
	}
	return provider, service, version, name
}
