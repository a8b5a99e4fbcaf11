package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/fetch"
	"github.com/starford/raido/internal/parser"
	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/run"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/validate"
)

// processor executes per-candidate work for one run. All failures are
// caught at this boundary and converted into ledger entries; nothing here
// aborts the run.
type processor struct {
	rc        *run.Context
	client    *fetch.Client
	store     storage.Provider
	validator validate.Validator
	pathSpec  string
	force     bool
	logger    *slog.Logger

	ingested []*registry.Candidate
}

// update re-fetches, validates, and persists one candidate's document.
func (p *processor) update(ctx context.Context, cand *registry.Candidate) {
	md := cand.MD

	resp, err := p.retrieve(ctx, cand.GP, md)
	if err != nil {
		p.rc.Record(cand, 0, err, "retrieval")
		p.logger.Warn("✗ retrieval", slog.String("candidate", candKey(cand)), slog.String("error", err.Error()))
		return
	}
	if !resp.OK {
		// Persist the status so later runs can triage without re-fetching.
		md.StatusCode = resp.Status
		if resp.MediaType != "" {
			md.MediaType = resp.MediaType
		}
		if md.Preferred != nil && *md.Preferred {
			// An unreachable document cannot remain the preferred version.
			f := false
			md.Preferred = &f
		}
		p.rc.Store.Touch()
		p.rc.Record(cand, resp.Status, nil, "retrieval")
		p.logger.Warn("✗ fetch", slog.String("candidate", candKey(cand)), slog.Int("status", resp.Status))
		return
	}
	md.StatusCode = 0
	if resp.MediaType != "" {
		md.MediaType = resp.MediaType
	}

	parsed, err := parser.Parse(resp.Body)
	if err != nil {
		p.invalidate(cand, err.Error())
		return
	}

	doc := parsed.Doc
	if cand.GP.Patch != nil {
		doc = registry.DeepOverlay(doc, cand.GP.Patch)
	}
	if cand.Parent.Patch != nil {
		doc = registry.DeepOverlay(doc, cand.Parent.Patch)
	}

	vres, err := p.validator.Validate(doc, resp.Body, sourceURL(md))
	if err != nil {
		p.rc.Record(cand, 0, err, "validation")
		p.logger.Warn("✗ validator", slog.String("candidate", candKey(cand)), slog.String("error", err.Error()))
		return
	}
	if !vres.Valid {
		// Never persist content known to be invalid over a previously
		// valid copy.
		p.invalidate(cand, vres.Message)
		return
	}

	valid := true
	md.Valid = &valid
	md.Fixes = vres.Fixes
	md.AutoUpgrade = vres.AutoUpgrade
	md.Format = parsed.Format
	md.FormatVersion = parsed.FormatVersion
	md.Endpoints = parsed.Endpoints

	out := vres.Doc
	if out == nil {
		out = doc
	}
	content, err := yaml.Marshal(out)
	if err != nil {
		p.rc.Record(cand, 0, err, "serialization")
		return
	}

	if v := registry.SanitizeVersion(parsed.Version); v != "" && v != cand.Version {
		p.renameVersion(cand, v)
	}
	if md.Filename == "" {
		md.Name, md.Filename = p.docPath(cand.Provider, cand.Service, cand.Version, parsed.Format)
	}

	hash := checksum.Sum(content)
	if p.force || hash != md.Hash {
		if err := p.store.Write(md.Filename, content); err != nil {
			p.rc.Record(cand, 0, err, "write")
			p.logger.Warn("✗ write", slog.String("candidate", candKey(cand)), slog.String("error", err.Error()))
			return
		}
		md.Hash = hash
		md.Updated = p.rc.Now
	}
	p.rc.Store.Touch()
	p.logger.Debug("✓ updated", slog.String("candidate", candKey(cand)))
}

// invalidate flags the entry invalid and records the failure without
// touching the on-disk document.
func (p *processor) invalidate(cand *registry.Candidate, msg string) {
	f := false
	cand.MD.Valid = &f
	p.rc.Store.Touch()
	p.rc.Record(cand, 0, errors.New(msg), "validation")
	p.logger.Warn("✗ invalid", slog.String("candidate", candKey(cand)), slog.String("error", msg))
}

// retrieve satisfies a document request from the provider's in-memory data
// buffer, then the cached file, then the network.
func (p *processor) retrieve(ctx context.Context, gp *registry.Provider, md *registry.VersionEntry) (*fetch.Response, error) {
	src := sourceURL(md)
	for _, item := range gp.Data {
		if item.URL == src {
			return &fetch.Response{OK: true, Status: 200, Body: []byte(item.Text)}, nil
		}
	}
	if md.Cached != "" {
		if data, err := os.ReadFile(md.Cached); err == nil {
			return &fetch.Response{OK: true, Status: 200, Body: data}, nil
		}
	}
	if src == "" {
		return nil, errors.New("commands: candidate has no source url")
	}
	return p.client.Get(ctx, src)
}

// renameVersion moves the registry key and the on-disk path when a
// refreshed document reports a different version.
func (p *processor) renameVersion(cand *registry.Candidate, newVersion string) {
	md := cand.MD
	old := cand.Version

	if md.Filename != "" {
		newFilename := replaceVersionSegment(md.Filename, newVersion)
		if newFilename != md.Filename {
			if err := p.store.Move(md.Filename, newFilename); err != nil {
				p.logger.Warn("rename: move failed, writing fresh",
					slog.String("from", md.Filename), slog.String("error", err.Error()))
			}
			md.Filename = newFilename
		}
	}

	delete(cand.Parent.Versions, old)
	cand.Parent.Versions[newVersion] = md
	cand.Version = newVersion
	p.rc.Store.Touch()
	p.logger.Info("version renamed",
		slog.String("provider", cand.Provider), slog.String("service", cand.Service),
		slog.String("from", old), slog.String("to", newVersion))
}

// replaceVersionSegment swaps the second-to-last path segment, which by
// layout convention holds the version.
func replaceVersionSegment(filename, version string) string {
	segs := strings.Split(filename, "/")
	if len(segs) < 2 {
		return filename
	}
	segs[len(segs)-2] = version
	return strings.Join(segs, "/")
}

// docPath builds the canonical on-disk location for a document.
func (p *processor) docPath(provider, service, version, format string) (name, filename string) {
	name = format + ".yaml"
	parts := []string{p.pathSpec, provider}
	if service != "" {
		parts = append(parts, service)
	}
	parts = append(parts, version, name)
	return name, path.Join(parts...)
}

// ingestLeads turns every unmatched lead into a new registry entry and
// processes it like any other update candidate.
func (p *processor) ingestLeads(ctx context.Context, leads map[string]*registry.Lead) {
	urls := make([]string, 0, len(leads))
	for u := range leads {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	for _, u := range urls {
		cand, err := p.ingestLead(ctx, u, leads[u])
		if err != nil {
			p.rc.RecordAt(leads[u].Provider, leads[u].Service, "", 0, err, "ingest "+u)
			p.logger.Warn("✗ ingest", slog.String("url", u), slog.String("error", err.Error()))
			continue
		}
		p.ingested = append(p.ingested, cand)
		p.update(ctx, cand)
	}
}

// ingestLead seeds a new candidate from a lead's attribution and its
// document's own identity.
func (p *processor) ingestLead(ctx context.Context, docURL string, lead *registry.Lead) (*registry.Candidate, error) {
	body, err := p.leadBody(ctx, docURL, lead)
	if err != nil {
		return nil, err
	}
	parsed, err := parser.Parse(body)
	if err != nil {
		return nil, err
	}

	provider := lead.Provider
	if parsed.ProviderName != "" {
		provider = parsed.ProviderName
	}
	if provider == "" {
		provider = hostOf(docURL)
	}
	if provider == "" {
		return nil, fmt.Errorf("commands: cannot attribute lead %s to a provider", docURL)
	}
	service := lead.Service
	if parsed.HasService {
		service = parsed.ServiceName
	}
	version := registry.SanitizeVersion(parsed.Version)
	if version == "" {
		version = "1.0.0"
	}

	reg := p.rc.Store.Reg
	pr := reg.GetOrCreateProvider(provider)
	if pr.Host == "" {
		pr.Host = hostOf(docURL)
	}
	svc := pr.GetOrCreateService(service)

	entry, ok := svc.Versions[version]
	if !ok {
		entry = &registry.VersionEntry{Added: p.rc.Now}
		svc.Versions[version] = entry
	}
	entry.Source = &registry.Origin{URL: docURL, Format: parsed.Format, Version: parsed.FormatVersion}
	if lead.File != "" {
		entry.Cached = lead.File
	}
	if lead.Preferred != nil {
		entry.Preferred = lead.Preferred
	}
	entry.Run = p.rc.Token
	p.rc.Store.Touch()

	return &registry.Candidate{
		Provider: provider,
		Driver:   pr.Driver,
		Service:  service,
		Version:  version,
		Parent:   svc,
		GP:       pr,
		MD:       entry,
	}, nil
}

func (p *processor) leadBody(ctx context.Context, docURL string, lead *registry.Lead) ([]byte, error) {
	if lead.File != "" {
		if data, err := os.ReadFile(lead.File); err == nil {
			return data, nil
		}
	}
	resp, err := p.client.Get(ctx, docURL)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("commands: lead fetch %s: status %d", docURL, resp.Status)
	}
	return resp.Body, nil
}

// reconcilePreferred ensures exactly one version of each touched
// multi-version service carries the preferred flag: the most recently
// added reachable version wins, ties broken by the lexicographically
// greatest version string.
func (p *processor) reconcilePreferred(cands []*registry.Candidate) {
	services := make(map[*registry.Service]bool)
	for _, c := range cands {
		services[c.Parent] = true
	}
	for _, c := range p.ingested {
		services[c.Parent] = true
	}

	for s := range services {
		if len(s.Versions) < 2 {
			continue
		}
		bestKey := ""
		var bestAdded time.Time
		for _, k := range s.VersionKeys() {
			e := s.Versions[k]
			if e.StatusCode != 0 {
				continue
			}
			if e.Added.After(bestAdded) || (e.Added.Equal(bestAdded) && k > bestKey) {
				bestAdded = e.Added
				bestKey = k
			}
		}
		if bestKey == "" {
			continue
		}
		for k, e := range s.Versions {
			want := k == bestKey
			if e.Preferred == nil || *e.Preferred != want {
				v := want
				e.Preferred = &v
				p.rc.Store.Touch()
			}
		}
	}
}

func sourceURL(md *registry.VersionEntry) string {
	if md.Source == nil {
		return ""
	}
	return md.Source.URL
}

func hostOf(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func candKey(cand *registry.Candidate) string {
	if cand.Service == "" {
		return cand.Provider + ":" + cand.Version
	}
	return cand.Provider + ":" + cand.Service + ":" + cand.Version
}
