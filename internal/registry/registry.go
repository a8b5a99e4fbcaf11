// Package registry defines the persistent metadata tree for harvested API
// description documents: provider → service → version → entry, plus the
// run-scoped lead and candidate types that bind into it.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Driver names form a closed set; an unknown driver in the registry file is
// a configuration error surfaced at load time.
const (
	DriverNop      = "nop"
	DriverURL      = "url"
	DriverExternal = "external"
	DriverAPIsJSON = "apisjson"
	DriverCatalog  = "catalog"
	DriverGoogle   = "google"
	DriverGithub   = "github"
	DriverZip      = "zip"
	DriverBlob     = "blob"
	DriverHTML     = "html"
)

// KnownDrivers maps every valid driver name to true.
var KnownDrivers = map[string]bool{
	DriverNop:      true,
	DriverURL:      true,
	DriverExternal: true,
	DriverAPIsJSON: true,
	DriverCatalog:  true,
	DriverGoogle:   true,
	DriverGithub:   true,
	DriverZip:      true,
	DriverBlob:     true,
	DriverHTML:     true,
}

// Registry is the root mapping from provider name (a DNS-like domain
// identity) to its provider record.
type Registry map[string]*Provider

// Provider holds one provider's driver configuration and its services.
type Provider struct {
	Driver string              `yaml:"driver,omitempty"`
	Host   string              `yaml:"host,omitempty"`
	Patch  map[string]any      `yaml:"patch,omitempty"`
	Config *DriverConfig       `yaml:"config,omitempty"`
	APIs   map[string]*Service `yaml:"apis,omitempty"`

	// Data is a per-run scratch buffer of pre-fetched document bodies
	// populated by some drivers. Never persisted.
	Data []DataItem `yaml:"-"`
}

// DataItem is a pre-fetched document body keyed by its URL, used so a later
// retrieval phase can be satisfied from memory instead of re-fetching.
type DataItem struct {
	URL  string
	Text string
}

// DriverConfig carries the per-provider knobs the acquisition drivers read.
// Only the fields relevant to the provider's driver are set.
type DriverConfig struct {
	URL  string   `yaml:"url,omitempty"`
	URLs []string `yaml:"urls,omitempty"`

	// catalog driver query expressions.
	ServiceQuery string `yaml:"serviceQuery,omitempty"`
	URLQuery     string `yaml:"urlQuery,omitempty"`
	DataQuery    string `yaml:"dataQuery,omitempty"`

	// github driver.
	Org     string `yaml:"org,omitempty"`
	Repo    string `yaml:"repo,omitempty"`
	Branch  string `yaml:"branch,omitempty"`
	Glob    string `yaml:"glob,omitempty"`
	Shift   int    `yaml:"shift,omitempty"`
	Pop     int    `yaml:"pop,omitempty"`
	Rewrite string `yaml:"rewrite,omitempty"`
	Split   string `yaml:"split,omitempty"`

	// html driver link pattern.
	Match string `yaml:"match,omitempty"`
}

// Service maps sanitized version strings to version entries. On disk it is a
// plain mapping whose reserved sibling key "patch" carries a partial-document
// overlay applied to every version's document at update time; in memory the
// overlay lives in Patch so registry-walking code never sees it as a version.
type Service struct {
	Patch    map[string]any
	Versions map[string]*VersionEntry
}

// UnmarshalYAML decodes the on-disk mapping, routing the reserved "patch"
// key to Patch and every other key to Versions.
func (s *Service) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("registry: service must be a mapping, got %v", node.Kind)
	}
	s.Versions = make(map[string]*VersionEntry)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if key == "patch" {
			if err := node.Content[i+1].Decode(&s.Patch); err != nil {
				return fmt.Errorf("registry: decode service patch: %w", err)
			}
			continue
		}
		var e VersionEntry
		if err := node.Content[i+1].Decode(&e); err != nil {
			return fmt.Errorf("registry: decode version %q: %w", key, err)
		}
		s.Versions[key] = &e
	}
	return nil
}

// MarshalYAML re-flattens Patch as the sibling "patch" key, with version
// keys emitted in sorted order for byte-stable output.
func (s *Service) MarshalYAML() (any, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	appendKV := func(key string, val any) error {
		kn := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
		if key == "" {
			// Quote the empty-string service/version key explicitly.
			kn.Style = yaml.DoubleQuotedStyle
		}
		vn := &yaml.Node{}
		if err := vn.Encode(val); err != nil {
			return err
		}
		root.Content = append(root.Content, kn, vn)
		return nil
	}
	if len(s.Patch) > 0 {
		if err := appendKV("patch", s.Patch); err != nil {
			return nil, err
		}
	}
	versions := make([]string, 0, len(s.Versions))
	for v := range s.Versions {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	for _, v := range versions {
		if err := appendKV(v, s.Versions[v]); err != nil {
			return nil, err
		}
	}
	return root, nil
}

// Origin records one location and format a document was fetched from.
type Origin struct {
	URL     string `yaml:"url,omitempty"`
	Format  string `yaml:"format,omitempty"`
	Version string `yaml:"version,omitempty"`
}

// VersionEntry is the persisted unit of work for one (provider, service,
// version) triple.
type VersionEntry struct {
	Name     string `yaml:"name,omitempty"`
	Filename string `yaml:"filename,omitempty"`
	Hash     string `yaml:"hash,omitempty"`

	// Format is openapi, swagger, or asyncapi; FormatVersion the value of
	// that top-level marker in the last-known-good document.
	Format        string `yaml:"format,omitempty"`
	FormatVersion string `yaml:"formatVersion,omitempty"`

	Source  *Origin  `yaml:"source,omitempty"`
	History []Origin `yaml:"history,omitempty"`

	Added   time.Time `yaml:"added,omitempty"`
	Updated time.Time `yaml:"updated,omitempty"`

	Valid       *bool  `yaml:"valid,omitempty"`
	StatusCode  int    `yaml:"statusCode,omitempty"`
	MediaType   string `yaml:"mediatype,omitempty"`
	Fixes       int    `yaml:"fixes,omitempty"`
	AutoUpgrade string `yaml:"autoUpgrade,omitempty"`
	Endpoints   int    `yaml:"endpoints,omitempty"`
	Preferred   *bool  `yaml:"preferred,omitempty"`
	Unofficial  bool   `yaml:"unofficial,omitempty"`
	Cached      string `yaml:"cached,omitempty"`

	// Run is set to the current run's token when the entry is selected for
	// processing; it distinguishes incremental runs from full ones.
	Run string `yaml:"run,omitempty"`
}

// Lead is a run-scoped candidate document reference produced by a driver,
// keyed in the shared leads map by its document URL.
type Lead struct {
	Service   string
	Provider  string
	Preferred *bool
	File      string
}

// Candidate joins a version entry with its ancestry in the live registry
// tree. Mutating through a candidate mutates the registry directly.
type Candidate struct {
	Provider string
	Driver   string
	Service  string
	Version  string
	Parent   *Service
	GP       *Provider
	MD       *VersionEntry
}

// SanitizeVersion makes a version string safe for use as both a map key and
// a filesystem path segment.
func SanitizeVersion(v string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '-'
		}
		return r
	}, v)
}

// GetOrCreateProvider returns the provider node, inserting an empty one with
// the url driver on first access.
func (r Registry) GetOrCreateProvider(name string) *Provider {
	p, ok := r[name]
	if !ok {
		p = &Provider{Driver: DriverURL, APIs: make(map[string]*Service)}
		r[name] = p
	}
	if p.APIs == nil {
		p.APIs = make(map[string]*Service)
	}
	return p
}

// GetOrCreateService returns the named service node, inserting an empty one
// on first access.
func (p *Provider) GetOrCreateService(name string) *Service {
	if p.APIs == nil {
		p.APIs = make(map[string]*Service)
	}
	s, ok := p.APIs[name]
	if !ok {
		s = &Service{Versions: make(map[string]*VersionEntry)}
		p.APIs[name] = s
	}
	if s.Versions == nil {
		s.Versions = make(map[string]*VersionEntry)
	}
	return s
}

// ProviderNames returns provider names in sorted order for deterministic
// iteration.
func (r Registry) ProviderNames() []string {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ServiceNames returns service names in sorted order.
func (p *Provider) ServiceNames() []string {
	names := make([]string, 0, len(p.APIs))
	for n := range p.APIs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// VersionKeys returns version keys in sorted order.
func (s *Service) VersionKeys() []string {
	keys := make([]string, 0, len(s.Versions))
	for k := range s.Versions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Walk visits every version entry in sorted (provider, service, version)
// order. The reserved patch overlay is structurally excluded.
func (r Registry) Walk(fn func(provider string, p *Provider, service string, s *Service, version string, e *VersionEntry)) {
	for _, pn := range r.ProviderNames() {
		p := r[pn]
		for _, sn := range p.ServiceNames() {
			s := p.APIs[sn]
			for _, vn := range s.VersionKeys() {
				fn(pn, p, sn, s, vn, s.Versions[vn])
			}
		}
	}
}
