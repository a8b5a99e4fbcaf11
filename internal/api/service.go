package api

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/index"
	"github.com/starford/raido/internal/storage"
)

// Service coordinates index lookups and document reads for the API layer.
type Service struct {
	store storage.Provider
	db    *index.DB
}

// NewService creates a new API service.
func NewService(store storage.Provider, db *index.DB) *Service {
	return &Service{store: store, db: db}
}

// ProviderSummary is one row in the provider listing.
type ProviderSummary struct {
	Name string `json:"name"`
	APIs int    `json:"apis"`
}

// ListProviders returns every known provider with its entry count, sorted
// by name.
func (s *Service) ListProviders() ([]ProviderSummary, error) {
	counts, err := s.db.ListProviders()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]ProviderSummary, len(names))
	for i, n := range names {
		out[i] = ProviderSummary{Name: n, APIs: counts[n]}
	}
	return out, nil
}

// GetProvider returns every indexed entry under one provider.
func (s *Service) GetProvider(name string) ([]index.EntryRow, error) {
	rows, err := s.db.ListByProvider(name)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.ErrNotFound
	}
	return rows, nil
}

// GetEntry returns one version entry.
func (s *Service) GetEntry(provider, service, version string) (*index.EntryRow, error) {
	row, err := s.db.GetEntry(provider, service, version)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apperr.ErrNotFound
	}
	return row, nil
}

// GetDocument reads the materialized description document for one entry.
// It returns the raw bytes plus a media type derived from the filename.
func (s *Service) GetDocument(provider, service, version string) ([]byte, string, error) {
	row, err := s.GetEntry(provider, service, version)
	if err != nil {
		return nil, "", err
	}
	if row.Filename == "" {
		return nil, "", apperr.ErrNotFound
	}
	data, err := s.store.Read(row.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s", apperr.ErrNotFound, row.Filename)
	}
	mt := "application/yaml"
	if strings.HasSuffix(row.Filename, ".json") {
		mt = "application/json"
	}
	return data, mt, nil
}

// Search delegates to the index.
func (s *Service) Search(query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Status returns aggregate registry counts.
func (s *Service) Status() (StatusResponse, error) {
	providers, entries, invalid, err := s.db.Stats()
	if err != nil {
		return StatusResponse{}, err
	}
	return StatusResponse{Providers: providers, APIs: entries, Invalid: invalid}, nil
}
