package drivers

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"gopkg.in/yaml.v3"

	"github.com/starford/raido/internal/fetch"
	"github.com/starford/raido/internal/registry"
)

// Catalog harvests an index document using two declarative query
// expressions configured per provider: one extracting service identifiers,
// one extracting document URLs. The arrays are paired positionally into
// leads; relative URLs resolve against the index URL. An optional third
// query extracts inline document bodies into the provider's data buffer.
type Catalog struct {
	client *fetch.Client
	logger *slog.Logger
}

func (d *Catalog) Name() string { return registry.DriverCatalog }

func (d *Catalog) Run(ctx context.Context, provider string, p *registry.Provider, sink Sink) (bool, error) {
	cfg := p.Config
	if cfg == nil || cfg.URL == "" || cfg.URLQuery == "" {
		return false, fmt.Errorf("catalog: provider %s missing url/urlQuery config", provider)
	}

	resp, err := d.client.Get(ctx, cfg.URL)
	if err != nil {
		return false, err
	}
	if !resp.OK {
		d.logger.Warn("catalog: index fetch failed",
			slog.String("provider", provider), slog.Int("status", resp.Status))
		return false, nil
	}

	var doc any
	if err := yaml.Unmarshal(resp.Body, &doc); err != nil {
		return false, fmt.Errorf("catalog: parse index %s: %w", cfg.URL, err)
	}

	base, err := url.Parse(cfg.URL)
	if err != nil {
		return false, fmt.Errorf("catalog: bad index url %s: %w", cfg.URL, err)
	}

	services := QueryStrings(doc, cfg.ServiceQuery)
	urls := QueryStrings(doc, cfg.URLQuery)
	if len(services) != len(urls) {
		d.logger.Warn("catalog: query arity mismatch",
			slog.String("provider", provider),
			slog.Int("services", len(services)), slog.Int("urls", len(urls)))
	}

	for i, raw := range urls {
		ref, err := url.Parse(raw)
		if err != nil {
			d.logger.Warn("catalog: bad document url", slog.String("url", raw))
			continue
		}
		service := ""
		if i < len(services) {
			service = services[i]
		}
		sink.AddLead(base.ResolveReference(ref).String(), &registry.Lead{
			Service:  service,
			Provider: provider,
		})
	}

	if cfg.DataQuery != "" {
		for i, body := range QueryStrings(doc, cfg.DataQuery) {
			p.Data = append(p.Data, registry.DataItem{
				URL:  fmt.Sprintf("%s#%d", cfg.URL, i),
				Text: body,
			})
		}
	}
	return true, nil
}
