package drivers

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"

	"github.com/starford/raido/internal/fetch"
	"github.com/starford/raido/internal/registry"
)

// Blob fetches configured document URLs whose bodies are only exposed as
// downloadable blobs and stashes them in the provider's data buffer so the
// retrieval phase is satisfied from memory.
type Blob struct {
	client *fetch.Client
	logger *slog.Logger
}

func (d *Blob) Name() string { return registry.DriverBlob }

func (d *Blob) Run(ctx context.Context, provider string, p *registry.Provider, _ Sink) (bool, error) {
	urls := archiveURLs(p)
	if len(urls) == 0 {
		return false, fmt.Errorf("blob: provider %s has no urls", provider)
	}
	for _, u := range urls {
		resp, err := d.client.Get(ctx, u)
		if err != nil {
			return false, err
		}
		if !resp.OK {
			d.logger.Warn("blob: fetch failed",
				slog.String("provider", provider), slog.String("url", u), slog.Int("status", resp.Status))
			return false, nil
		}
		p.Data = append(p.Data, registry.DataItem{URL: u, Text: string(resp.Body)})
	}
	return true, nil
}

// defaultHrefPattern captures href targets pointing at description files.
var defaultHrefPattern = regexp.MustCompile(`href="([^"]+\.(?:json|ya?ml))"`)

// HTML scrapes a provider page for links to description documents. Sites
// needing full browser rendering are configured with a match pattern
// against the served markup instead.
type HTML struct {
	client *fetch.Client
	logger *slog.Logger
}

func (d *HTML) Name() string { return registry.DriverHTML }

func (d *HTML) Run(ctx context.Context, provider string, p *registry.Provider, sink Sink) (bool, error) {
	cfg := p.Config
	if cfg == nil || cfg.URL == "" {
		return false, fmt.Errorf("html: provider %s has no page url", provider)
	}

	resp, err := d.client.Get(ctx, cfg.URL)
	if err != nil {
		return false, err
	}
	if !resp.OK {
		d.logger.Warn("html: page fetch failed",
			slog.String("provider", provider), slog.Int("status", resp.Status))
		return false, nil
	}

	pattern := defaultHrefPattern
	if cfg.Match != "" {
		pattern, err = regexp.Compile(cfg.Match)
		if err != nil {
			return false, fmt.Errorf("html: bad match pattern for %s: %w", provider, err)
		}
	}

	base, err := url.Parse(cfg.URL)
	if err != nil {
		return false, fmt.Errorf("html: bad page url %s: %w", cfg.URL, err)
	}

	for _, m := range pattern.FindAllStringSubmatch(string(resp.Body), -1) {
		if len(m) < 2 {
			continue
		}
		ref, err := url.Parse(m[1])
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref).String()
		sink.AddLead(abs, &registry.Lead{
			Service:  serviceFromURL(abs),
			Provider: provider,
		})
	}
	return true, nil
}
