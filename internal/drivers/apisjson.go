package drivers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/starford/raido/internal/fetch"
	"github.com/starford/raido/internal/registry"
)

// APIsJSON harvests an apis.json index document: every nested property of
// type "Swagger" contributes one lead, keyed by a service name derived from
// the URL's last path segment.
type APIsJSON struct {
	client *fetch.Client
	logger *slog.Logger
}

func (d *APIsJSON) Name() string { return registry.DriverAPIsJSON }

func (d *APIsJSON) Run(ctx context.Context, provider string, p *registry.Provider, sink Sink) (bool, error) {
	indexURL := configURL(p)
	if indexURL == "" {
		return false, fmt.Errorf("apisjson: provider %s has no index url", provider)
	}

	resp, err := d.client.Get(ctx, indexURL)
	if err != nil {
		return false, err
	}
	if !resp.OK {
		d.logger.Warn("apisjson: index fetch failed",
			slog.String("provider", provider), slog.Int("status", resp.Status))
		return false, nil
	}

	var doc any
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return false, fmt.Errorf("apisjson: parse index %s: %w", indexURL, err)
	}

	walkJSON(doc, func(obj map[string]any) {
		typ, _ := obj["type"].(string)
		if !strings.EqualFold(typ, "Swagger") {
			return
		}
		docURL, _ := obj["url"].(string)
		if docURL == "" {
			return
		}
		sink.AddLead(docURL, &registry.Lead{
			Service:  serviceFromURL(docURL),
			Provider: provider,
		})
	})
	return true, nil
}

// serviceFromURL derives a service name from a document URL's last path
// segment, dropping the file extension.
func serviceFromURL(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

// walkJSON visits every object in a decoded JSON value, depth first.
func walkJSON(v any, fn func(map[string]any)) {
	switch t := v.(type) {
	case map[string]any:
		fn(t)
		for _, child := range t {
			walkJSON(child, fn)
		}
	case []any:
		for _, child := range t {
			walkJSON(child, fn)
		}
	}
}

// configURL returns the provider's configured index URL.
func configURL(p *registry.Provider) string {
	if p.Config == nil {
		return ""
	}
	return p.Config.URL
}
