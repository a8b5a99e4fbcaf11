package drivers

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/starford/raido/internal/fetch"
	"github.com/starford/raido/internal/registry"
)

// Zip downloads one or more archive URLs and emits pre-extracted
// JSON-looking file bodies directly into the provider's data buffer; the
// content is already in hand so no leads are produced.
type Zip struct {
	client *fetch.Client
	logger *slog.Logger
}

func (d *Zip) Name() string { return registry.DriverZip }

func (d *Zip) Run(ctx context.Context, provider string, p *registry.Provider, _ Sink) (bool, error) {
	urls := archiveURLs(p)
	if len(urls) == 0 {
		return false, fmt.Errorf("zip: provider %s has no archive urls", provider)
	}

	for _, u := range urls {
		resp, err := d.client.Get(ctx, u)
		if err != nil {
			return false, err
		}
		if !resp.OK {
			d.logger.Warn("zip: archive fetch failed",
				slog.String("provider", provider), slog.String("url", u), slog.Int("status", resp.Status))
			return false, nil
		}

		zr, err := zip.NewReader(bytes.NewReader(resp.Body), int64(len(resp.Body)))
		if err != nil {
			return false, fmt.Errorf("zip: open archive %s: %w", u, err)
		}
		for _, f := range zr.File {
			if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, ".json") {
				continue
			}
			rc, err := f.Open()
			if err != nil {
				d.logger.Warn("zip: open entry failed", slog.String("entry", f.Name))
				continue
			}
			body, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				d.logger.Warn("zip: read entry failed", slog.String("entry", f.Name))
				continue
			}
			if !looksLikeJSON(body) {
				continue
			}
			p.Data = append(p.Data, registry.DataItem{
				URL:  u + "#" + f.Name,
				Text: string(body),
			})
		}
	}
	return true, nil
}

func archiveURLs(p *registry.Provider) []string {
	if p.Config == nil {
		return nil
	}
	if len(p.Config.URLs) > 0 {
		return p.Config.URLs
	}
	if p.Config.URL != "" {
		return []string{p.Config.URL}
	}
	return nil
}

func looksLikeJSON(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}
