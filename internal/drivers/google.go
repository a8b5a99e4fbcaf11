package drivers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/starford/raido/internal/fetch"
	"github.com/starford/raido/internal/registry"
)

// DefaultDiscoveryURL is the Google API Discovery directory.
const DefaultDiscoveryURL = "https://www.googleapis.com/discovery/v1/apis"

// Google harvests a Google API Discovery directory: one lead per listed
// item, carrying the item's preferred flag.
type Google struct {
	client *fetch.Client
	logger *slog.Logger
}

func (d *Google) Name() string { return registry.DriverGoogle }

type discoveryDirectory struct {
	Items []struct {
		Name             string `json:"name"`
		Version          string `json:"version"`
		DiscoveryRestURL string `json:"discoveryRestUrl"`
		Preferred        bool   `json:"preferred"`
	} `json:"items"`
}

func (d *Google) Run(ctx context.Context, provider string, p *registry.Provider, sink Sink) (bool, error) {
	dirURL := configURL(p)
	if dirURL == "" {
		dirURL = DefaultDiscoveryURL
	}

	resp, err := d.client.Get(ctx, dirURL)
	if err != nil {
		return false, err
	}
	if !resp.OK {
		d.logger.Warn("google: directory fetch failed",
			slog.String("provider", provider), slog.Int("status", resp.Status))
		return false, nil
	}

	var dir discoveryDirectory
	if err := json.Unmarshal(resp.Body, &dir); err != nil {
		return false, fmt.Errorf("google: parse directory %s: %w", dirURL, err)
	}

	for _, item := range dir.Items {
		if item.DiscoveryRestURL == "" {
			continue
		}
		preferred := item.Preferred
		sink.AddLead(item.DiscoveryRestURL, &registry.Lead{
			Service:   item.Name,
			Provider:  provider,
			Preferred: &preferred,
		})
	}
	return true, nil
}
