package commands

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/raido/internal/registry"
)

// add registers a new provider document directly from a URL, then runs it
// through the regular update path so it is fetched, validated, and
// materialized in the same run.
func (p *processor) add(ctx context.Context, opts Options) error {
	if len(opts.Args) == 0 {
		return errors.New("commands: add requires a document url")
	}
	docURL := opts.Args[0]

	provider := opts.Host
	if provider == "" {
		provider = hostOf(docURL)
	}
	lead := &registry.Lead{Service: opts.Service, Provider: provider}

	cand, err := p.ingestLead(ctx, docURL, lead)
	if err != nil {
		return err
	}

	if opts.Host != "" {
		cand.GP.Host = opts.Host
	}
	if opts.Unofficial {
		cand.MD.Unofficial = true
	}
	if patch := addPatch(opts); patch != nil {
		cand.GP.Patch = registry.DeepOverlay(cand.GP.Patch, patch)
	}

	p.update(ctx, cand)
	p.ingested = append(p.ingested, cand)
	p.reconcilePreferred(nil)

	p.logger.Info("added",
		slog.String("provider", cand.Provider),
		slog.String("service", cand.Service),
		slog.String("version", cand.Version))
	return nil
}

// addPatch folds the add command's cosmetic overrides into a provider
// patch overlay.
func addPatch(opts Options) map[string]any {
	info := map[string]any{}
	if opts.Logo != "" {
		info["x-logo"] = map[string]any{"url": opts.Logo}
	}
	if len(opts.Categories) > 0 {
		cats := make([]any, len(opts.Categories))
		for i, c := range opts.Categories {
			cats[i] = c
		}
		info["x-categories"] = cats
	}
	if opts.Issue != "" {
		info["x-issue"] = opts.Issue
	}
	if len(info) == 0 {
		return nil
	}
	return map[string]any{"info": info}
}
