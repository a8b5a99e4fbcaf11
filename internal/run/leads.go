package run

import (
	"log/slog"
	"path/filepath"

	"github.com/starford/raido/internal/registry"
)

// ReconcileLeads cross-references driver-produced leads against the run's
// candidates. A lead whose URL matches a candidate's source URL is folded
// into that entry (file becomes the cached path, a strictly-boolean
// preferred flag propagates) and removed from the shared map. Whatever
// remains afterwards are net-new documents never before seen.
//
// Matching is by the document's own source URL; a lead's provider
// attribution never reassigns a candidate, it only warns on mismatch.
func (c *Context) ReconcileLeads(cands []*registry.Candidate, workDir string) map[string]*registry.Lead {
	for _, cand := range cands {
		if cand.MD.Source == nil || cand.MD.Source.URL == "" {
			continue
		}
		lead, ok := c.Leads[cand.MD.Source.URL]
		if !ok {
			continue
		}

		if lead.File != "" {
			cached := lead.File
			if workDir != "" {
				if rel, err := filepath.Rel(workDir, lead.File); err == nil {
					cached = filepath.ToSlash(rel)
				}
			}
			cand.MD.Cached = cached
			c.Store.Touch()
		}
		if lead.Preferred != nil {
			cand.MD.Preferred = lead.Preferred
			c.Store.Touch()
		}
		if lead.Provider != "" && lead.Provider != cand.Provider {
			c.Logger.Warn("leads: provider attribution mismatch, keeping registry provider",
				slog.String("url", cand.MD.Source.URL),
				slog.String("lead_provider", lead.Provider),
				slog.String("registry_provider", cand.Provider))
		}
		delete(c.Leads, cand.MD.Source.URL)
	}
	return c.Leads
}
