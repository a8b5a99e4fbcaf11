// Package commands wires the run phases together for each processing verb:
// load → scan → reconcile → select → drivers → lead reconciliation →
// per-candidate processing → save. Phase order is strict; each phase reads
// only state its predecessors fully populated.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/starford/raido/internal"
	"github.com/starford/raido/internal/drivers"
	"github.com/starford/raido/internal/fetch"
	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/run"
	"github.com/starford/raido/internal/scan"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/validate"
)

// Options carries the recognized CLI overrides into a run.
type Options struct {
	PathSpec     string
	DriverFilter string
	Service      string
	Host         string
	Logo         string
	Issue        string
	Categories   []string
	Force        bool
	Debug        bool
	Unofficial   bool
	Small        bool

	// WorkDir anchors the document tree and cached-file relativization;
	// defaults to the current directory.
	WorkDir string

	// Args are the positional arguments after the verb (e.g. the URL for
	// add).
	Args []string
}

// Execute runs one command end to end and returns the process exit code.
// Load-time errors and serialization-fallback exhaustion are the only
// fatal paths; per-candidate failures land in the ledger instead.
func Execute(ctx context.Context, kindName string, opts Options, cfg *internal.Config, logger *slog.Logger) (int, error) {
	kind, err := run.KindFor(kindName)
	if err != nil {
		return run.ExitSevere, err
	}
	if opts.WorkDir == "" {
		opts.WorkDir = "."
	}
	if opts.PathSpec == "" {
		opts.PathSpec = cfg.Registry.APIsDir
	}

	store := registry.NewStore(cfg.Registry.Path, cfg.Registry.FailuresDir, logger)
	if _, err := store.Load(); err != nil {
		return run.ExitSevere, err
	}

	rc := run.New(kind, store, logger)
	client := fetch.New(time.Duration(cfg.Fetch.TimeoutSeconds)*time.Second, cfg.Fetch.UserAgent, cfg.Cache.Dir)
	store.AddCloser(client.CloseIdle)

	fsStore, err := storage.NewFS(opts.WorkDir)
	if err != nil {
		return run.ExitSevere, err
	}

	docs := map[string]*scan.Document{}
	if kind.Slow {
		if docs, err = scan.Tree(fsStore, opts.PathSpec, logger); err != nil {
			return run.ExitSevere, err
		}
		logger.Info("scan complete", slog.Int("documents", len(docs)))
	}

	rc.Reconcile(docs, opts.PathSpec, run.ReconcileOptions{Small: opts.Small})

	cands := rc.Select(opts.PathSpec, cfg.Registry.APIsDir, opts.DriverFilter)
	logger.Info("candidates selected",
		slog.Int("count", len(cands)), slog.Int("driver_groups", len(rc.DriverGroups)))

	drivers.Dispatch(ctx, rc.DriverGroups, rc, client, logger)

	workAbs, err := filepath.Abs(opts.WorkDir)
	if err != nil {
		workAbs = opts.WorkDir
	}
	remaining := rc.ReconcileLeads(cands, workAbs)

	proc := &processor{
		rc:        rc,
		client:    client,
		store:     fsStore,
		validator: validate.Structural{},
		pathSpec:  opts.PathSpec,
		force:     opts.Force,
		logger:    logger,
	}

	switch kind.Name {
	case "update":
		for _, cand := range cands {
			proc.update(ctx, cand)
		}
		proc.ingestLeads(ctx, remaining)
		proc.reconcilePreferred(cands)
	case "validate", "ci":
		for _, cand := range cands {
			proc.validate(cand)
		}
	case "check":
		for _, cand := range cands {
			proc.check(cand)
		}
	case "deploy":
		// Serialization is the deliverable; mark so save rewrites the
		// registry in its canonical sorted form.
		store.Touch()
	case "add":
		if err := proc.add(ctx, opts); err != nil {
			return run.ExitSevere, err
		}
	default:
		return run.ExitSevere, fmt.Errorf("commands: %q has no processor", kind.Name)
	}

	return rc.Finish()
}
