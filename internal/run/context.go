// Package run implements the per-run core: the run context threaded through
// every phase, metadata reconciliation, candidate selection, and lead
// reconciliation. Phases execute strictly in that order; later phases read
// only state their predecessors fully populated.
package run

import (
	"errors"
	"log/slog"
	"time"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/registry"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitFailures = 1
	ExitSevere   = 2

	// ExitNotRun is the sentinel "no candidate processing happened" code,
	// treated as success when the run finishes.
	ExitNotRun = -1
)

// Context carries all run-lifetime shared state: the registry store, the
// shared leads map drivers populate, the failure ledger, and the
// driver→provider grouping the acquisition stage iterates. One Context is
// constructed per run and passed through every phase; there are no
// concurrent writers.
type Context struct {
	Kind   Kind
	Token  string
	Now    time.Time
	Logger *slog.Logger
	Store  *registry.Store

	Leads        map[string]*registry.Lead
	Failures     Ledger
	DriverGroups map[string]map[string]*registry.Provider

	ExitCode int
}

// New creates a fresh run context. The token doubles as the run marker
// value written to selected entries.
func New(kind Kind, store *registry.Store, logger *slog.Logger) *Context {
	now := time.Now().UTC()
	return &Context{
		Kind:         kind,
		Token:        now.Format(time.RFC3339),
		Now:          now,
		Logger:       logger,
		Store:        store,
		Leads:        make(map[string]*registry.Lead),
		Failures:     make(Ledger),
		DriverGroups: make(map[string]map[string]*registry.Provider),
		ExitCode:     ExitNotRun,
	}
}

// AddLead registers a lead under its document URL. Drivers call this as
// their primary side effect.
func (c *Context) AddLead(url string, lead *registry.Lead) {
	if url == "" {
		return
	}
	c.Leads[url] = lead
}

// Record stores a soft failure for the candidate and flips the process
// exit code to the failure state.
func (c *Context) Record(cand *registry.Candidate, status int, err error, context string) {
	c.RecordAt(cand.Provider, cand.Service, cand.Version, status, err, context)
}

// RecordAt is Record for a bare (provider, service, version) triple.
func (c *Context) RecordAt(provider, service, version string, status int, err error, context string) {
	f := &Failure{Status: status, Context: context}
	if err != nil {
		f.Error = err.Error()
	}
	c.Failures.Record(provider, service, version, f)
	c.ExitCode = ExitFailures
}

// Finish persists the registry and the failure ledger, then reconciles the
// final exit code: the sentinel not-run code and update-style runs report
// success even when candidates failed; a ledger write failure is non-fatal
// to the save but reports the severe code. Only serialization-fallback
// exhaustion escapes as an error.
func (c *Context) Finish() (int, error) {
	var failures any
	if len(c.Failures) > 0 {
		failures = c.Failures
	}
	err := c.Store.Save(c.Kind.Name, failures)

	code := c.ExitCode
	if code == ExitNotRun || (c.Kind.UpdateStyle && code == ExitFailures) {
		code = ExitOK
	}
	if err != nil {
		if errors.Is(err, apperr.ErrLedgerWrite) {
			c.Logger.Error("run: failure ledger not persisted", slog.String("error", err.Error()))
			return ExitSevere, nil
		}
		return ExitSevere, err
	}
	return code, nil
}
