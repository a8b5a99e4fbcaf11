package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/starford/raido/internal/apperr"
)

// Store owns the registry's lifetime for one run: load, mutate in place,
// serialize. Output is byte-stable given identical tree content because
// maps are emitted with sorted keys.
type Store struct {
	path        string
	failuresDir string
	logger      *slog.Logger

	Reg Registry

	dirty   bool
	saved   bool
	closers []func()
}

// NewStore creates a store for the registry file at path; failure reports
// go to failuresDir, one file per run kind.
func NewStore(path, failuresDir string, logger *slog.Logger) *Store {
	return &Store{path: path, failuresDir: failuresDir, logger: logger}
}

// Load deserializes the registry file. A missing or malformed file is fatal:
// the run aborts before any mutation. Unknown driver names are a
// configuration error.
func (st *Store) Load() (Registry, error) {
	data, err := os.ReadFile(st.path)
	if err != nil {
		return nil, fmt.Errorf("registry: load %s: %w", st.path, err)
	}
	reg := make(Registry)
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", st.path, err)
	}
	for name, p := range reg {
		if p == nil {
			return nil, fmt.Errorf("registry: provider %q is empty", name)
		}
		if p.Driver == "" {
			p.Driver = DriverURL
		}
		if !KnownDrivers[p.Driver] {
			return nil, fmt.Errorf("registry: provider %q: %w: %q", name, apperr.ErrUnknownDriver, p.Driver)
		}
	}
	st.Reg = reg
	return reg, nil
}

// Touch marks the registry as mutated this run. Save is a no-op until the
// first Touch, so read-only commands never rewrite the file.
func (st *Store) Touch() { st.dirty = true }

// Dirty reports whether any mutating call happened this run.
func (st *Store) Dirty() bool { return st.dirty }

// AddCloser registers a run-scoped resource released exactly once at save
// time, no matter how many components requested it.
func (st *Store) AddCloser(fn func()) { st.closers = append(st.closers, fn) }

// Save persists the registry and the failure ledger for the given run kind.
// A second call in the same process is a no-op. If nothing was mutated the
// registry file is left untouched and only success is reported.
//
// Serialization falls back YAML → JSON → raw debug dump so data is never
// silently lost; only exhaustion of all three tiers (or a ledger write
// failure, reported as apperr.ErrLedgerWrite) returns an error.
func (st *Store) Save(kind string, failures any) error {
	for _, fn := range st.closers {
		fn()
	}
	st.closers = nil

	if st.saved {
		return nil
	}
	if !st.dirty {
		st.saved = true
		return st.saveFailures(kind, failures)
	}

	// Driver scratch buffers are per-run state, never persisted.
	for _, p := range st.Reg {
		p.Data = nil
	}

	if err := st.saveRegistry(); err != nil {
		return err
	}
	st.saved = true
	return st.saveFailures(kind, failures)
}

func (st *Store) saveRegistry() error {
	if data, err := yaml.Marshal(st.Reg); err == nil {
		return writeAtomic(st.path, data)
	} else {
		st.logger.Warn("registry: yaml serialization failed, falling back to json",
			slog.String("error", err.Error()))
	}
	if data, err := json.MarshalIndent(st.Reg, "", "  "); err == nil {
		return writeAtomic(jsonSibling(st.path), data)
	} else {
		st.logger.Warn("registry: json serialization failed, dumping debug form",
			slog.String("error", err.Error()))
	}
	dump := fmt.Sprintf("%#v\n", st.Reg)
	if err := writeAtomic(st.path+".debug", []byte(dump)); err != nil {
		return fmt.Errorf("registry: all serialization tiers exhausted: %w", err)
	}
	return nil
}

func (st *Store) saveFailures(kind string, failures any) error {
	if failures == nil {
		return nil
	}
	if err := os.MkdirAll(st.failuresDir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %s", apperr.ErrLedgerWrite, st.failuresDir, err)
	}
	path := filepath.Join(st.failuresDir, kind+".yaml")
	data, err := yaml.Marshal(failures)
	if err != nil {
		if data, err = json.MarshalIndent(failures, "", "  "); err != nil {
			return fmt.Errorf("%w: serialize: %s", apperr.ErrLedgerWrite, err)
		}
		path = filepath.Join(st.failuresDir, kind+".json")
	}
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrLedgerWrite, err)
	}
	return nil
}

// writeAtomic writes data via tmp file → fsync → rename.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("registry: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".raido-tmp-*")
	if err != nil {
		return fmt.Errorf("registry: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("registry: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("registry: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("registry: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("registry: rename: %w", err)
	}
	success = true
	return nil
}

func jsonSibling(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return path + ".json"
	}
	return path[:len(path)-len(ext)] + ".json"
}
