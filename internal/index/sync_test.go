package index

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/storage"
)

const syncDoc = `openapi: 3.0.0
info:
  title: Widget API
  description: Manages widgets.
  version: 1.0.0
paths:
  /widgets: {}
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// syncFixture materializes one document and a registry entry pointing at it.
func syncFixture(t *testing.T, store storage.Provider) registry.Registry {
	t.Helper()
	if err := store.Write("APIs/example.com/1.0.0/openapi.yaml", []byte(syncDoc)); err != nil {
		t.Fatal(err)
	}
	reg := make(registry.Registry)
	p := reg.GetOrCreateProvider("example.com")
	svc := p.GetOrCreateService("")
	svc.Versions["1.0.0"] = &registry.VersionEntry{
		Filename: "APIs/example.com/1.0.0/openapi.yaml",
		Hash:     checksum.Sum([]byte(syncDoc)),
		Added:    time.Now(),
	}
	return reg
}

func TestSync_IndexesEntry(t *testing.T) {
	db := testDB(t)
	dir := t.TempDir()
	store, _ := storage.NewFS(dir)
	reg := syncFixture(t, store)

	if err := Sync(db, reg, store, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	got, _ := db.GetEntry("example.com", "", "1.0.0")
	if got == nil {
		t.Fatal("entry not indexed")
	}
	if got.Title != "Widget API" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Description != "Manages widgets." {
		t.Errorf("description = %q", got.Description)
	}
}

func TestSync_SkipsUnchanged(t *testing.T) {
	db := testDB(t)
	dir := t.TempDir()
	store, _ := storage.NewFS(dir)
	reg := syncFixture(t, store)

	_ = Sync(db, reg, store, quietLogger())

	// Tamper with the indexed title; a second sync with an unchanged hash
	// must not touch the row.
	if _, err := db.conn.Exec(`UPDATE apis SET title = 'tampered'`); err != nil {
		t.Fatal(err)
	}
	_ = Sync(db, reg, store, quietLogger())

	got, _ := db.GetEntry("example.com", "", "1.0.0")
	if got.Title != "tampered" {
		t.Errorf("unchanged entry was re-indexed: title = %q", got.Title)
	}
}

func TestSync_RemovesStale(t *testing.T) {
	db := testDB(t)
	dir := t.TempDir()
	store, _ := storage.NewFS(dir)
	reg := syncFixture(t, store)

	_ = Sync(db, reg, store, quietLogger())
	delete(reg, "example.com")
	_ = Sync(db, reg, store, quietLogger())

	got, _ := db.GetEntry("example.com", "", "1.0.0")
	if got != nil {
		t.Errorf("stale entry survived sync: %+v", got)
	}
}

func TestSync_SkipsUnmaterializedEntries(t *testing.T) {
	db := testDB(t)
	dir := t.TempDir()
	store, _ := storage.NewFS(dir)

	reg := make(registry.Registry)
	p := reg.GetOrCreateProvider("pending.com")
	svc := p.GetOrCreateService("")
	svc.Versions["1.0.0"] = &registry.VersionEntry{} // no filename yet

	if err := Sync(db, reg, store, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	got, _ := db.GetEntry("pending.com", "", "1.0.0")
	if got != nil {
		t.Errorf("entry without filename should not be indexed: %+v", got)
	}
}
