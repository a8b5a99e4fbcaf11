package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/raido/internal/checksum"
	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/storage"
)

// watcherTestEnv sets up a working directory with a docs tree, a registry
// file, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (workDir, registryPath, docsRoot string, store storage.Provider, db *DB) {
	t.Helper()
	workDir = t.TempDir()
	docsRoot = filepath.Join(workDir, "APIs")
	if err := os.MkdirAll(docsRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	registryPath = filepath.Join(workDir, "registry.yaml")
	if err := os.WriteFile(registryPath, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewFS(workDir)
	if err != nil {
		t.Fatal(err)
	}

	dbFile, err := os.CreateTemp("", "raido-watcher-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })
	db, err = Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return workDir, registryPath, docsRoot, store, db
}

// writeRegistry serializes reg to the registry file.
func writeRegistry(t *testing.T, path string, reg registry.Registry) {
	t.Helper()
	data, err := yaml.Marshal(reg)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_NewEntryIndexed(t *testing.T) {
	_, registryPath, docsRoot, store, db := watcherTestEnv(t)
	logger := quietLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, store, registryPath, docsRoot, logger, func(path string) {
		mu.Lock()
		events = append(events, path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	if err := store.Write("APIs/example.com/1.0.0/openapi.yaml", []byte(syncDoc)); err != nil {
		t.Fatal(err)
	}
	reg := make(registry.Registry)
	p := reg.GetOrCreateProvider("example.com")
	p.GetOrCreateService("").Versions["1.0.0"] = &registry.VersionEntry{
		Filename: "APIs/example.com/1.0.0/openapi.yaml",
		Hash:     checksum.Sum([]byte(syncDoc)),
		Added:    time.Now(),
	}
	writeRegistry(t, registryPath, reg)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		got, _ := db.GetEntry("example.com", "", "1.0.0")
		return got != nil
	}, "new entry not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) > 0
	}, "expected resync callback")
}

func TestWatcher_RemovedEntryDropped(t *testing.T) {
	_, registryPath, docsRoot, store, db := watcherTestEnv(t)
	logger := quietLogger()

	if err := store.Write("APIs/example.com/1.0.0/openapi.yaml", []byte(syncDoc)); err != nil {
		t.Fatal(err)
	}
	reg := make(registry.Registry)
	p := reg.GetOrCreateProvider("example.com")
	p.GetOrCreateService("").Versions["1.0.0"] = &registry.VersionEntry{
		Filename: "APIs/example.com/1.0.0/openapi.yaml",
		Hash:     checksum.Sum([]byte(syncDoc)),
		Added:    time.Now(),
	}
	writeRegistry(t, registryPath, reg)
	if err := Sync(db, reg, store, logger); err != nil {
		t.Fatal(err)
	}
	if got, _ := db.GetEntry("example.com", "", "1.0.0"); got == nil {
		t.Fatal("precondition: entry should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, registryPath, docsRoot, logger, nil)
	time.Sleep(100 * time.Millisecond)

	writeRegistry(t, registryPath, make(registry.Registry))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		got, _ := db.GetEntry("example.com", "", "1.0.0")
		return got == nil
	}, "removed entry still in index")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	_, registryPath, docsRoot, store, db := watcherTestEnv(t)
	logger := quietLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, registryPath, docsRoot, logger, nil)
	time.Sleep(100 * time.Millisecond)

	// Create the provider directory first so the watcher has to pick it up,
	// then land the document and the registry entry inside it.
	subDir := filepath.Join(docsRoot, "late.com", "1.0.0")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(subDir, "openapi.yaml"), []byte(syncDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	reg := make(registry.Registry)
	p := reg.GetOrCreateProvider("late.com")
	p.GetOrCreateService("").Versions["1.0.0"] = &registry.VersionEntry{
		Filename: "APIs/late.com/1.0.0/openapi.yaml",
		Hash:     checksum.Sum([]byte(syncDoc)),
		Added:    time.Now(),
	}
	writeRegistry(t, registryPath, reg)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		got, _ := db.GetEntry("late.com", "", "1.0.0")
		return got != nil
	}, "entry in new subdir not indexed by watcher")
}
