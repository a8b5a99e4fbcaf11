package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/raido/internal/registry"
	"github.com/starford/raido/internal/storage"
)

// EventCallback is called after a watcher-driven resync with the path that
// triggered it.
type EventCallback func(path string)

const resyncDebounce = 300 * time.Millisecond

// Watch starts an fsnotify watcher over the documents root and the registry
// file, and resyncs the index on changes until ctx is cancelled.
//
// Individual file events are debounced into one full reload + Sync pass:
// registry edits and document writes usually arrive in bursts, and a single
// projection pass over both is cheaper than chasing event ordering. New
// directories created at runtime are added to the watch list.
func Watch(ctx context.Context, db *DB, store storage.Provider, registryPath, docsRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, docsRoot); err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(registryPath)); err != nil {
		return err
	}

	logger.Info("watcher: started",
		slog.String("docs", docsRoot), slog.String("registry", registryPath))

	var resyncTimer *time.Timer
	var resyncCh <-chan time.Time
	var lastPath string

	schedule := func(path string) {
		lastPath = path
		if resyncTimer == nil {
			resyncTimer = time.NewTimer(resyncDebounce)
			resyncCh = resyncTimer.C
		} else {
			resyncTimer.Reset(resyncDebounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if resyncTimer != nil {
				resyncTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-resyncCh:
			resync(db, store, registryPath, logger)
			if cb != nil {
				cb(lastPath)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					schedule(absPath)
					continue
				}
			}

			if absPath != registryPath && !storage.IsDocument(absPath) {
				continue
			}
			// Temp files from atomic writes never settle under their
			// final name until the rename fires.
			if filepath.Base(absPath)[0] == '.' {
				continue
			}
			logger.Debug("watcher: change", slog.String("path", absPath), slog.String("op", ev.Op.String()))
			schedule(absPath)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// resync reloads the registry from disk and projects it into the index.
func resync(db *DB, store storage.Provider, registryPath string, logger *slog.Logger) {
	st := registry.NewStore(registryPath, "", logger)
	reg, err := st.Load()
	if err != nil {
		logger.Warn("watcher: registry reload failed", slog.String("error", err.Error()))
		return
	}
	if err := Sync(db, reg, store, logger); err != nil {
		logger.Warn("watcher: sync failed", slog.String("error", err.Error()))
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
