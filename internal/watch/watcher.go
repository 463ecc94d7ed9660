// Package watch reports changes to chain files under a directory tree.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/chainval/internal/storage"
)

// Event kinds passed to a Callback.
const (
	Created = "created"
	Updated = "updated"
	Deleted = "deleted"
)

// DefaultDebounce is the quiet period a path needs before its change is reported.
const DefaultDebounce = 200 * time.Millisecond

// Callback is called once per settled change. path is relative to the
// watched root, with forward slashes.
type Callback func(kind string, path string)

// Option configures Watch.
type Option func(*watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

type watcher struct {
	root     string
	debounce time.Duration
	logger   *slog.Logger
	cb       Callback
}

// Watch starts an fsnotify watcher on root and reports chain file changes
// until ctx is cancelled. Bursts of events on one path are collapsed into a
// single callback; a file created and then written reports "created".
//
// New directories created at runtime are added to the watch list and the
// chain files already inside them are reported as created. A rename reports
// the old path as deleted; the new path arrives as its own create event.
func Watch(ctx context.Context, root string, logger *slog.Logger, cb Callback, opts ...Option) error {
	wt := &watcher{root: root, debounce: DefaultDebounce, logger: logger, cb: cb}
	for _, opt := range opts {
		opt(wt)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	pending := make(map[string]string)
	timers := make(map[string]*time.Timer)
	settled := make(chan string, 64)

	schedule := func(rel, kind string) {
		if prev, ok := pending[rel]; ok && prev == Created && kind == Updated {
			kind = Created
		}
		pending[rel] = kind
		if t, ok := timers[rel]; ok {
			t.Reset(wt.debounce)
			return
		}
		timers[rel] = time.AfterFunc(wt.debounce, func() {
			select {
			case settled <- rel:
			case <-ctx.Done():
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			for _, t := range timers {
				t.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case rel := <-settled:
			kind, ok := pending[rel]
			delete(pending, rel)
			delete(timers, rel)
			if !ok {
				continue
			}
			logger.Debug("watcher: change", slog.String("path", rel), slog.String("op", kind))
			if wt.cb != nil {
				wt.cb(kind, rel)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			// New directories: add to watcher and report what they already hold.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					for _, rel := range wt.chainFilesIn(absPath) {
						schedule(rel, Created)
					}
					continue
				}
			}

			if !storage.IsChainFile(absPath) {
				continue
			}
			rel, relErr := wt.rel(absPath)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				schedule(rel, Created)
			case ev.Op&fsnotify.Write != 0:
				schedule(rel, Updated)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				schedule(rel, Deleted)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (wt *watcher) rel(abs string) (string, error) {
	rel, err := filepath.Rel(wt.root, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// chainFilesIn lists chain files found under a newly created directory.
func (wt *watcher) chainFilesIn(dir string) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !storage.IsChainFile(path) {
			return nil
		}
		if rel, relErr := wt.rel(path); relErr == nil {
			out = append(out, rel)
		}
		return nil
	})
	return out
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
