// Package watcher implements rebuild-on-change using fsnotify.
package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"go.trai.ch/zerr"

	"go.trai.ch/mason/internal/core/ports"
)

// skipDirs are directories that are never watched.
var skipDirs = map[string]bool{
	".git":         true,
	".jj":          true,
	"node_modules": true,
}

// debounceWindow coalesces bursts of events (editors write several times).
const debounceWindow = 200 * time.Millisecond

// Watcher watches a source tree and invokes a callback after changes
// settle.
type Watcher struct {
	fsw *fsnotify.Watcher
	log ports.Logger
}

// New creates a watcher.
func New(log ports.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, zerr.Wrap(err, "failed to create file watcher")
	}
	return &Watcher{fsw: fsw, log: log}, nil
}

// Watch watches root recursively and calls rebuild after each settled
// burst of changes, until the context is cancelled.
func (w *Watcher) Watch(ctx context.Context, root string, rebuild func() error) error {
	defer w.fsw.Close() //nolint:errcheck // best effort on shutdown

	if err := w.addRecursive(root); err != nil {
		return err
	}

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) {
				// New directories need watching too.
				_ = w.addRecursive(ev.Name)
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
			} else {
				timer.Reset(debounceWindow)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if w.log != nil {
				w.log.Warn("watch error", "error", err)
			}

		case <-fire:
			fire = nil
			if err := rebuild(); err != nil && w.log != nil {
				// Keep watching: the next change may fix the failure.
				w.log.Error(err)
			}
		}
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}
