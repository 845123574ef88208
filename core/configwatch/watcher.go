// Package configwatch polls files for changes so settings and the command
// manifest can be reloaded without a restart.
package configwatch

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Callback runs when a watched file changes. A returned error is logged and
// the change is not retried until the file changes again.
type Callback func(path string) error

// Watcher polls files for modification time or size changes and invokes
// callbacks.
type Watcher struct {
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	entries []watchEntry
}

type watchEntry struct {
	path  string
	stamp stamp
	cb    Callback
}

type stamp struct {
	modTime time.Time
	size    int64
}

// New creates a Watcher that polls at the given interval.
func New(interval time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		interval: interval,
		logger:   logger,
	}
}

// Watch adds a file to be watched. The file does not need to exist yet.
func (w *Watcher) Watch(path string, cb Callback) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries = append(w.entries, watchEntry{
		path:  path,
		stamp: statFile(path),
		cb:    cb,
	})
}

// Run polls until the context is cancelled. It blocks, so call it in a goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Check()
		}
	}
}

// Check runs one poll cycle and returns how many callbacks fired.
func (w *Watcher) Check() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	fired := 0
	for i := range w.entries {
		e := &w.entries[i]
		current := statFile(e.path)

		// A missing file may be mid-save.
		if current.modTime.IsZero() || current == e.stamp {
			continue
		}

		e.stamp = current
		fired++
		w.logger.Info("watched file changed", "path", e.path)
		if err := e.cb(e.path); err != nil {
			w.logger.Error("reload after change failed", "path", e.path, "error", err)
		}
	}
	return fired
}

func statFile(path string) stamp {
	info, err := os.Stat(path)
	if err != nil {
		return stamp{}
	}
	return stamp{modTime: info.ModTime(), size: info.Size()}
}
