package core

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/jdelaire/openbot/core/command"
)

// ManifestFunc builds the full command set: built-ins plus whatever is
// loaded from disk.
type ManifestFunc func() ([]command.Descriptor, error)

// Reloader recomputes the command manifest and swaps it into the registry
// in one step. A failed reload leaves the previous set serving.
type Reloader struct {
	registry *command.Registry
	manifest ManifestFunc
	logger   *slog.Logger

	mu sync.Mutex
}

// NewReloader creates a reloader for registry.
func NewReloader(registry *command.Registry, manifest ManifestFunc, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		registry: registry,
		manifest: manifest,
		logger:   logger,
	}
}

// Reload swaps in a freshly built manifest and returns its size.
func (r *Reloader) Reload() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	descs, err := r.manifest()
	if err != nil {
		r.logger.Error("reload commands failed", "error", err)
		return 0, fmt.Errorf("build manifest: %w", err)
	}
	if err := r.registry.Swap(descs); err != nil {
		r.logger.Error("reload commands rejected", "error", err)
		return 0, fmt.Errorf("swap commands: %w", err)
	}
	r.logger.Info("commands reloaded", "count", len(descs))
	return len(descs), nil
}

// OnFileChange adapts Reload to a file watcher callback.
func (r *Reloader) OnFileChange(path string) error {
	if _, err := r.Reload(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
