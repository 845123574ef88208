// Package builtin holds the commands every deployment ships with: liveness,
// help, host status, runtime configuration and group kicks.
package builtin

import (
	"context"
	"log/slog"
	"time"

	"github.com/jdelaire/openbot/core/command"
	"github.com/jdelaire/openbot/internal/settings"
)

// NotAllowed is the reply when a caller lacks the rights a handler checks
// for itself.
const NotAllowed = "You are not allowed to do that here."

// Lister exposes the current command set for help.
type Lister interface {
	List() []*command.Descriptor
}

// Options wires the plugin to its collaborators. Reload and Stats are
// optional.
type Options struct {
	Settings *settings.Settings
	Commands Lister
	Reload   func() (int, error)
	Stats    func(ctx context.Context) (HostStats, error)
	Version  string
	Logger   *slog.Logger
}

// Plugin provides the built-in commands.
type Plugin struct {
	settings *settings.Settings
	commands Lister
	reload   func() (int, error)
	stats    func(ctx context.Context) (HostStats, error)
	version  string
	logger   *slog.Logger

	started time.Time
	now     func() time.Time
}

// New creates the plugin.
func New(opts Options) *Plugin {
	p := &Plugin{
		settings: opts.Settings,
		commands: opts.Commands,
		reload:   opts.Reload,
		stats:    opts.Stats,
		version:  opts.Version,
		logger:   opts.Logger,
		now:      time.Now,
	}
	if p.stats == nil {
		p.stats = collectHostStats
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.version == "" {
		p.version = "dev"
	}
	p.started = p.now()
	return p
}

// Commands returns the built-in descriptors in help order.
func (p *Plugin) Commands() []command.Descriptor {
	return []command.Descriptor{
		p.pingCommand(),
		p.helpCommand(),
		p.statusCommand(),
		p.modeCommand(),
		p.setSudoCommand(),
		p.delSudoCommand(),
		p.getSudoCommand(),
		p.setVarCommand(),
		p.getVarCommand(),
		p.delVarCommand(),
		p.setPrefixCommand(),
		p.reloadCommand(),
		p.kickCommand(),
	}
}
