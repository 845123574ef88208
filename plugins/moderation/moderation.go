// Package moderation keeps groups clean: bans, link filtering with warn
// counters, and status-forward filtering. Every policy is a tracker that
// lives until it is switched off.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jdelaire/openbot/core"
	"github.com/jdelaire/openbot/core/ratelimit"
	"github.com/jdelaire/openbot/internal/store"
)

const (
	featureAntilink   = "antilink"
	featureAntistatus = "antistatus"

	defaultWarnLimit = 3
)

// Options wires the plugin.
type Options struct {
	Store     *store.Store
	Registrar core.Registrar
	IsSudo    func(id string) bool
	WarnLimit int
	// Limiter throttles warning replies per chat and user. Nil uses a
	// limiter allowing three warnings per minute.
	Limiter *ratelimit.Limiter
	Logger  *slog.Logger
}

// Plugin owns the moderation trackers.
type Plugin struct {
	store     *store.Store
	reg       core.Registrar
	isSudo    func(string) bool
	warnLimit int
	limiter   *ratelimit.Limiter
	logger    *slog.Logger

	mu     sync.RWMutex
	banned map[string]bool
}

// New creates the plugin. Call Restore to re-arm persisted policies.
func New(opts Options) *Plugin {
	p := &Plugin{
		store:     opts.Store,
		reg:       opts.Registrar,
		isSudo:    opts.IsSudo,
		warnLimit: opts.WarnLimit,
		limiter:   opts.Limiter,
		logger:    opts.Logger,
		banned:    make(map[string]bool),
	}
	if p.isSudo == nil {
		p.isSudo = func(string) bool { return false }
	}
	if p.warnLimit < 1 {
		p.warnLimit = defaultWarnLimit
	}
	if p.limiter == nil {
		p.limiter = ratelimit.New(3, time.Minute, time.Minute)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Restore registers trackers for every persisted ban and toggle.
func (p *Plugin) Restore(ctx context.Context) error {
	bans, err := p.store.Bans(ctx)
	if err != nil {
		return fmt.Errorf("restore bans: %w", err)
	}
	var errs []error
	for _, b := range bans {
		errs = append(errs, p.armBan(b.ChatID, b.UserID))
	}

	links, err := p.store.Toggles(ctx, featureAntilink)
	if err != nil {
		return fmt.Errorf("restore antilink: %w", err)
	}
	for chatID, value := range links {
		mode, ok := parseLinkMode(value)
		if !ok || mode == linkOff {
			continue
		}
		errs = append(errs, p.armAntilink(chatID, mode))
	}

	statuses, err := p.store.Toggles(ctx, featureAntistatus)
	if err != nil {
		return fmt.Errorf("restore antistatus: %w", err)
	}
	for chatID := range statuses {
		errs = append(errs, p.armAntistatus(chatID))
	}

	p.logger.Info("moderation restored", "bans", len(bans), "antilink", len(links), "antistatus", len(statuses))
	return errors.Join(errs...)
}

// Banned reports whether userID is under a live ban in chatID. Other
// plugins use it to ignore messages the ban tracker is about to delete.
func (p *Plugin) Banned(chatID, userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.banned[banID(chatID, userID)]
}

func (p *Plugin) setBanned(chatID, userID string, on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if on {
		p.banned[banID(chatID, userID)] = true
		return
	}
	delete(p.banned, banID(chatID, userID))
}

func banID(chatID, userID string) string      { return "ban:" + chatID + ":" + userID }
func antilinkID(chatID string) string         { return featureAntilink + ":" + chatID }
func antistatusID(chatID string) string       { return featureAntistatus + ":" + chatID }
func limiterKey(chatID, userID string) string { return chatID + ":" + userID }
