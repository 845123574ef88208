// Package tracker is a rule engine: a keyed, ordered set of predicate and
// action pairs evaluated against every inbound message.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jdelaire/openbot/core/message"
)

// Predicate decides whether an entry fires for msg.
type Predicate func(ctx context.Context, msg message.InboundMessage) bool

// Action is the side effect of a firing entry.
type Action func(ctx context.Context, gw message.Gateway, msg message.InboundMessage) error

type entry struct {
	id      string
	pred    Predicate
	act     Action
	enabled atomic.Bool
}

// Registry holds tracker entries in registration order. Re-registering an id
// replaces the entry in place, keeping its position.
type Registry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	entries []*entry
	byID    map[string]*entry
}

// NewRegistry creates an empty tracker registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger,
		byID:   make(map[string]*entry),
	}
}

// Register adds or replaces the entry under id. New entries are enabled.
func (r *Registry) Register(id string, pred Predicate, act Action) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("tracker id is required")
	}
	if pred == nil || act == nil {
		return fmt.Errorf("tracker %q: predicate and action are required", id)
	}

	e := &entry{id: id, pred: pred, act: act}
	e.enabled.Store(true)

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byID[id]; ok {
		for i, cur := range r.entries {
			if cur == old {
				r.entries[i] = e
				break
			}
		}
	} else {
		r.entries = append(r.entries, e)
	}
	r.byID[id] = e
	return nil
}

// Unregister removes the entry under id. It is a no-op if absent.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

// UnregisterPrefix removes every entry whose id starts with prefix and
// returns how many were removed.
func (r *Registry) UnregisterPrefix(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for _, e := range r.entries {
		if strings.HasPrefix(e.id, prefix) {
			ids = append(ids, e.id)
		}
	}
	for _, id := range ids {
		r.removeLocked(id)
	}
	return len(ids)
}

func (r *Registry) removeLocked(id string) {
	old, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	for i, cur := range r.entries {
		if cur == old {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			break
		}
	}
}

// SetEnabled toggles an entry without removing it. It reports whether the
// id exists.
func (r *Registry) SetEnabled(id string, enabled bool) bool {
	r.mu.RLock()
	e, ok := r.byID[id]
	r.mu.RUnlock()
	if ok {
		e.enabled.Store(enabled)
	}
	return ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// IDs returns the live ids in evaluation order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.id
	}
	return out
}

// Dispatch evaluates every enabled entry against msg, sequentially and in
// order. The entry list is snapshotted first; an entry removed or replaced
// by an earlier action during this call is skipped, all others run exactly
// once. Faults are logged and never stop the loop.
func (r *Registry) Dispatch(ctx context.Context, gw message.Gateway, msg message.InboundMessage) {
	r.mu.RLock()
	snapshot := append([]*entry(nil), r.entries...)
	r.mu.RUnlock()

	for _, e := range snapshot {
		if ctx.Err() != nil {
			return
		}
		if !r.live(e) || !e.enabled.Load() {
			continue
		}
		r.run(ctx, gw, e, msg)
	}
}

func (r *Registry) live(e *entry) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[e.id] == e
}

func (r *Registry) run(ctx context.Context, gw message.Gateway, e *entry, msg message.InboundMessage) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tracker panicked",
				"tracker", e.id, "chat_id", msg.ChatID, "panic", p, "stack", string(debug.Stack()))
		}
	}()

	if !e.pred(ctx, msg) {
		return
	}
	if err := e.act(ctx, gw, msg); err != nil {
		r.logger.Error("tracker action failed", "tracker", e.id, "chat_id", msg.ChatID, "error", err)
	}
}
