// Package settings is the runtime configuration the dispatch core reads on
// every message: prefix, mode, sudo list and free-form variables. Every
// mutation is persisted; Reload picks up external edits of the file.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/jdelaire/openbot/core/permission"
)

var (
	ErrEmptyKey    = errors.New("settings key is empty")
	ErrEmptyPrefix = errors.New("prefix is empty")
)

// Settings is safe for concurrent use.
type Settings struct {
	store  *Store
	logger *slog.Logger

	mu    sync.RWMutex
	state State
}

// Open loads settings from store. When the file does not exist yet it is
// seeded with defaults.
func Open(store *Store, defaults State, logger *slog.Logger) (*Settings, error) {
	if logger == nil {
		logger = slog.Default()
	}
	st, ok, err := store.Load()
	if err != nil {
		return nil, err
	}
	if !ok {
		st = normalizeState(defaults)
		if err := store.Save(st); err != nil {
			return nil, fmt.Errorf("seed settings: %w", err)
		}
		logger.Info("settings seeded", "path", store.Path())
	}
	return &Settings{store: store, logger: logger, state: st}, nil
}

// Reload re-reads the file. A broken file leaves the current state in place.
func (s *Settings) Reload() error {
	st, ok, err := s.store.Load()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.logger.Info("settings reloaded", "path", s.store.Path())
	return nil
}

func (s *Settings) Prefix() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Prefix
}

func (s *Settings) Mode() permission.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Mode
}

func (s *Settings) OwnerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.OwnerID
}

// IsSudo reports whether id is in the sudo list.
func (s *Settings) IsSudo(id string) bool {
	if id == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.state.Sudo, id)
}

// Sudo returns a copy of the sudo list.
func (s *Settings) Sudo() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.state.Sudo...)
}

// Get returns a variable.
func (s *Settings) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.state.Vars[normalizeKey(key)]
	return v, ok
}

// Vars returns a copy of all variables.
func (s *Settings) Vars() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.state.Vars))
	for k, v := range s.state.Vars {
		out[k] = v
	}
	return out
}

func (s *Settings) SetMode(m permission.Mode) error {
	return s.update(func(st *State) error {
		st.Mode = m
		return nil
	})
}

func (s *Settings) SetPrefix(p string) error {
	p = strings.TrimSpace(p)
	if p == "" {
		return ErrEmptyPrefix
	}
	return s.update(func(st *State) error {
		st.Prefix = p
		return nil
	})
}

// AddSudo adds ids, ignoring ones already present, and reports how many
// were added.
func (s *Settings) AddSudo(ids ...string) (int, error) {
	added := 0
	err := s.update(func(st *State) error {
		for _, id := range ids {
			if id == "" || slices.Contains(st.Sudo, id) {
				continue
			}
			st.Sudo = append(st.Sudo, id)
			added++
		}
		return nil
	})
	return added, err
}

// RemoveSudo removes ids and reports how many were removed.
func (s *Settings) RemoveSudo(ids ...string) (int, error) {
	removed := 0
	err := s.update(func(st *State) error {
		kept := st.Sudo[:0:0]
		for _, cur := range st.Sudo {
			if slices.Contains(ids, cur) {
				removed++
				continue
			}
			kept = append(kept, cur)
		}
		st.Sudo = kept
		return nil
	})
	return removed, err
}

func (s *Settings) Set(key, value string) error {
	key = normalizeKey(key)
	if key == "" {
		return ErrEmptyKey
	}
	return s.update(func(st *State) error {
		st.Vars[key] = value
		return nil
	})
}

// Delete removes a variable and reports whether it existed.
func (s *Settings) Delete(key string) (bool, error) {
	key = normalizeKey(key)
	existed := false
	err := s.update(func(st *State) error {
		_, existed = st.Vars[key]
		delete(st.Vars, key)
		return nil
	})
	return existed, err
}

// update applies fn to a copy, persists it and only then publishes it.
func (s *Settings) update(fn func(st *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state
	next.Sudo = append([]string(nil), s.state.Sudo...)
	next.Vars = make(map[string]string, len(s.state.Vars))
	for k, v := range s.state.Vars {
		next.Vars[k] = v
	}

	if err := fn(&next); err != nil {
		return err
	}
	if err := s.store.Save(next); err != nil {
		return err
	}
	s.state = normalizeState(next)
	return nil
}

func normalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
