package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jdelaire/openbot/core/permission"
)

// State is the persisted settings.json structure.
type State struct {
	Prefix  string            `json:"prefix"`
	Mode    permission.Mode   `json:"mode"`
	OwnerID string            `json:"owner_id,omitempty"`
	Sudo    []string          `json:"sudo"`
	Vars    map[string]string `json:"vars"`
}

// Store persists settings in a single JSON file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the file. A missing or empty file yields ok=false.
func (s *Store) Load() (st State, ok bool, err error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, false, nil
		}
		return State{}, false, fmt.Errorf("read settings file: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return State{}, false, nil
	}

	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, false, fmt.Errorf("parse settings file: %w", err)
	}
	return normalizeState(st), true, nil
}

func (s *Store) Save(st State) (retErr error) {
	st = normalizeState(st)

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp := s.path + ".tmp"
	defer func() {
		if retErr != nil {
			_ = os.Remove(tmp)
		}
	}()

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open temp settings file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(st); err != nil {
		_ = f.Close()
		return fmt.Errorf("write temp settings file: %w", err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("fsync temp settings file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp settings file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename temp settings file: %w", err)
	}
	return nil
}

func normalizeState(st State) State {
	if st.Prefix == "" {
		st.Prefix = "."
	}
	if _, ok := permission.ParseMode(string(st.Mode)); !ok {
		st.Mode = permission.ModePublic
	}
	if st.Sudo == nil {
		st.Sudo = []string{}
	}
	if st.Vars == nil {
		st.Vars = map[string]string{}
	}
	return st
}
