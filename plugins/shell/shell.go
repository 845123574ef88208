// Package shell turns entries of a JSON manifest into chat commands that
// run a shell command on the host.
package shell

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jdelaire/openbot/core/command"
	"github.com/jdelaire/openbot/core/permission"
)

const (
	defaultTimeout = 60 * time.Second
	maxOutput      = 3500
	placeholder    = "{}"
)

// Access selects who may run a manifest command.
type Access string

const (
	AccessOwner Access = "owner"
	AccessSudo  Access = "sudo"
)

// Entry is one manifest entry.
type Entry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Command     string `json:"command"`
	WorkDir     string `json:"workdir"`
	Access      Access `json:"access"`
	Timeout     string `json:"timeout"`

	timeout time.Duration
}

// Run executes the command with args. When the command contains {} the
// args replace it; otherwise they are appended.
func (s *Entry) Run(ctx context.Context, args string) (string, error) {
	line := s.Command
	if strings.Contains(line, placeholder) {
		line = strings.ReplaceAll(line, placeholder, args)
	} else if args != "" {
		line = line + " " + args
	}

	timeout := s.timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-l", "-c", line)
	if s.WorkDir != "" {
		cmd.Dir = s.WorkDir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s: %w\n%s", s.Name, err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// Load reads the manifest at path. A missing file yields no commands.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read command manifest: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse command manifest: %w", err)
	}

	for i := range entries {
		s := &entries[i]
		if s.Name == "" {
			return nil, fmt.Errorf("command at index %d missing name", i)
		}
		if strings.ContainsAny(s.Name, " \t\n") {
			return nil, fmt.Errorf("command %q: name must be a single word", s.Name)
		}
		if s.Command == "" {
			return nil, fmt.Errorf("command %q missing command field", s.Name)
		}
		switch s.Access {
		case "":
			s.Access = AccessOwner
		case AccessOwner, AccessSudo:
		default:
			return nil, fmt.Errorf("command %q: unknown access %q", s.Name, s.Access)
		}
		if s.Timeout != "" {
			d, err := time.ParseDuration(s.Timeout)
			if err != nil {
				return nil, fmt.Errorf("command %q: timeout: %w", s.Name, err)
			}
			s.timeout = d
		}
	}
	return entries, nil
}

// Descriptor wraps s as a command. The reply carries the command output.
func (s Entry) Descriptor() command.Descriptor {
	flags := permission.Flags{RequiresOwner: true}
	if s.Access == AccessSudo {
		flags = permission.Flags{RequiresSudo: true}
	}
	desc := s.Description
	if desc == "" {
		desc = "Run " + s.Name
	}
	return command.Descriptor{
		Pattern:     s.Name + " ?(.*)",
		Flags:       flags,
		Description: desc,
		Category:    "shell",
		Usage:       s.Name + " [args]",
		Handler: func(ctx context.Context, inv *command.Invocation) (command.Result, error) {
			out, err := s.Run(ctx, inv.Arg)
			if err != nil {
				return command.Success, err
			}
			if out == "" {
				out = "(no output)"
			}
			return command.Success, inv.Reply(ctx, truncate(out))
		},
	}
}

// Commands loads the manifest and returns its descriptors.
func Commands(path string) ([]command.Descriptor, error) {
	entries, err := Load(path)
	if err != nil {
		return nil, err
	}
	descs := make([]command.Descriptor, 0, len(entries))
	for _, s := range entries {
		descs = append(descs, s.Descriptor())
	}
	return descs, nil
}

func truncate(s string) string {
	if len(s) <= maxOutput {
		return s
	}
	return s[:maxOutput] + "\n..."
}
