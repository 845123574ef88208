// Package command holds command descriptors and the registry that resolves
// message text to at most one of them.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jdelaire/openbot/core/message"
	"github.com/jdelaire/openbot/core/permission"
)

// Result is the non-error outcome of a handler.
type Result int

const (
	// Success means the command had its intended effect.
	Success Result = iota
	// Fallback means the command ran but nothing applied, e.g. no target.
	Fallback
)

func (r Result) String() string {
	if r == Fallback {
		return "fallback"
	}
	return "success"
}

// Handler runs a command.
type Handler func(ctx context.Context, inv *Invocation) (Result, error)

// Descriptor is a registered command.
type Descriptor struct {
	Pattern     string
	Aliases     []string
	Flags       permission.Flags
	NoReact     bool // skip working and terminal reactions
	Description string
	Category    string
	Usage       string
	Hidden      bool
	Handler     Handler

	matcher Matcher
}

// Name is the literal part of the pattern.
func (d *Descriptor) Name() string { return d.matcher.Literal() }

// Invocation is everything a handler sees for one call.
type Invocation struct {
	ID      string
	Command *Descriptor
	Msg     message.InboundMessage
	Arg     string
	Perm    permission.Context
	Prefix  string
	Gateway message.Gateway
	Logger  *slog.Logger
}

// Args splits the captured argument on whitespace.
func (inv *Invocation) Args() []string {
	return strings.Fields(inv.Arg)
}

// Reply sends text to the invoking chat, quoting the invoking message.
func (inv *Invocation) Reply(ctx context.Context, text string) error {
	key := inv.Msg.Key()
	_, err := inv.Gateway.Send(ctx, inv.Msg.ChatID, message.Content{Text: text, ReplyTo: &key})
	return err
}

// Send sends text to the invoking chat without quoting.
func (inv *Invocation) Send(ctx context.Context, text string, mentions ...string) error {
	_, err := inv.Gateway.Send(ctx, inv.Msg.ChatID, message.Content{Text: text, Mention: mentions})
	return err
}

// Targets returns the users a moderation-style command acts on: mentions,
// the quoted sender, then any argument words of the form @id. Handles the
// gateway resolved are replaced by their ids; unresolved ones are skipped
// and reported by Unresolved.
func (inv *Invocation) Targets() []string {
	out := inv.Msg.Targets()
	seen := make(map[string]bool, len(out))
	for _, id := range out {
		seen[id] = true
	}
	for _, word := range inv.Args() {
		id, ok := handle(word)
		if !ok {
			continue
		}
		if resolved, known := inv.Msg.Handles[strings.ToLower(id)]; known {
			id = resolved
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Unresolved returns the @handles in the argument that the gateway could
// not map to a user.
func (inv *Invocation) Unresolved() []string {
	var out []string
	for _, word := range inv.Args() {
		h, ok := handle(word)
		if !ok {
			continue
		}
		if id, known := inv.Msg.Handles[strings.ToLower(h)]; known && id == "" {
			out = append(out, h)
		}
	}
	return out
}

// ReplyUnresolved tells the caller which handles could not be matched to a
// user and reports whether there were any.
func (inv *Invocation) ReplyUnresolved(ctx context.Context) (bool, error) {
	unknown := inv.Unresolved()
	if len(unknown) == 0 {
		return false, nil
	}
	for i, h := range unknown {
		unknown[i] = "@" + h
	}
	text := fmt.Sprintf("I don't know %s yet. They need to send a message here first, or reply to one of their messages instead.",
		strings.Join(unknown, ", "))
	return true, inv.Reply(ctx, text)
}

func handle(word string) (string, bool) {
	h, ok := strings.CutPrefix(word, "@")
	return h, ok && h != ""
}
