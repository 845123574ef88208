// Package permission decides whether a resolved command may run for a
// message. Evaluate is pure: it reads only its arguments.
package permission

import (
	"strings"

	"github.com/jdelaire/openbot/core/message"
)

// Mode is the runtime access mode.
type Mode string

const (
	ModePublic  Mode = "public"
	ModePrivate Mode = "private"
)

// ParseMode accepts "public" or "private" in any case.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePublic:
		return ModePublic, true
	case ModePrivate:
		return ModePrivate, true
	}
	return "", false
}

// Flags are the access requirements a command declares.
type Flags struct {
	RequiresGroup   bool
	RequiresPrivate bool
	RequiresSudo    bool
	RequiresOwner   bool
	RequiresBotSelf bool
}

// Context is derived fresh for every message.
type Context struct {
	IsSudo    bool
	IsOwner   bool
	IsGroup   bool
	IsPrivate bool
	FromSelf  bool
}

// NewContext derives the permission context of msg. ownerID is the bot's own
// account; a message sent from the bot's own session also counts as owner.
func NewContext(msg message.InboundMessage, ownerID string, isSudo func(string) bool) Context {
	owner := msg.FromSelf || (ownerID != "" && msg.SenderID == ownerID)
	sudo := false
	if isSudo != nil {
		sudo = isSudo(msg.SenderID)
	}
	return Context{
		IsSudo:    sudo,
		IsOwner:   owner,
		IsGroup:   msg.IsGroup,
		IsPrivate: !msg.IsGroup,
		FromSelf:  msg.FromSelf,
	}
}

// Outcome is the class of a decision.
type Outcome int

const (
	Allow Outcome = iota
	SilentDeny
	VisibleDeny
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case SilentDeny:
		return "silent_deny"
	case VisibleDeny:
		return "visible_deny"
	}
	return "unknown"
}

// Reason explains a visible deny.
type Reason string

const (
	ReasonGroupOnly Reason = "GROUP_ONLY"
	ReasonPMOnly    Reason = "PM_ONLY"
	ReasonSudoOnly  Reason = "SUDO_ONLY"
)

// Decision is the result of Evaluate.
type Decision struct {
	Outcome Outcome
	Reason  Reason
}

// Allowed reports whether the command may run.
func (d Decision) Allowed() bool { return d.Outcome == Allow }

// Text returns the user-facing explanation of a visible deny.
func (d Decision) Text() string {
	switch d.Reason {
	case ReasonGroupOnly:
		return "This command can only be used in groups."
	case ReasonPMOnly:
		return "This command can only be used in private chat."
	case ReasonSudoOnly:
		return "This command is restricted to sudo users."
	}
	return ""
}

// Evaluate applies the checks in a fixed order. Ignore-checks run before
// validation-checks so unauthorized callers never see an error text.
func Evaluate(pc Context, f Flags, mode Mode) Decision {
	if mode == ModePrivate && !pc.IsSudo && !pc.IsOwner {
		return Decision{Outcome: SilentDeny}
	}
	if f.RequiresOwner && !pc.IsOwner {
		return Decision{Outcome: SilentDeny}
	}
	if f.RequiresBotSelf && !pc.FromSelf {
		return Decision{Outcome: SilentDeny}
	}
	if f.RequiresGroup && !pc.IsGroup {
		return Decision{Outcome: VisibleDeny, Reason: ReasonGroupOnly}
	}
	if f.RequiresPrivate && !pc.IsPrivate {
		return Decision{Outcome: VisibleDeny, Reason: ReasonPMOnly}
	}
	if f.RequiresSudo && !pc.IsSudo && !pc.IsOwner {
		return Decision{Outcome: VisibleDeny, Reason: ReasonSudoOnly}
	}
	return Decision{Outcome: Allow}
}
