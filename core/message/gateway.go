package message

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by gateways that cannot perform an operation.
var ErrUnsupported = errors.New("operation not supported by gateway")

// Content is an outbound message body.
type Content struct {
	Text    string
	ReplyTo *Key
	Mention []string
}

// Participant is one member of a group chat.
type Participant struct {
	ID      string
	IsAdmin bool
}

// GroupInfo is the subset of group metadata permission checks and
// moderation consumers need.
type GroupInfo struct {
	ID           string
	Subject      string
	Participants []Participant
}

// IsAdmin reports whether userID administers the group.
func (g GroupInfo) IsAdmin(userID string) bool {
	for _, p := range g.Participants {
		if p.ID == userID {
			return p.IsAdmin
		}
	}
	return false
}

// Gateway is the messaging transport the core talks back through.
type Gateway interface {
	Name() string
	Send(ctx context.Context, chatID string, c Content) (Key, error)
	// React sets emoji on the message; an empty emoji clears it.
	React(ctx context.Context, key Key, emoji string) error
	Delete(ctx context.Context, key Key) error
	Kick(ctx context.Context, chatID, userID string) error
	GroupInfo(ctx context.Context, chatID string) (GroupInfo, error)
}

// Receiver delivers inbound envelopes until ctx is cancelled.
type Receiver interface {
	Start(ctx context.Context) error
}

// IsGroupAdmin reports whether userID administers chatID.
func IsGroupAdmin(ctx context.Context, gw Gateway, chatID, userID string) (bool, error) {
	info, err := gw.GroupInfo(ctx, chatID)
	if err != nil {
		return false, err
	}
	return info.IsAdmin(userID), nil
}
