// Package message holds the gateway-neutral message model shared by the
// dispatch core and its consumers.
package message

import (
	"context"
	"time"
)

// MediaKind classifies an attachment.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaSticker  MediaKind = "sticker"
	MediaDocument MediaKind = "document"
)

// Media describes an attachment without carrying its bytes.
type Media struct {
	Kind    MediaKind
	MIME    string
	FileID  string
	Caption string
}

// QuotedRef points at the message a reply quotes.
type QuotedRef struct {
	ID       string
	SenderID string
	Text     string
}

// Key addresses a single message on a gateway.
type Key struct {
	ChatID    string
	MessageID string
	FromSelf  bool
}

// InboundMessage is an immutable snapshot of one gateway event.
type InboundMessage struct {
	ID        string
	ChatID    string
	SenderID  string
	FromSelf  bool
	Text      string
	HasText   bool
	Quoted    *QuotedRef
	Mentions  []string
	Handles   map[string]string
	Media     *Media
	IsGroup   bool
	Forwarded bool
	Status    bool
	Timestamp time.Time
}

// Key returns the address of the message.
func (m InboundMessage) Key() Key {
	return Key{ChatID: m.ChatID, MessageID: m.ID, FromSelf: m.FromSelf}
}

// IsPrivate reports whether the message arrived in a one-to-one chat.
func (m InboundMessage) IsPrivate() bool {
	return !m.IsGroup
}

// Mentioned reports whether userID is in the mention set.
func (m InboundMessage) Mentioned(userID string) bool {
	for _, id := range m.Mentions {
		if id == userID {
			return true
		}
	}
	return false
}

// Targets returns the users a moderation or game command is aimed at:
// explicit mentions first, then the quoted sender.
func (m InboundMessage) Targets() []string {
	out := make([]string, 0, len(m.Mentions)+1)
	seen := make(map[string]bool, len(m.Mentions)+1)
	for _, id := range m.Mentions {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if m.Quoted != nil && m.Quoted.SenderID != "" && !seen[m.Quoted.SenderID] {
		out = append(out, m.Quoted.SenderID)
	}
	return out
}

// Sink accepts raw envelopes from a gateway adapter, in arrival order.
type Sink func(ctx context.Context, env Envelope)
