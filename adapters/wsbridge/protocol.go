// Package wsbridge speaks JSON frames over a websocket to an external
// messaging bridge, and exposes it as a gateway.
package wsbridge

import (
	"encoding/json"
	"time"

	"github.com/jdelaire/openbot/core/message"
)

// Frame types.
const (
	TypeRequest  = "req"
	TypeResponse = "res"
	TypeEvent    = "event"
)

// EventMessage carries one inbound chat message.
const EventMessage = "message"

// Bridge methods.
const (
	MethodSend      = "send"
	MethodReact     = "react"
	MethodDelete    = "delete"
	MethodKick      = "kick"
	MethodGroupInfo = "group_info"
)

// Frame is one websocket text message in either direction.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  any             `json:"params,omitempty"`
	OK      bool            `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *FrameError     `json:"error,omitempty"`
	Event   string          `json:"event,omitempty"`
}

// FrameError is a failed response.
type FrameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *FrameError) Error() string {
	return "bridge " + e.Code + ": " + e.Message
}

// KeyParams addresses one message.
type KeyParams struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
}

// SendParams is the body of a send request.
type SendParams struct {
	ChatID   string   `json:"chat_id"`
	Text     string   `json:"text"`
	ReplyTo  string   `json:"reply_to,omitempty"`
	Mentions []string `json:"mentions,omitempty"`
}

// SendResult is the payload of a send response.
type SendResult struct {
	MessageID string `json:"message_id"`
}

// ReactParams is the body of a react request. An empty emoji clears.
type ReactParams struct {
	KeyParams
	Emoji string `json:"emoji"`
}

// KickParams is the body of a kick request.
type KickParams struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
}

// ChatParams names a chat.
type ChatParams struct {
	ChatID string `json:"chat_id"`
}

// GroupResult is the payload of a group_info response.
type GroupResult struct {
	ID           string        `json:"id"`
	Subject      string        `json:"subject"`
	Participants []Participant `json:"participants"`
}

// Participant is one group member.
type Participant struct {
	ID    string `json:"id"`
	Admin bool   `json:"admin"`
}

// Inbound is the payload of a message event.
type Inbound struct {
	ID           string        `json:"id"`
	ChatID       string        `json:"chat_id"`
	SenderID     string        `json:"sender_id"`
	FromMe       bool          `json:"from_me"`
	IsGroup      bool          `json:"is_group"`
	Text         string        `json:"text"`
	Caption      string        `json:"caption"`
	ReplyPayload string        `json:"reply_payload"`
	Quoted       *InboundQuote `json:"quoted"`
	Mentions     []string      `json:"mentions"`
	Media        *InboundMedia `json:"media"`
	Forwarded    bool          `json:"forwarded"`
	Status       bool          `json:"status"`
	Timestamp    int64         `json:"timestamp"`
}

// InboundQuote is the message an inbound message replies to.
type InboundQuote struct {
	ID       string `json:"id"`
	SenderID string `json:"sender_id"`
	Text     string `json:"text"`
}

// InboundMedia describes an attachment.
type InboundMedia struct {
	Kind    string `json:"kind"`
	MIME    string `json:"mime"`
	FileID  string `json:"file_id"`
	Caption string `json:"caption"`
}

// Envelope converts the event payload for the normalizer.
func (in Inbound) Envelope() message.Envelope {
	env := message.Envelope{
		ID:           in.ID,
		ChatID:       in.ChatID,
		SenderID:     in.SenderID,
		FromSelf:     in.FromMe,
		IsGroup:      in.IsGroup,
		Text:         in.Text,
		Caption:      in.Caption,
		ReplyPayload: in.ReplyPayload,
		Mentions:     in.Mentions,
		Forwarded:    in.Forwarded,
		Status:       in.Status,
	}
	if in.Timestamp > 0 {
		env.Timestamp = time.Unix(in.Timestamp, 0)
	}
	if q := in.Quoted; q != nil {
		env.Quoted = &message.QuotedRef{ID: q.ID, SenderID: q.SenderID, Text: q.Text}
	}
	if m := in.Media; m != nil {
		env.Media = &message.Media{Kind: message.MediaKind(m.Kind), MIME: m.MIME, FileID: m.FileID, Caption: m.Caption}
	}
	return env
}
