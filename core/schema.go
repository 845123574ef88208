package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	MaxPayloadBytes = 8192
	MaxTextLen      = 4096
	MaxChatIDLen    = 128
	CurrentVersion  = 1
)

// Control socket actions.
const (
	ActionSend   = "send"
	ActionReload = "reload"
)

// Request is the JSON envelope sent over the control socket.
type Request struct {
	Version int             `json:"version"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SendPayload is the payload for the "send" action. Gateway selects a
// registered gateway by name; empty means the default.
type SendPayload struct {
	Gateway string `json:"gateway,omitempty"`
	ChatID  string `json:"chat_id"`
	Text    string `json:"text"`
}

// Response is the JSON envelope sent back to the client.
type Response struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	ID       string `json:"id,omitempty"`
	Commands int    `json:"commands,omitempty"`
}

// ValidateRequest checks the request envelope and the payload of known actions.
func ValidateRequest(data []byte) (*Request, error) {
	if len(data) > MaxPayloadBytes {
		return nil, fmt.Errorf("payload exceeds %d byte limit", MaxPayloadBytes)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var req Request
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if req.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported version %d, expected %d", req.Version, CurrentVersion)
	}

	switch req.Action {
	case ActionSend:
		if _, err := ParseSendPayload(req.Payload); err != nil {
			return nil, err
		}
	case ActionReload:
		if len(req.Payload) > 0 && !bytes.Equal(bytes.TrimSpace(req.Payload), []byte("{}")) && !bytes.Equal(req.Payload, []byte("null")) {
			return nil, fmt.Errorf("reload takes no payload")
		}
	default:
		return nil, fmt.Errorf("unknown action %q", req.Action)
	}

	return &req, nil
}

// ParseSendPayload decodes and validates a send payload.
func ParseSendPayload(raw json.RawMessage) (SendPayload, error) {
	if raw == nil {
		return SendPayload{}, fmt.Errorf("missing payload")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var p SendPayload
	if err := dec.Decode(&p); err != nil {
		return SendPayload{}, fmt.Errorf("invalid send payload: %w", err)
	}

	switch {
	case p.ChatID == "":
		return SendPayload{}, fmt.Errorf("chat_id is required")
	case len(p.ChatID) > MaxChatIDLen:
		return SendPayload{}, fmt.Errorf("chat_id exceeds %d character limit", MaxChatIDLen)
	case p.Text == "":
		return SendPayload{}, fmt.Errorf("text is required")
	case len(p.Text) > MaxTextLen:
		return SendPayload{}, fmt.Errorf("text exceeds %d character limit", MaxTextLen)
	}
	return p, nil
}
