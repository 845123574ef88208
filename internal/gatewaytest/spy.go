// Package gatewaytest provides a recording message.Gateway for tests.
package gatewaytest

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/jdelaire/openbot/core/message"
)

// Event is one recorded gateway call.
type Event struct {
	Kind   string // send, react, delete, kick
	ChatID string
	Target string // message id for react/delete, user id for kick
	Text   string
	Emoji  string
}

// Spy records every call. Zero value is ready to use.
type Spy struct {
	mu        sync.Mutex
	events    []Event
	nextID    int
	Groups    map[string]message.GroupInfo
	FailReact bool
	FailSend  bool
}

func (s *Spy) Name() string { return "spy" }

func (s *Spy) Send(_ context.Context, chatID string, c message.Content) (message.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSend {
		return message.Key{}, fmt.Errorf("send failed")
	}
	s.nextID++
	s.events = append(s.events, Event{Kind: "send", ChatID: chatID, Text: c.Text})
	return message.Key{ChatID: chatID, MessageID: "out-" + strconv.Itoa(s.nextID), FromSelf: true}, nil
}

func (s *Spy) React(_ context.Context, key message.Key, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReact {
		s.events = append(s.events, Event{Kind: "react-failed", ChatID: key.ChatID, Target: key.MessageID, Emoji: emoji})
		return fmt.Errorf("react failed")
	}
	s.events = append(s.events, Event{Kind: "react", ChatID: key.ChatID, Target: key.MessageID, Emoji: emoji})
	return nil
}

func (s *Spy) Delete(_ context.Context, key message.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{Kind: "delete", ChatID: key.ChatID, Target: key.MessageID})
	return nil
}

func (s *Spy) Kick(_ context.Context, chatID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{Kind: "kick", ChatID: chatID, Target: userID})
	return nil
}

func (s *Spy) GroupInfo(_ context.Context, chatID string) (message.GroupInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.Groups[chatID]
	if !ok {
		return message.GroupInfo{}, fmt.Errorf("unknown group %s", chatID)
	}
	return g, nil
}

// Events returns a copy of everything recorded so far.
func (s *Spy) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Kind returns recorded events of one kind.
func (s *Spy) Kind(kind string) []Event {
	var out []Event
	for _, e := range s.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Sent returns the texts of sent messages.
func (s *Spy) Sent() []string {
	var out []string
	for _, e := range s.Kind("send") {
		out = append(out, e.Text)
	}
	return out
}

// LastText returns the most recent sent text.
func (s *Spy) LastText() string {
	sent := s.Sent()
	if len(sent) == 0 {
		return ""
	}
	return sent[len(sent)-1]
}

// Emojis returns reaction emojis in order, including clears as "".
func (s *Spy) Emojis() []string {
	var out []string
	for _, e := range s.Kind("react") {
		out = append(out, e.Emoji)
	}
	return out
}

// Reset drops recorded events.
func (s *Spy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
