// Package bottest wires a dispatcher to a recording gateway and temporary
// settings for end-to-end plugin tests.
package bottest

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jdelaire/openbot/core"
	"github.com/jdelaire/openbot/core/command"
	"github.com/jdelaire/openbot/core/message"
	"github.com/jdelaire/openbot/internal/gatewaytest"
	"github.com/jdelaire/openbot/internal/settings"
)

// Owner is the bot's own account in every harness.
const Owner = "bot"

// Harness is a dispatcher with a spy gateway.
type Harness struct {
	T          *testing.T
	Dispatcher *core.Dispatcher
	Spy        *gatewaytest.Spy
	Settings   *settings.Settings
	Logger     *slog.Logger

	seq atomic.Int64
}

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// New builds a harness. sudo users are seeded into settings.
func New(t *testing.T, sudo ...string) *Harness {
	t.Helper()
	logger := Logger()
	st, err := settings.Open(
		settings.NewStore(filepath.Join(t.TempDir(), "settings.json")),
		settings.State{Prefix: ".", OwnerID: Owner, Sudo: sudo},
		logger,
	)
	if err != nil {
		t.Fatalf("open settings: %v", err)
	}
	spy := &gatewaytest.Spy{Groups: make(map[string]message.GroupInfo)}
	p := core.NewPipeline(core.PipelineOptions{Watchdog: time.Hour, ClearDelay: -1}, logger)
	return &Harness{
		T:          t,
		Dispatcher: core.NewDispatcher(st, spy, p, logger),
		Spy:        spy,
		Settings:   st,
		Logger:     logger,
	}
}

// Commands registers descs.
func (h *Harness) Commands(descs ...command.Descriptor) {
	h.T.Helper()
	for _, d := range descs {
		if err := h.Dispatcher.RegisterCommand(d); err != nil {
			h.T.Fatalf("register %q: %v", d.Pattern, err)
		}
	}
}

// Group declares a group chat; the listed admins are flagged as such.
func (h *Harness) Group(chatID string, members []string, admins ...string) {
	info := message.GroupInfo{ID: chatID}
	isAdmin := make(map[string]bool, len(admins))
	for _, a := range admins {
		isAdmin[a] = true
	}
	for _, m := range members {
		info.Participants = append(info.Participants, message.Participant{ID: m, IsAdmin: isAdmin[m]})
	}
	h.Spy.Groups[chatID] = info
}

// Msg builds a text message from sender in chatID. Chats whose id starts
// with "g" are groups.
func (h *Harness) Msg(chatID, sender, text string) message.InboundMessage {
	return message.InboundMessage{
		ID:        "in-" + strconv.FormatInt(h.seq.Add(1), 10),
		ChatID:    chatID,
		SenderID:  sender,
		FromSelf:  sender == Owner,
		Text:      text,
		HasText:   text != "",
		IsGroup:   len(chatID) > 0 && chatID[0] == 'g',
		Timestamp: time.Now(),
	}
}

// Send dispatches a text message and waits for it to be handled.
func (h *Harness) Send(chatID, sender, text string) message.InboundMessage {
	msg := h.Msg(chatID, sender, text)
	h.Dispatcher.Handle(context.Background(), msg)
	return msg
}

// Handle dispatches msg and waits for it to be handled.
func (h *Harness) Handle(msg message.InboundMessage) {
	h.Dispatcher.Handle(context.Background(), msg)
}

// Deliver queues a text message the way a gateway receiver does, without
// waiting for it.
func (h *Harness) Deliver(chatID, sender, text string) {
	msg := h.Msg(chatID, sender, text)
	h.Dispatcher.Deliver(context.Background(), message.Envelope{
		ID:        msg.ID,
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		FromSelf:  msg.FromSelf,
		IsGroup:   msg.IsGroup,
		Text:      text,
		Timestamp: msg.Timestamp,
	})
}

// Wait blocks until every delivered message has been handled.
func (h *Harness) Wait() {
	h.Dispatcher.Wait()
}
