package message_test

import (
	"testing"
	"time"

	"github.com/jdelaire/openbot/core/message"
)

func TestNormalizeTextPrecedence(t *testing.T) {
	quoted := &message.QuotedRef{ID: "q1", SenderID: "u2", Text: "quoted text"}

	tests := []struct {
		name     string
		env      message.Envelope
		wantText string
		wantOK   bool
	}{
		{"direct text", message.Envelope{ChatID: "c", Text: ".ping", Caption: "cap"}, ".ping", true},
		{"caption", message.Envelope{ChatID: "c", Caption: "look", Media: &message.Media{Kind: message.MediaImage}}, "look", true},
		{"media caption", message.Envelope{ChatID: "c", Media: &message.Media{Kind: message.MediaVideo, Caption: "clip"}}, "clip", true},
		{"reply payload", message.Envelope{ChatID: "c", ReplyPayload: ".menu"}, ".menu", true},
		{"quoted fallback", message.Envelope{ChatID: "c", Quoted: quoted}, "quoted text", true},
		{"direct wins over quote", message.Envelope{ChatID: "c", Text: "hi", Quoted: quoted}, "hi", true},
		{"whitespace skipped", message.Envelope{ChatID: "c", Text: "  ", Caption: "cap", Media: &message.Media{}}, "cap", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := message.Normalize(tt.env)
			if !ok {
				t.Fatal("expected a message")
			}
			if msg.Text != tt.wantText || msg.HasText != tt.wantOK {
				t.Errorf("text = (%q, %v), want (%q, %v)", msg.Text, msg.HasText, tt.wantText, tt.wantOK)
			}
		})
	}
}

func TestNormalizeProtocolOnly(t *testing.T) {
	if _, ok := message.Normalize(message.Envelope{ChatID: "c"}); ok {
		t.Error("expected empty envelope to be dropped")
	}
	if _, ok := message.Normalize(message.Envelope{Text: "hi"}); ok {
		t.Error("expected envelope without chat to be dropped")
	}
}

func TestNormalizeMediaWithoutText(t *testing.T) {
	msg, ok := message.Normalize(message.Envelope{ChatID: "c", Media: &message.Media{Kind: message.MediaSticker}})
	if !ok {
		t.Fatal("expected media message to be kept")
	}
	if msg.HasText {
		t.Errorf("HasText = true, want false")
	}
}

func TestNormalizeCopiesSlices(t *testing.T) {
	mentions := []string{"u1"}
	env := message.Envelope{ChatID: "c", Text: "x", Mentions: mentions, Timestamp: time.Unix(10, 0)}
	msg, _ := message.Normalize(env)
	mentions[0] = "changed"
	if msg.Mentions[0] != "u1" {
		t.Errorf("mentions aliased the envelope slice")
	}
	if !msg.Timestamp.Equal(time.Unix(10, 0)) {
		t.Errorf("timestamp = %v", msg.Timestamp)
	}
}

func TestTargets(t *testing.T) {
	msg := message.InboundMessage{
		Mentions: []string{"a", "b", "a"},
		Quoted:   &message.QuotedRef{SenderID: "c"},
	}
	got := msg.Targets()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("targets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("targets = %v, want %v", got, want)
		}
	}
}
