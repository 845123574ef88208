package permission_test

import (
	"testing"

	"github.com/jdelaire/openbot/core/message"
	"github.com/jdelaire/openbot/core/permission"
)

func TestEvaluate(t *testing.T) {
	stranger := permission.Context{IsGroup: true}
	strangerPM := permission.Context{IsPrivate: true}
	sudo := permission.Context{IsSudo: true, IsGroup: true}
	owner := permission.Context{IsOwner: true, FromSelf: true, IsGroup: true}

	tests := []struct {
		name   string
		pc     permission.Context
		flags  permission.Flags
		mode   permission.Mode
		want   permission.Outcome
		reason permission.Reason
	}{
		{"public allow", stranger, permission.Flags{}, permission.ModePublic, permission.Allow, ""},
		{"private mode stranger", stranger, permission.Flags{}, permission.ModePrivate, permission.SilentDeny, ""},
		{"private mode sudo", sudo, permission.Flags{}, permission.ModePrivate, permission.Allow, ""},
		{"private mode owner", owner, permission.Flags{}, permission.ModePrivate, permission.Allow, ""},
		{"owner only stranger", stranger, permission.Flags{RequiresOwner: true}, permission.ModePublic, permission.SilentDeny, ""},
		{"owner only sudo", sudo, permission.Flags{RequiresOwner: true}, permission.ModePublic, permission.SilentDeny, ""},
		{"owner only owner", owner, permission.Flags{RequiresOwner: true}, permission.ModePublic, permission.Allow, ""},
		{"bot self", sudo, permission.Flags{RequiresBotSelf: true}, permission.ModePublic, permission.SilentDeny, ""},
		{"group only in pm", strangerPM, permission.Flags{RequiresGroup: true}, permission.ModePublic, permission.VisibleDeny, permission.ReasonGroupOnly},
		{"pm only in group", stranger, permission.Flags{RequiresPrivate: true}, permission.ModePublic, permission.VisibleDeny, permission.ReasonPMOnly},
		{"sudo only stranger", stranger, permission.Flags{RequiresSudo: true}, permission.ModePublic, permission.VisibleDeny, permission.ReasonSudoOnly},
		{"sudo only owner", owner, permission.Flags{RequiresSudo: true}, permission.ModePublic, permission.Allow, ""},
		// Owner check runs before the group check: strangers never learn the command exists.
		{"owner before group", strangerPM, permission.Flags{RequiresOwner: true, RequiresGroup: true}, permission.ModePublic, permission.SilentDeny, ""},
		{"group before sudo", strangerPM, permission.Flags{RequiresGroup: true, RequiresSudo: true}, permission.ModePublic, permission.VisibleDeny, permission.ReasonGroupOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := permission.Evaluate(tt.pc, tt.flags, tt.mode)
			if d.Outcome != tt.want || d.Reason != tt.reason {
				t.Errorf("Evaluate = (%s, %q), want (%s, %q)", d.Outcome, d.Reason, tt.want, tt.reason)
			}
		})
	}
}

func TestNewContext(t *testing.T) {
	isSudo := func(id string) bool { return id == "s1" }

	pc := permission.NewContext(message.InboundMessage{SenderID: "s1", IsGroup: true}, "owner", isSudo)
	if !pc.IsSudo || pc.IsOwner || !pc.IsGroup || pc.IsPrivate {
		t.Errorf("sudo context = %+v", pc)
	}

	pc = permission.NewContext(message.InboundMessage{SenderID: "owner"}, "owner", isSudo)
	if !pc.IsOwner || !pc.IsPrivate {
		t.Errorf("owner context = %+v", pc)
	}

	pc = permission.NewContext(message.InboundMessage{SenderID: "x", FromSelf: true}, "", nil)
	if !pc.IsOwner || !pc.FromSelf {
		t.Errorf("self context = %+v", pc)
	}
}

func TestParseMode(t *testing.T) {
	if m, ok := permission.ParseMode(" Private "); !ok || m != permission.ModePrivate {
		t.Errorf("ParseMode(Private) = %q, %v", m, ok)
	}
	if _, ok := permission.ParseMode("secret"); ok {
		t.Error("expected unknown mode to fail")
	}
}

func TestDecisionText(t *testing.T) {
	d := permission.Decision{Outcome: permission.VisibleDeny, Reason: permission.ReasonSudoOnly}
	if d.Text() == "" {
		t.Error("expected text for visible deny")
	}
	if (permission.Decision{}).Text() != "" {
		t.Error("expected no text for allow")
	}
}
