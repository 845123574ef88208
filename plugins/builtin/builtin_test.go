package builtin_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jdelaire/openbot/core"
	"github.com/jdelaire/openbot/core/permission"
	"github.com/jdelaire/openbot/internal/bottest"
	"github.com/jdelaire/openbot/plugins/builtin"
)

func setup(t *testing.T, opts builtin.Options) *bottest.Harness {
	t.Helper()
	h := bottest.New(t, "sudo1")
	opts.Settings = h.Settings
	opts.Commands = h.Dispatcher.Commands()
	if opts.Stats == nil {
		opts.Stats = func(context.Context) (builtin.HostStats, error) {
			return builtin.HostStats{Hostname: "nas", Uptime: 26 * time.Hour, MemUsed: 2 << 30, MemTotal: 8 << 30, MemPercent: 25, Load1: 0.5}, nil
		}
	}
	h.Commands(builtin.New(opts).Commands()...)
	return h
}

func kinds(h *bottest.Harness) []string {
	var out []string
	for _, e := range h.Spy.Events() {
		out = append(out, e.Kind)
	}
	return out
}

func TestPingScenario(t *testing.T) {
	h := setup(t, builtin.Options{})

	h.Send("c1", "stranger", ".ping")

	if got, want := kinds(h), []string{"react", "send", "react", "react"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("event kinds = %v, want %v", got, want)
	}
	if got := h.Spy.Emojis(); !reflect.DeepEqual(got, []string{core.ReactWorking, core.ReactSuccess, ""}) {
		t.Errorf("reactions = %q", got)
	}
	if !strings.HasPrefix(h.Spy.LastText(), "Pong! ") || !strings.HasSuffix(h.Spy.LastText(), " ms") {
		t.Errorf("reply = %q", h.Spy.LastText())
	}
}

func TestKickScenario(t *testing.T) {
	h := setup(t, builtin.Options{})
	h.Group("g1", []string{"alice", "bob", "carol"}, "carol")

	// A plain member passes the permission gate; the handler refuses.
	h.Send("g1", "alice", ".kick @bob")
	if got := h.Spy.Sent(); !reflect.DeepEqual(got, []string{builtin.NotAllowed}) {
		t.Fatalf("sent = %v", got)
	}
	if got := h.Spy.Emojis(); !reflect.DeepEqual(got, []string{core.ReactWorking, core.ReactFallback, ""}) {
		t.Errorf("reactions = %q", got)
	}
	if kicks := h.Spy.Kind("kick"); len(kicks) != 0 {
		t.Fatalf("kicks = %+v", kicks)
	}

	// An admin may kick.
	h.Spy.Reset()
	h.Send("g1", "carol", ".kick @bob")
	kicks := h.Spy.Kind("kick")
	if len(kicks) != 1 || kicks[0].Target != "bob" || kicks[0].ChatID != "g1" {
		t.Fatalf("kicks = %+v", kicks)
	}
	if got := h.Spy.Emojis(); !reflect.DeepEqual(got, []string{core.ReactWorking, core.ReactSuccess, ""}) {
		t.Errorf("reactions = %q", got)
	}

	// Sudo users do not need to be admins.
	h.Spy.Reset()
	msg := h.Msg("g1", "sudo1", ".kick")
	msg.Mentions = []string{"alice"}
	h.Handle(msg)
	if kicks := h.Spy.Kind("kick"); len(kicks) != 1 || kicks[0].Target != "alice" {
		t.Fatalf("sudo kicks = %+v", kicks)
	}
}

func TestKickOutsideGroupIsVisiblyDenied(t *testing.T) {
	h := setup(t, builtin.Options{})

	h.Send("c1", "alice", ".kick @bob")

	if got := h.Spy.Sent(); len(got) != 1 || !strings.Contains(got[0], "groups") {
		t.Errorf("sent = %v", got)
	}
	if got := h.Spy.Emojis(); !reflect.DeepEqual(got, []string{core.ReactDenied}) {
		t.Errorf("reactions = %q", got)
	}
}

func TestKickWithoutTarget(t *testing.T) {
	h := setup(t, builtin.Options{})
	h.Group("g1", []string{"carol"}, "carol")

	h.Send("g1", "carol", ".kick")
	if got := h.Spy.Emojis(); !reflect.DeepEqual(got, []string{core.ReactWorking, core.ReactFallback, ""}) {
		t.Errorf("reactions = %q", got)
	}
}

func TestModeSwitchAppliesOnNextDispatch(t *testing.T) {
	h := setup(t, builtin.Options{})

	h.Send("c1", "sudo1", ".mode private")
	if h.Settings.Mode() != permission.ModePrivate {
		t.Fatalf("mode = %q", h.Settings.Mode())
	}

	h.Spy.Reset()
	h.Send("c1", "stranger", ".ping")
	if n := len(h.Spy.Events()); n != 0 {
		t.Fatalf("private mode leaked %d events to a stranger", n)
	}

	h.Send("c1", "sudo1", ".ping")
	if len(h.Spy.Sent()) != 1 {
		t.Errorf("sudo ping in private mode: %v", h.Spy.Sent())
	}
}

func TestModeRejectsUnknownValue(t *testing.T) {
	h := setup(t, builtin.Options{})
	h.Send("c1", "sudo1", ".mode secret")
	if h.Settings.Mode() != permission.ModePublic {
		t.Errorf("mode = %q", h.Settings.Mode())
	}
	if got := h.Spy.Emojis(); got[1] != core.ReactFallback {
		t.Errorf("reactions = %q", got)
	}
}

func TestSudoCommands(t *testing.T) {
	h := setup(t, builtin.Options{})

	h.Send("c1", "stranger", ".setsudo friend")
	if h.Settings.IsSudo("friend") {
		t.Fatal("stranger granted sudo")
	}
	if got := h.Spy.Sent(); len(got) != 1 || !strings.Contains(got[0], "sudo") {
		t.Errorf("deny = %v", got)
	}

	msg := h.Msg("c1", "sudo1", ".setsudo friend")
	msg.Mentions = []string{"mate"}
	h.Handle(msg)
	if !h.Settings.IsSudo("friend") || !h.Settings.IsSudo("mate") {
		t.Fatalf("sudo = %v", h.Settings.Sudo())
	}

	h.Spy.Reset()
	h.Send("c1", "friend", ".getsudo")
	if out := h.Spy.LastText(); !strings.Contains(out, "mate") || !strings.Contains(out, "sudo1") {
		t.Errorf("getsudo = %q", out)
	}

	h.Send("c1", "friend", ".delsudo @mate")
	if h.Settings.IsSudo("mate") {
		t.Error("mate still sudo")
	}
}

func TestVarCommands(t *testing.T) {
	h := setup(t, builtin.Options{})

	h.Send("c1", "sudo1", ".setvar welcome = hello there")
	if v, ok := h.Settings.Get("WELCOME"); !ok || v != "hello there" {
		t.Fatalf("WELCOME = %q, %v", v, ok)
	}

	h.Spy.Reset()
	h.Send("c1", "sudo1", ".getvar welcome")
	if got := h.Spy.LastText(); got != "WELCOME=hello there" {
		t.Errorf("getvar = %q", got)
	}

	h.Send("c1", "sudo1", ".delvar welcome")
	if _, ok := h.Settings.Get("WELCOME"); ok {
		t.Error("WELCOME still set")
	}

	h.Spy.Reset()
	h.Send("c1", "sudo1", ".setvar novalue")
	if got := h.Spy.Emojis(); got[1] != core.ReactFallback {
		t.Errorf("reactions = %q", got)
	}
}

func TestSetPrefixIsOwnerOnly(t *testing.T) {
	h := setup(t, builtin.Options{})

	h.Send("c1", "sudo1", ".setprefix !")
	if h.Settings.Prefix() != "." {
		t.Fatal("sudo changed the prefix")
	}
	if n := len(h.Spy.Events()); n != 0 {
		t.Errorf("owner-only command leaked %d events", n)
	}

	h.Send("c1", bottest.Owner, ".setprefix !")
	if h.Settings.Prefix() != "!" {
		t.Fatalf("prefix = %q", h.Settings.Prefix())
	}

	h.Spy.Reset()
	h.Send("c1", "stranger", ".ping")
	h.Send("c1", "stranger", "!ping")
	if got := h.Spy.Sent(); len(got) != 1 || !strings.HasPrefix(got[0], "Pong") {
		t.Errorf("sent = %v", got)
	}
}

func TestHelp(t *testing.T) {
	h := setup(t, builtin.Options{})

	h.Send("c1", "stranger", ".help")
	menu := h.Spy.LastText()
	for _, want := range []string{"[general]", ".ping - Check that the bot is alive", "[config]", ".kick"} {
		if !strings.Contains(menu, want) {
			t.Errorf("menu missing %q:\n%s", want, menu)
		}
	}
	if len(h.Spy.Emojis()) != 0 {
		t.Errorf("help should not react: %q", h.Spy.Emojis())
	}

	h.Send("c1", "stranger", ".help .kick")
	if got := h.Spy.LastText(); !strings.Contains(got, "Usage: .kick @user...") || !strings.Contains(got, "Aliases: remove") {
		t.Errorf("help kick = %q", got)
	}

	h.Send("c1", "stranger", ".menu nosuch")
	if got := h.Spy.LastText(); !strings.Contains(got, "No command") {
		t.Errorf("help nosuch = %q", got)
	}
}

func TestStatus(t *testing.T) {
	h := setup(t, builtin.Options{Version: "1.2.3"})

	h.Send("c1", "stranger", ".status")
	out := h.Spy.LastText()
	for _, want := range []string{"Version: 1.2.3", "Host: nas", "Host uptime: 1d 2h 0m", "Memory: 2.0 GB / 8.0 GB (25%)"} {
		if !strings.Contains(out, want) {
			t.Errorf("status missing %q:\n%s", want, out)
		}
	}
}

func TestStatusWithoutHostStats(t *testing.T) {
	h := setup(t, builtin.Options{Stats: func(context.Context) (builtin.HostStats, error) {
		return builtin.HostStats{}, errors.New("no /proc")
	}})

	h.Send("c1", "stranger", ".status")
	out := h.Spy.LastText()
	if !strings.HasPrefix(out, "Status: OK") || strings.Contains(out, "Host:") {
		t.Errorf("status = %q", out)
	}
}

func TestReload(t *testing.T) {
	calls := 0
	h := setup(t, builtin.Options{Reload: func() (int, error) {
		calls++
		return 13, nil
	}})

	h.Send("c1", "stranger", ".reload")
	if calls != 0 {
		t.Fatal("stranger triggered reload")
	}

	h.Send("c1", "sudo1", ".reload")
	if calls != 1 {
		t.Fatalf("reload calls = %d", calls)
	}
	if got := h.Spy.LastText(); got != "Reloaded 13 commands." {
		t.Errorf("reply = %q", got)
	}
}
