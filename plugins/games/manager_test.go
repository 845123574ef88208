package games_test

import (
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jdelaire/openbot/internal/bottest"
	"github.com/jdelaire/openbot/plugins/games"
)

// fakeClock fires timers only when advanced. A leaky clock ignores Stop, the
// way a real timer that already fired would.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
	leaky  bool
}

type fakeTimer struct {
	c    *fakeClock
	at   time.Duration
	f    func()
	done bool
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.c.leaky || t.done {
		return false
	}
	t.done = true
	return true
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) games.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if !t.done && t.at <= target && (next == nil || t.at < next.at) {
				next = t
			}
		}
		if next == nil {
			break
		}
		next.done = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

func setup(t *testing.T, clock *fakeClock, opts ...func(*games.Options)) (*bottest.Harness, *games.Manager) {
	t.Helper()
	h := bottest.New(t, "sudo1")
	o := games.Options{
		Registrar:   h.Dispatcher,
		IdleTimeout: 60 * time.Second,
		IsSudo:      h.Settings.IsSudo,
		AfterFunc:   clock.AfterFunc,
		Rand:        rand.New(rand.NewPCG(1, 2)),
		Logger:      h.Logger,
	}
	for _, fn := range opts {
		fn(&o)
	}
	m := games.NewManager(o)
	h.Commands(m.Commands()...)
	return h, m
}

func countContaining(texts []string, sub string) int {
	n := 0
	for _, s := range texts {
		if strings.Contains(s, sub) {
			n++
		}
	}
	return n
}

func TestOneGamePerChat(t *testing.T) {
	h, m := setup(t, &fakeClock{})

	h.Send("gC", "alice", ".ttt @bob")
	if s, ok := m.Session("gC"); !ok || s.State != games.AwaitingPlayers {
		t.Fatalf("session = %+v, %v", s, ok)
	}

	h.Send("gC", "carol", ".ttt @dave")
	if !strings.Contains(h.Spy.LastText(), "already running") {
		t.Errorf("second start reply = %q", h.Spy.LastText())
	}
	if s, _ := m.Session("gC"); s.Players[0] != "alice" || s.Players[1] != "bob" {
		t.Errorf("players replaced: %v", s.Players)
	}

	h.Send("gD", "carol", ".ttt @dave")
	if _, ok := m.Session("gD"); !ok {
		t.Error("game in another chat was rejected")
	}

	_, err := m.Start("gC", h.Spy, games.NewMathQuiz(func(int) int { return 0 }), []string{"erin"})
	if !errors.Is(err, games.ErrGameActive) {
		t.Errorf("Start err = %v, want ErrGameActive", err)
	}
	if m.Active() != 2 {
		t.Errorf("active = %d, want 2", m.Active())
	}
}

func TestConcurrentStartsAdmitOne(t *testing.T) {
	h, m := setup(t, &fakeClock{})

	var wg sync.WaitGroup
	var mu sync.Mutex
	started := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Start("gE", h.Spy, games.NewMathQuiz(func(int) int { return 0 }), []string{"p"})
			if err == nil {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if started != 1 {
		t.Fatalf("started = %d, want 1", started)
	}
	if ids := h.Dispatcher.Trackers().IDs(); len(ids) != 1 || ids[0] != "game:gE:move" {
		t.Errorf("trackers = %v", ids)
	}
}

func TestIdleTimeoutResetsOnMove(t *testing.T) {
	for _, leaky := range []bool{false, true} {
		name := "stop honoured"
		if leaky {
			name = "stale timers fire"
		}
		t.Run(name, func(t *testing.T) {
			clock := &fakeClock{leaky: leaky}
			h, m := setup(t, clock)

			h.Send("gC", "alice", ".ttt @bob")
			h.Send("gC", "bob", "join")
			if s, _ := m.Session("gC"); s.State != games.InProgress {
				t.Fatalf("state = %v", s.State)
			}

			clock.Advance(59 * time.Second)
			h.Send("gC", "alice", "5")
			if s, _ := m.Session("gC"); s.Turn != 1 {
				t.Fatalf("move at 59s not applied, turn = %d", s.Turn)
			}

			clock.Advance(1 * time.Second) // 60s
			if _, ok := m.Session("gC"); !ok {
				t.Fatal("expired at 60s despite the move at 59s")
			}
			clock.Advance(58 * time.Second) // 118s
			if _, ok := m.Session("gC"); !ok {
				t.Fatal("expired before 119s")
			}
			clock.Advance(1 * time.Second) // 119s
			if _, ok := m.Session("gC"); ok {
				t.Fatal("still running at 119s")
			}

			clock.Advance(10 * time.Minute)
			if n := countContaining(h.Spy.Sent(), "Time's up"); n != 1 {
				t.Errorf("timeout notices = %d, want 1", n)
			}
			if ids := h.Dispatcher.Trackers().IDs(); len(ids) != 0 {
				t.Errorf("trackers left = %v", ids)
			}
		})
	}
}

func TestBackToBackMovesApplyInOrder(t *testing.T) {
	for range 50 {
		h, m := setup(t, &fakeClock{})
		h.Send("gC", "alice", ".ttt @bob")
		h.Send("gC", "bob", "join")

		h.Deliver("gC", "alice", "5")
		h.Deliver("gC", "bob", "1")
		h.Wait()

		s, ok := m.Session("gC")
		if !ok || s.Turn != 0 {
			t.Fatalf("session = %+v, %v; want both moves applied", s, ok)
		}
	}
}

func TestStaleTimerDoesNotEndNextGame(t *testing.T) {
	clock := &fakeClock{leaky: true}
	h, m := setup(t, clock)

	h.Send("gC", "alice", ".mathquiz")
	clock.Advance(30 * time.Second)
	h.Send("gC", "alice", ".endgame")
	h.Send("gC", "alice", ".mathquiz")

	clock.Advance(30 * time.Second) // first game's timer fires here
	if _, ok := m.Session("gC"); !ok {
		t.Fatal("old timer ended the new game")
	}
	clock.Advance(30 * time.Second)
	if _, ok := m.Session("gC"); ok {
		t.Fatal("new game did not expire")
	}
	if n := countContaining(h.Spy.Sent(), "Time's up"); n != 1 {
		t.Errorf("timeout notices = %d, want 1", n)
	}
}

func TestAwaitingPlayersExpires(t *testing.T) {
	clock := &fakeClock{}
	h, m := setup(t, clock)

	h.Send("gC", "alice", ".chess @bob")
	clock.Advance(60 * time.Second)
	if _, ok := m.Session("gC"); ok {
		t.Fatal("unanswered challenge did not expire")
	}
	h.Spy.Reset()
	h.Send("gC", "bob", "join")
	if n := len(h.Spy.Sent()); n != 0 {
		t.Errorf("join after expiry produced %v", h.Spy.Sent())
	}
}

func TestEndgame(t *testing.T) {
	h, m := setup(t, &fakeClock{})

	h.Send("gC", "alice", ".endgame")
	if got := h.Spy.LastText(); got != "No game is running here." {
		t.Errorf("no game reply = %q", got)
	}

	h.Send("gC", "alice", ".ttt @bob")
	h.Send("gC", "carol", ".endgame")
	if !strings.HasPrefix(h.Spy.LastText(), "Only players") {
		t.Errorf("outsider reply = %q", h.Spy.LastText())
	}
	if _, ok := m.Session("gC"); !ok {
		t.Fatal("outsider stopped the game")
	}

	h.Send("gC", "sudo1", ".endgame")
	if _, ok := m.Session("gC"); ok {
		t.Fatal("sudo could not stop the game")
	}
	if !strings.Contains(h.Spy.LastText(), "stopped by @sudo1") {
		t.Errorf("stop reply = %q", h.Spy.LastText())
	}
	if ids := h.Dispatcher.Trackers().IDs(); len(ids) != 0 {
		t.Errorf("trackers left = %v", ids)
	}
}

func TestDuelUsage(t *testing.T) {
	h, m := setup(t, &fakeClock{})

	h.Send("gC", "alice", ".ttt")
	h.Send("gC", "alice", ".ttt @alice")
	for _, got := range h.Spy.Sent() {
		if got != "Usage: .ttt @opponent" {
			t.Errorf("reply = %q", got)
		}
	}
	if m.Active() != 0 {
		t.Error("game started without an opponent")
	}

	h.Send("dm1", "alice", ".ttt @bob")
	if m.Active() != 0 {
		t.Error("duel started in a private chat")
	}
}

func TestDuelUnknownHandle(t *testing.T) {
	h, m := setup(t, &fakeClock{})

	msg := h.Msg("gC", "alice", ".ttt @ghost")
	msg.Handles = map[string]string{"ghost": ""}
	h.Handle(msg)
	if got := h.Spy.LastText(); !strings.Contains(got, "I don't know @ghost yet") {
		t.Errorf("reply = %q", got)
	}
	if m.Active() != 0 {
		t.Error("game started against an unknown handle")
	}

	msg = h.Msg("gC", "alice", ".ttt @Bob")
	msg.Handles = map[string]string{"bob": "43"}
	msg.Mentions = []string{"43"}
	h.Handle(msg)
	if s, ok := m.Session("gC"); !ok || s.Players[1] != "43" {
		t.Errorf("session = %+v, %v", s, ok)
	}
}

func TestBannedPlayerInputIgnored(t *testing.T) {
	banned := map[string]bool{}
	h, m := setup(t, &fakeClock{}, func(o *games.Options) {
		o.IsBanned = func(chatID, userID string) bool { return banned[chatID+"/"+userID] }
	})

	h.Send("gC", "alice", ".ttt @bob")
	h.Send("gC", "bob", "join")
	banned["gC/alice"] = true

	h.Send("gC", "alice", "5")
	h.Send("gC", "alice", "resign")
	s, ok := m.Session("gC")
	if !ok || s.Turn != 0 {
		t.Fatalf("session = %+v, %v", s, ok)
	}

	delete(banned, "gC/alice")
	h.Send("gC", "alice", "5")
	if s, _ := m.Session("gC"); s.Turn != 1 {
		t.Errorf("turn = %d after unban, want 1", s.Turn)
	}
}
