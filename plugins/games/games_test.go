package games_test

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jdelaire/openbot/plugins/games"
)

func TestTicTacToeMatch(t *testing.T) {
	h, m := setup(t, &fakeClock{})

	h.Send("gC", "alice", ".ttt @bob")
	h.Send("gC", "carol", "join")
	if s, _ := m.Session("gC"); s.State != games.AwaitingPlayers {
		t.Fatal("outsider joined")
	}
	h.Send("gC", "bob", "join")
	want := []string{"game:gC:move", "game:gC:resign"}
	if got := h.Dispatcher.Trackers().IDs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("trackers = %v, want %v", got, want)
	}

	h.Spy.Reset()
	h.Send("gC", "bob", "5") // not bob's turn
	h.Send("gC", "alice", "0")
	h.Send("gC", "alice", "one")
	if n := len(h.Spy.Sent()); n != 0 {
		t.Fatalf("illegal moves answered: %v", h.Spy.Sent())
	}

	h.Send("gC", "alice", "1")
	h.Send("gC", "bob", "1") // taken
	if s, _ := m.Session("gC"); s.Turn != 1 {
		t.Fatalf("turn = %d after occupied cell, want 1", s.Turn)
	}
	for _, mv := range []struct{ who, cell string }{
		{"bob", "4"}, {"alice", "2"}, {"bob", "5"}, {"alice", "3"},
	} {
		h.Send("gC", mv.who, mv.cell)
	}

	if !strings.Contains(h.Spy.LastText(), "@alice wins!") {
		t.Errorf("final = %q", h.Spy.LastText())
	}
	if _, ok := m.Session("gC"); ok {
		t.Error("session still active after a win")
	}
	if ids := h.Dispatcher.Trackers().IDs(); len(ids) != 0 {
		t.Errorf("trackers left = %v", ids)
	}
}

func TestTicTacToeDraw(t *testing.T) {
	g := games.NewTicTacToe()
	g.Start([]string{"a", "b"})
	// a: 1 3 4 8 9 / b: 2 5 6 7
	cells := []string{"1", "2", "3", "5", "4", "6", "8", "7", "9"}
	var last games.Step
	for i, c := range cells {
		if !g.Legal(c) {
			t.Fatalf("move %d (%s) illegal", i, c)
		}
		last = g.Play(games.Move{Seat: i % 2, Player: []string{"a", "b"}[i%2], Text: c})
		if i < len(cells)-1 && (last.Outcome != "" || !last.Advance) {
			t.Fatalf("move %d ended the game early: %+v", i, last)
		}
	}
	if last.Outcome != games.OutcomeDraw {
		t.Errorf("outcome = %q, want draw", last.Outcome)
	}
	if g.Legal("5") {
		t.Error("occupied cell reported legal")
	}
}

func TestResign(t *testing.T) {
	h, m := setup(t, &fakeClock{})

	h.Send("gC", "alice", ".ttt @bob")
	h.Send("gC", "bob", "join")
	h.Send("gC", "carol", "resign")
	if _, ok := m.Session("gC"); !ok {
		t.Fatal("outsider resigned the game")
	}
	h.Send("gC", "bob", "Resign")
	if _, ok := m.Session("gC"); ok {
		t.Fatal("game still running after resign")
	}
	if got := h.Spy.LastText(); got != "🏳️ @bob resigned. @alice wins!" {
		t.Errorf("resign text = %q", got)
	}
}

func TestChessFoolsMate(t *testing.T) {
	h, m := setup(t, &fakeClock{})

	h.Send("gC", "alice", ".chess @bob")
	h.Send("gC", "bob", "join")

	h.Spy.Reset()
	h.Send("gC", "alice", "e5") // illegal from the start
	h.Send("gC", "alice", "Nf6")
	if n := len(h.Spy.Sent()); n != 0 {
		t.Fatalf("illegal moves answered: %v", h.Spy.Sent())
	}

	for _, mv := range []struct{ who, san string }{
		{"alice", "f3"}, {"bob", "e5"}, {"alice", "g4"}, {"bob", "Qh4"},
	} {
		h.Send("gC", mv.who, mv.san)
	}
	if !strings.Contains(h.Spy.LastText(), "Checkmate! @bob wins.") {
		t.Errorf("final = %q", h.Spy.LastText())
	}
	if _, ok := m.Session("gC"); ok {
		t.Error("session still active after mate")
	}
}

func TestChessPosition(t *testing.T) {
	g := games.NewChess()
	g.Start([]string{"w", "b"})
	step := g.Play(games.Move{Seat: 0, Player: "w", Text: "e4"})
	if !step.Advance || step.Outcome != "" {
		t.Fatalf("step = %+v", step)
	}
	if !strings.HasPrefix(g.FEN(), "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b") {
		t.Errorf("fen = %q", g.FEN())
	}
	if g.Legal("e4") {
		t.Error("white move legal on black's turn")
	}
}

func TestWordGame(t *testing.T) {
	bank := &games.WordBank{Words: []games.Word{{Word: "Café", Hint: "espresso"}}}
	clock := &fakeClock{}
	h, m := setup(t, clock, func(o *games.Options) { o.Words = bank })

	h.Send("g1", "alice", ".wordgame")
	intro := h.Spy.LastText()
	if !strings.Contains(intro, "Unscramble") || !strings.Contains(intro, "Hint: espresso") {
		t.Fatalf("intro = %q", intro)
	}

	h.Spy.Reset()
	h.Send("g1", "bob", "cake")
	h.Send("g1", "bob", "coffee")
	if n := len(h.Spy.Sent()); n != 0 {
		t.Fatalf("wrong guesses answered: %v", h.Spy.Sent())
	}

	h.Send("g1", "carol", "CAFE")
	if got := h.Spy.LastText(); got != "🎉 @carol got it: *Café*" {
		t.Errorf("win = %q", got)
	}
	if _, ok := m.Session("g1"); ok {
		t.Error("word game still running")
	}
}

func TestWordGameWrongGuessKeepsTimer(t *testing.T) {
	bank := &games.WordBank{Words: []games.Word{{Word: "glacier"}}}
	clock := &fakeClock{}
	h, m := setup(t, clock, func(o *games.Options) { o.Words = bank })

	h.Send("g1", "alice", ".wordgame")
	clock.Advance(59 * time.Second)
	h.Send("g1", "bob", "glaciar")
	clock.Advance(time.Second)
	if _, ok := m.Session("g1"); ok {
		t.Fatal("wrong guess extended the timer")
	}
	if !strings.Contains(h.Spy.LastText(), "The word was *glacier*.") {
		t.Errorf("timeout = %q", h.Spy.LastText())
	}
}

var questionRE = regexp.MustCompile(`What is (\d+) (\S+) (\d+)\?`)

func TestMathQuiz(t *testing.T) {
	h, m := setup(t, &fakeClock{})

	h.Send("dm1", "alice", ".mathquiz")
	q := questionRE.FindStringSubmatch(h.Spy.LastText())
	if q == nil {
		t.Fatalf("question = %q", h.Spy.LastText())
	}
	a, _ := strconv.Atoi(q[1])
	b, _ := strconv.Atoi(q[3])
	var answer int
	switch q[2] {
	case "+":
		answer = a + b
	case "-":
		answer = a - b
	case "×":
		answer = a * b
	default:
		t.Fatalf("operator %q", q[2])
	}

	h.Spy.Reset()
	h.Send("dm1", "alice", strconv.Itoa(answer+1))
	h.Send("dm1", "alice", "dunno")
	if n := len(h.Spy.Sent()); n != 0 {
		t.Fatalf("wrong answers answered: %v", h.Spy.Sent())
	}
	h.Send("dm1", "alice", strconv.Itoa(answer))
	if !strings.Contains(h.Spy.LastText(), "@alice is right") {
		t.Errorf("win = %q", h.Spy.LastText())
	}
	if _, ok := m.Session("dm1"); ok {
		t.Error("quiz still running")
	}
}

func TestFoldAnswer(t *testing.T) {
	tests := map[string]string{
		"Café":    "cafe",
		" PIÑATA": "pinata",
		"straße":  "strasse",
		"Ελλάδα":  "ελλαδα",
	}
	for in, want := range tests {
		if got := games.FoldAnswer(in); got != want {
			t.Errorf("FoldAnswer(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseWordBank(t *testing.T) {
	bank, err := games.ParseWordBank([]byte("words:\n  - word: river\n    hint: flows\n  - word: two words\n  - word: ''\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(bank.Words) != 1 || bank.Words[0].Word != "river" {
		t.Errorf("words = %+v", bank.Words)
	}

	if _, err := games.ParseWordBank([]byte("words: []\n")); err == nil {
		t.Error("empty bank accepted")
	}
	if _, err := games.ParseWordBank([]byte("words: [")); err == nil {
		t.Error("broken yaml accepted")
	}
	if _, err := games.LoadWordBank("/nonexistent/words.yaml"); err == nil {
		t.Error("missing file accepted")
	}
	if len(games.DefaultWordBank().Words) == 0 {
		t.Error("built-in bank is empty")
	}
}
