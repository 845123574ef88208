package games

import (
	"fmt"
	"strconv"
	"strings"
)

var tttLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

var tttMarks = [2]string{"❌", "⭕"}

// TicTacToe is a two-seat game on cells 1 to 9. Seat 0 plays first.
type TicTacToe struct {
	cells   [9]int // 0 empty, otherwise seat+1
	players []string
	moves   int
}

// NewTicTacToe returns an empty board.
func NewTicTacToe() *TicTacToe { return &TicTacToe{} }

func (t *TicTacToe) Name() string { return "Tic-tac-toe" }
func (t *TicTacToe) Seats() int   { return 2 }

func (t *TicTacToe) Start(players []string) string {
	t.players = players
	return fmt.Sprintf("%s\n\n%s @%s vs %s @%s\n@%s moves first. Send a cell number 1-9.",
		t.Render(), tttMarks[0], players[0], tttMarks[1], players[1], players[0])
}

func (t *TicTacToe) cell(text string) (int, bool) {
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 || n > 9 {
		return 0, false
	}
	return n - 1, true
}

func (t *TicTacToe) Legal(text string) bool {
	i, ok := t.cell(text)
	return ok && t.cells[i] == 0
}

func (t *TicTacToe) Play(mv Move) Step {
	i, ok := t.cell(mv.Text)
	if !ok || t.cells[i] != 0 || mv.Seat < 0 {
		return Step{}
	}
	t.cells[i] = mv.Seat + 1
	t.moves++

	if t.winner() == mv.Seat+1 {
		return Step{
			Text:    fmt.Sprintf("%s\n\n🏆 @%s wins!", t.Render(), mv.Player),
			Outcome: OutcomeWin,
		}
	}
	if t.moves == len(t.cells) {
		return Step{Text: t.Render() + "\n\n🤝 Draw!", Outcome: OutcomeDraw}
	}
	next := t.players[(mv.Seat+1)%2]
	return Step{
		Text:    fmt.Sprintf("%s\n\nYour turn, @%s %s", t.Render(), next, tttMarks[(mv.Seat+1)%2]),
		Advance: true,
	}
}

func (t *TicTacToe) Expire() string {
	return "Tic-tac-toe abandoned."
}

// winner returns the seat+1 owning a full line, or 0.
func (t *TicTacToe) winner() int {
	for _, l := range tttLines {
		v := t.cells[l[0]]
		if v != 0 && v == t.cells[l[1]] && v == t.cells[l[2]] {
			return v
		}
	}
	return 0
}

// Render draws the board, numbering free cells.
func (t *TicTacToe) Render() string {
	var b strings.Builder
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			i := row*3 + col
			if v := t.cells[i]; v != 0 {
				b.WriteString(tttMarks[v-1])
			} else {
				b.WriteString(strconv.Itoa(i+1) + "️⃣")
			}
		}
		if row < 2 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
