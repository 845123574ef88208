package games

import (
	"fmt"

	"github.com/notnil/chess"
)

// Chess is a two-seat game in standard algebraic notation. Seat 0 plays
// white.
type Chess struct {
	game    *chess.Game
	players []string
}

// NewChess returns a game in the starting position.
func NewChess() *Chess { return &Chess{game: chess.NewGame()} }

func (c *Chess) Name() string { return "Chess" }
func (c *Chess) Seats() int   { return 2 }

func (c *Chess) Start(players []string) string {
	c.players = players
	return fmt.Sprintf("```\n%s```\n⬜ @%s vs ⬛ @%s\n@%s moves first. Send moves like e4 or Nf3.",
		c.board(), players[0], players[1], players[0])
}

func (c *Chess) Legal(text string) bool {
	_, err := chess.AlgebraicNotation{}.Decode(c.game.Position(), text)
	return err == nil
}

func (c *Chess) Play(mv Move) Step {
	if err := c.game.MoveStr(mv.Text); err != nil {
		return Step{}
	}

	switch c.game.Outcome() {
	case chess.WhiteWon, chess.BlackWon:
		return Step{
			Text:    fmt.Sprintf("```\n%s```\n♚ Checkmate! @%s wins.", c.board(), mv.Player),
			Outcome: OutcomeWin,
		}
	case chess.Draw:
		return Step{
			Text:    fmt.Sprintf("```\n%s```\n🤝 Draw by %s.", c.board(), drawMethod(c.game.Method())),
			Outcome: OutcomeDraw,
		}
	}

	next := c.players[(mv.Seat+1)%2]
	check := ""
	if moves := c.game.Moves(); len(moves) > 0 && moves[len(moves)-1].HasTag(chess.Check) {
		check = " Check!"
	}
	return Step{
		Text:    fmt.Sprintf("```\n%s```\n%s played %s.%s Your move, @%s.", c.board(), mv.Player, mv.Text, check, next),
		Advance: true,
	}
}

func (c *Chess) Expire() string {
	return "Chess game abandoned."
}

// FEN returns the current position.
func (c *Chess) FEN() string { return c.game.Position().String() }

func (c *Chess) board() string {
	return c.game.Position().Board().Draw()
}

func drawMethod(m chess.Method) string {
	switch m {
	case chess.Stalemate:
		return "stalemate"
	case chess.InsufficientMaterial:
		return "insufficient material"
	case chess.FivefoldRepetition, chess.ThreefoldRepetition:
		return "repetition"
	case chess.SeventyFiveMoveRule, chess.FiftyMoveRule:
		return "move rule"
	}
	return "agreement"
}
