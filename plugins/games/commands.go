package games

import (
	"context"
	"errors"
	"fmt"

	"github.com/jdelaire/openbot/core/command"
	"github.com/jdelaire/openbot/core/permission"
)

// Commands returns the game descriptors.
func (m *Manager) Commands() []command.Descriptor {
	return []command.Descriptor{
		{
			Pattern:     "ttt ?(.*)",
			Aliases:     []string{"tictactoe"},
			Flags:       permission.Flags{RequiresGroup: true},
			Description: "Challenge someone to tic-tac-toe",
			Category:    "games",
			Usage:       "ttt @opponent",
			Handler:     m.duel(func() Game { return NewTicTacToe() }),
		},
		{
			Pattern:     "chess ?(.*)",
			Flags:       permission.Flags{RequiresGroup: true},
			Description: "Challenge someone to chess",
			Category:    "games",
			Usage:       "chess @opponent",
			Handler:     m.duel(func() Game { return NewChess() }),
		},
		{
			Pattern:     "wordgame",
			Description: "Unscramble a word",
			Category:    "games",
			Handler: m.open(func() Game {
				return NewWordGame(m.words.pick(m.intn), m.intn)
			}),
		},
		{
			Pattern:     "mathquiz",
			Description: "Quick arithmetic question",
			Category:    "games",
			Handler:     m.open(func() Game { return NewMathQuiz(m.intn) }),
		},
		{
			Pattern:     "endgame",
			Description: "Stop the game running in this chat",
			Category:    "games",
			Handler:     m.handleEnd,
		},
	}
}

func busy(ctx context.Context, inv *command.Invocation) error {
	return inv.Reply(ctx, fmt.Sprintf("A game is already running here. Finish it or send %sendgame.", inv.Prefix))
}

func (m *Manager) duel(newGame func() Game) command.Handler {
	return func(ctx context.Context, inv *command.Invocation) (command.Result, error) {
		if unknown, err := inv.ReplyUnresolved(ctx); unknown {
			return command.Fallback, err
		}
		targets := inv.Targets()
		if len(targets) != 1 || targets[0] == inv.Msg.SenderID {
			return command.Fallback, inv.Reply(ctx, fmt.Sprintf("Usage: %s%s @opponent", inv.Prefix, inv.Command.Name()))
		}
		players := []string{inv.Msg.SenderID, targets[0]}
		text, err := m.Start(inv.Msg.ChatID, inv.Gateway, newGame(), players)
		if errors.Is(err, ErrGameActive) {
			return command.Fallback, busy(ctx, inv)
		}
		if err != nil {
			return command.Success, err
		}
		return command.Success, inv.Send(ctx, text, players...)
	}
}

func (m *Manager) open(newGame func() Game) command.Handler {
	return func(ctx context.Context, inv *command.Invocation) (command.Result, error) {
		text, err := m.Start(inv.Msg.ChatID, inv.Gateway, newGame(), []string{inv.Msg.SenderID})
		if errors.Is(err, ErrGameActive) {
			return command.Fallback, busy(ctx, inv)
		}
		if err != nil {
			return command.Success, err
		}
		return command.Success, inv.Send(ctx, text)
	}
}

func (m *Manager) handleEnd(ctx context.Context, inv *command.Invocation) (command.Result, error) {
	text, err := m.Stop(inv.Msg.ChatID, inv.Msg.SenderID)
	switch {
	case errors.Is(err, ErrNoGame):
		return command.Fallback, inv.Reply(ctx, "No game is running here.")
	case errors.Is(err, ErrNotPlayer):
		return command.Fallback, inv.Reply(ctx, "Only players or sudo users can stop this game.")
	case err != nil:
		return command.Success, err
	}
	return command.Success, inv.Send(ctx, text)
}
