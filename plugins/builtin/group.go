package builtin

import (
	"context"
	"fmt"

	"github.com/jdelaire/openbot/core/command"
	"github.com/jdelaire/openbot/core/message"
	"github.com/jdelaire/openbot/core/permission"
)

// canModerate reports whether the caller may act on other members: sudo,
// owner or a group admin.
func canModerate(ctx context.Context, inv *command.Invocation) (bool, error) {
	if inv.Perm.IsSudo || inv.Perm.IsOwner {
		return true, nil
	}
	return message.IsGroupAdmin(ctx, inv.Gateway, inv.Msg.ChatID, inv.Msg.SenderID)
}

func (p *Plugin) kickCommand() command.Descriptor {
	return command.Descriptor{
		Pattern:     "kick ?(.*)",
		Aliases:     []string{"remove"},
		Flags:       permission.Flags{RequiresGroup: true},
		Description: "Remove members from the group",
		Category:    "group",
		Usage:       "kick @user...",
		Handler: func(ctx context.Context, inv *command.Invocation) (command.Result, error) {
			ok, err := canModerate(ctx, inv)
			if err != nil {
				return command.Success, fmt.Errorf("check admin: %w", err)
			}
			if !ok {
				return command.Fallback, inv.Reply(ctx, NotAllowed)
			}

			if unknown, err := inv.ReplyUnresolved(ctx); unknown {
				return command.Fallback, err
			}
			targets := inv.Targets()
			if len(targets) == 0 {
				return command.Fallback, inv.Reply(ctx, "Mention or quote the members to remove.")
			}

			kicked := 0
			for _, id := range targets {
				if id == inv.Msg.SenderID {
					continue
				}
				if err := inv.Gateway.Kick(ctx, inv.Msg.ChatID, id); err != nil {
					inv.Logger.Warn("kick failed", "chat_id", inv.Msg.ChatID, "user", id, "error", err)
					continue
				}
				kicked++
			}
			if kicked == 0 {
				return command.Fallback, nil
			}
			return command.Success, nil
		},
	}
}
