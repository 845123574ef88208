package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jdelaire/openbot/core/command"
	"github.com/jdelaire/openbot/core/permission"
	"github.com/jdelaire/openbot/internal/store"
)

var groupSudo = permission.Flags{RequiresGroup: true, RequiresSudo: true}

// Commands returns the moderation descriptors.
func (p *Plugin) Commands() []command.Descriptor {
	return []command.Descriptor{
		{
			Pattern:     "ban ?(.*)",
			Flags:       groupSudo,
			Description: "Delete every message a member sends here",
			Category:    "moderation",
			Usage:       "ban @user...",
			Handler:     p.handleBan,
		},
		{
			Pattern:     "unban ?(.*)",
			Flags:       groupSudo,
			Description: "Lift a ban",
			Category:    "moderation",
			Usage:       "unban @user...",
			Handler:     p.handleUnban,
		},
		{
			Pattern:     "antilink ?(.*)",
			Flags:       groupSudo,
			Description: "Filter links from non-admins",
			Category:    "moderation",
			Usage:       "antilink on|warn|kick|off",
			Handler:     p.handleAntilink,
		},
		{
			Pattern:     "antistatus ?(.*)",
			Flags:       groupSudo,
			Description: "Filter forwarded status posts",
			Category:    "moderation",
			Usage:       "antistatus on|off",
			Handler:     p.handleAntistatus,
		},
		{
			Pattern:     "warns ?(.*)",
			Flags:       permission.Flags{RequiresGroup: true},
			Description: "Show warning counts",
			Category:    "moderation",
			Usage:       "warns [@user]",
			Handler:     p.handleWarns,
		},
		{
			Pattern:     "resetwarn ?(.*)",
			Aliases:     []string{"delwarn"},
			Flags:       groupSudo,
			Description: "Clear warnings",
			Category:    "moderation",
			Usage:       "resetwarn @user...",
			Handler:     p.handleResetWarn,
		},
	}
}

func (p *Plugin) handleBan(ctx context.Context, inv *command.Invocation) (command.Result, error) {
	if unknown, err := inv.ReplyUnresolved(ctx); unknown {
		return command.Fallback, err
	}
	targets := inv.Targets()
	if len(targets) == 0 {
		return command.Fallback, inv.Reply(ctx, "Mention or quote the members to ban.")
	}

	chatID := inv.Msg.ChatID
	var banned []string
	for _, userID := range targets {
		if userID == inv.Msg.SenderID || p.isSudo(userID) {
			continue
		}
		err := p.store.AddBan(ctx, store.Ban{ChatID: chatID, UserID: userID, BannedBy: inv.Msg.SenderID})
		if errors.Is(err, store.ErrAlreadyBanned) {
			continue
		}
		if err != nil {
			return command.Success, err
		}
		if err := p.armBan(chatID, userID); err != nil {
			return command.Success, err
		}
		banned = append(banned, userID)
	}
	if len(banned) == 0 {
		return command.Fallback, inv.Reply(ctx, "Nobody new to ban.")
	}
	inv.Logger.Info("members banned", "chat_id", chatID, "users", banned)
	return command.Success, inv.Send(ctx, fmt.Sprintf("Banned %s.", mentionList(banned)), banned...)
}

func (p *Plugin) handleUnban(ctx context.Context, inv *command.Invocation) (command.Result, error) {
	if unknown, err := inv.ReplyUnresolved(ctx); unknown {
		return command.Fallback, err
	}
	targets := inv.Targets()
	if len(targets) == 0 {
		return command.Fallback, inv.Reply(ctx, "Mention or quote the members to unban.")
	}

	var lifted []string
	for _, userID := range targets {
		ok, err := p.store.RemoveBan(ctx, inv.Msg.ChatID, userID)
		if err != nil {
			return command.Success, err
		}
		p.reg.UnregisterTracker(banID(inv.Msg.ChatID, userID))
		p.setBanned(inv.Msg.ChatID, userID, false)
		if ok {
			lifted = append(lifted, userID)
		}
	}
	if len(lifted) == 0 {
		return command.Fallback, inv.Reply(ctx, "None of them were banned.")
	}
	return command.Success, inv.Send(ctx, fmt.Sprintf("Unbanned %s.", mentionList(lifted)), lifted...)
}

func (p *Plugin) handleAntilink(ctx context.Context, inv *command.Invocation) (command.Result, error) {
	chatID := inv.Msg.ChatID
	if inv.Arg == "" {
		links, err := p.store.Toggles(ctx, featureAntilink)
		if err != nil {
			return command.Success, err
		}
		mode, ok := links[chatID]
		if !ok {
			mode = string(linkOff)
		}
		return command.Success, inv.Reply(ctx, fmt.Sprintf("Antilink: %s", mode))
	}

	mode, ok := parseLinkMode(inv.Arg)
	if !ok {
		return command.Fallback, inv.Reply(ctx, fmt.Sprintf("Usage: %santilink on|warn|kick|off", inv.Prefix))
	}
	if mode == linkOff {
		if err := p.store.DeleteToggle(ctx, chatID, featureAntilink); err != nil {
			return command.Success, err
		}
		p.reg.UnregisterTracker(antilinkID(chatID))
		return command.Success, inv.Reply(ctx, "Antilink disabled.")
	}

	if err := p.store.SetToggle(ctx, chatID, featureAntilink, string(mode)); err != nil {
		return command.Success, err
	}
	if err := p.armAntilink(chatID, mode); err != nil {
		return command.Success, err
	}
	return command.Success, inv.Reply(ctx, fmt.Sprintf("Antilink set to %s.", mode))
}

func (p *Plugin) handleAntistatus(ctx context.Context, inv *command.Invocation) (command.Result, error) {
	chatID := inv.Msg.ChatID
	switch strings.ToLower(inv.Arg) {
	case "on":
		if err := p.store.SetToggle(ctx, chatID, featureAntistatus, "on"); err != nil {
			return command.Success, err
		}
		if err := p.armAntistatus(chatID); err != nil {
			return command.Success, err
		}
		return command.Success, inv.Reply(ctx, "Antistatus enabled.")
	case "off":
		if err := p.store.DeleteToggle(ctx, chatID, featureAntistatus); err != nil {
			return command.Success, err
		}
		p.reg.UnregisterTracker(antistatusID(chatID))
		return command.Success, inv.Reply(ctx, "Antistatus disabled.")
	}
	return command.Fallback, inv.Reply(ctx, fmt.Sprintf("Usage: %santistatus on|off", inv.Prefix))
}

func (p *Plugin) handleWarns(ctx context.Context, inv *command.Invocation) (command.Result, error) {
	if unknown, err := inv.ReplyUnresolved(ctx); unknown {
		return command.Fallback, err
	}
	targets := inv.Targets()
	if len(targets) == 0 {
		targets = []string{inv.Msg.SenderID}
	}
	var b strings.Builder
	for _, userID := range targets {
		n, err := p.store.Warns(ctx, inv.Msg.ChatID, userID)
		if err != nil {
			return command.Success, err
		}
		fmt.Fprintf(&b, "@%s: %d/%d\n", userID, n, p.warnLimit)
	}
	return command.Success, inv.Send(ctx, strings.TrimRight(b.String(), "\n"), targets...)
}

func (p *Plugin) handleResetWarn(ctx context.Context, inv *command.Invocation) (command.Result, error) {
	if unknown, err := inv.ReplyUnresolved(ctx); unknown {
		return command.Fallback, err
	}
	targets := inv.Targets()
	if len(targets) == 0 {
		return command.Fallback, inv.Reply(ctx, "Mention or quote the members to clear.")
	}
	for _, userID := range targets {
		if err := p.store.ResetWarns(ctx, inv.Msg.ChatID, userID); err != nil {
			return command.Success, err
		}
		p.limiter.Reset(limiterKey(inv.Msg.ChatID, userID))
	}
	return command.Success, inv.Reply(ctx, fmt.Sprintf("Warnings cleared for %s.", mentionList(targets)))
}

func mentionList(ids []string) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = "@" + id
	}
	return strings.Join(out, ", ")
}
