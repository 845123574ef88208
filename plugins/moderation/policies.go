package moderation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jdelaire/openbot/core/message"
)

type linkMode string

const (
	linkOff    linkMode = "off"
	linkDelete linkMode = "on"
	linkWarn   linkMode = "warn"
	linkKick   linkMode = "kick"
)

func parseLinkMode(s string) (linkMode, bool) {
	switch m := linkMode(strings.ToLower(strings.TrimSpace(s))); m {
	case linkOff, linkDelete, linkWarn, linkKick:
		return m, true
	case "delete":
		return linkDelete, true
	}
	return "", false
}

var linkPattern = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+|\bt\.me/\S+|chat\.whatsapp\.com/\S+|\b[a-z0-9-]+\.(com|net|org|io|me|ly|gg|xyz|link|app)\b)`)

// ContainsLink reports whether text carries something that looks like a URL.
func ContainsLink(text string) bool {
	return linkPattern.MatchString(text)
}

func (p *Plugin) armBan(chatID, userID string) error {
	p.setBanned(chatID, userID, true)
	return p.reg.RegisterTracker(banID(chatID, userID),
		func(_ context.Context, msg message.InboundMessage) bool {
			return msg.ChatID == chatID && msg.SenderID == userID && !msg.FromSelf
		},
		func(ctx context.Context, gw message.Gateway, msg message.InboundMessage) error {
			if err := gw.Delete(ctx, msg.Key()); err != nil {
				return fmt.Errorf("delete banned message: %w", err)
			}
			return nil
		},
	)
}

// exempt reports whether sender is above moderation in chatID.
func (p *Plugin) exempt(ctx context.Context, gw message.Gateway, msg message.InboundMessage) (bool, error) {
	if msg.FromSelf || p.isSudo(msg.SenderID) {
		return true, nil
	}
	return message.IsGroupAdmin(ctx, gw, msg.ChatID, msg.SenderID)
}

func (p *Plugin) armAntilink(chatID string, mode linkMode) error {
	return p.reg.RegisterTracker(antilinkID(chatID),
		func(_ context.Context, msg message.InboundMessage) bool {
			return msg.ChatID == chatID && msg.HasText && ContainsLink(msg.Text)
		},
		func(ctx context.Context, gw message.Gateway, msg message.InboundMessage) error {
			skip, err := p.exempt(ctx, gw, msg)
			if err != nil {
				return fmt.Errorf("antilink admin check: %w", err)
			}
			if skip {
				return nil
			}
			if err := gw.Delete(ctx, msg.Key()); err != nil {
				return fmt.Errorf("antilink delete: %w", err)
			}

			switch mode {
			case linkKick:
				return p.kick(ctx, gw, msg, "Links are not allowed here.")
			case linkWarn:
				return p.warn(ctx, gw, msg, "Links are not allowed here.")
			}
			return nil
		},
	)
}

func (p *Plugin) armAntistatus(chatID string) error {
	return p.reg.RegisterTracker(antistatusID(chatID),
		func(_ context.Context, msg message.InboundMessage) bool {
			return msg.ChatID == chatID && msg.Status && !msg.FromSelf
		},
		func(ctx context.Context, gw message.Gateway, msg message.InboundMessage) error {
			skip, err := p.exempt(ctx, gw, msg)
			if err != nil {
				return fmt.Errorf("antistatus admin check: %w", err)
			}
			if skip {
				return nil
			}
			return gw.Delete(ctx, msg.Key())
		},
	)
}

// warn records one warning for the sender and removes them once the limit
// is reached. Warning replies are throttled per user.
func (p *Plugin) warn(ctx context.Context, gw message.Gateway, msg message.InboundMessage, reason string) error {
	count, err := p.store.AddWarn(ctx, msg.ChatID, msg.SenderID)
	if err != nil {
		return err
	}
	if count >= p.warnLimit {
		if err := p.store.ResetWarns(ctx, msg.ChatID, msg.SenderID); err != nil {
			return err
		}
		p.limiter.Reset(limiterKey(msg.ChatID, msg.SenderID))
		return p.kick(ctx, gw, msg, fmt.Sprintf("%s Warning limit (%d) reached.", reason, p.warnLimit))
	}

	if !p.limiter.Allow(limiterKey(msg.ChatID, msg.SenderID)) {
		p.logger.Debug("warning reply throttled", "chat_id", msg.ChatID, "user", msg.SenderID)
		return nil
	}
	_, err = gw.Send(ctx, msg.ChatID, message.Content{
		Text:    fmt.Sprintf("@%s %s Warning %d/%d.", msg.SenderID, reason, count, p.warnLimit),
		Mention: []string{msg.SenderID},
	})
	return err
}

func (p *Plugin) kick(ctx context.Context, gw message.Gateway, msg message.InboundMessage, reason string) error {
	if err := gw.Kick(ctx, msg.ChatID, msg.SenderID); err != nil {
		return fmt.Errorf("kick %s: %w", msg.SenderID, err)
	}
	p.logger.Info("member removed", "chat_id", msg.ChatID, "user", msg.SenderID, "reason", reason)
	_, err := gw.Send(ctx, msg.ChatID, message.Content{
		Text:    fmt.Sprintf("@%s removed. %s", msg.SenderID, reason),
		Mention: []string{msg.SenderID},
	})
	return err
}
