// Package telegram connects the dispatch core to the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/jdelaire/openbot/core"
	"github.com/jdelaire/openbot/core/message"
)

// Name identifies the gateway in the registry and control socket.
const Name = "telegram"

// Bot is the subset of *tgbotapi.BotAPI the adapter uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	GetChatAdministrators(config tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error)
}

// Telegram accepts only a fixed reaction set.
var reactions = map[string]string{
	core.ReactWorking:  "\U0001F440", // eyes
	core.ReactSlow:     "\U0001F971", // yawning face
	core.ReactSuccess:  "\U0001F44C", // OK hand
	core.ReactFallback: "\U0001F44E", // thumbs down
	core.ReactError:    "\U0001F92F", // exploding head
	core.ReactDenied:   "\U0001F648", // see-no-evil monkey
}

type reactionType struct {
	Type  string `json:"type"`
	Emoji string `json:"emoji"`
}

// Gateway implements message.Gateway over a Bot.
type Gateway struct {
	bot Bot
}

// Open authenticates token against endpoint, a tgbotapi endpoint format
// string. Empty endpoint uses the public API.
func Open(token, endpoint string) (*tgbotapi.BotAPI, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	return bot, nil
}

// NewGateway wraps bot.
func NewGateway(bot Bot) *Gateway {
	return &Gateway{bot: bot}
}

func (g *Gateway) Name() string { return Name }

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram %s id %q: %w", kind, s, err)
	}
	return id, nil
}

func parseKey(key message.Key) (int64, int, error) {
	chatID, err := parseID("chat", key.ChatID)
	if err != nil {
		return 0, 0, err
	}
	msgID, err := strconv.Atoi(key.MessageID)
	if err != nil {
		return 0, 0, fmt.Errorf("telegram message id %q: %w", key.MessageID, err)
	}
	return chatID, msgID, nil
}

func (g *Gateway) Send(_ context.Context, chatID string, c message.Content) (message.Key, error) {
	id, err := parseID("chat", chatID)
	if err != nil {
		return message.Key{}, err
	}
	out := tgbotapi.NewMessage(id, c.Text)
	if c.ReplyTo != nil {
		if replyID, err := strconv.Atoi(c.ReplyTo.MessageID); err == nil {
			out.ReplyToMessageID = replyID
			out.AllowSendingWithoutReply = true
		}
	}
	sent, err := g.bot.Send(out)
	if err != nil {
		return message.Key{}, fmt.Errorf("telegram send: %w", err)
	}
	return message.Key{ChatID: chatID, MessageID: strconv.Itoa(sent.MessageID), FromSelf: true}, nil
}

func (g *Gateway) React(_ context.Context, key message.Key, emoji string) error {
	chatID, msgID, err := parseKey(key)
	if err != nil {
		return err
	}
	list := []reactionType{}
	if emoji != "" {
		if mapped, ok := reactions[emoji]; ok {
			emoji = mapped
		}
		list = append(list, reactionType{Type: "emoji", Emoji: emoji})
	}

	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero("message_id", msgID)
	if err := params.AddInterface("reaction", list); err != nil {
		return fmt.Errorf("encode reaction: %w", err)
	}
	if _, err := g.bot.MakeRequest("setMessageReaction", params); err != nil {
		return fmt.Errorf("telegram setMessageReaction: %w", err)
	}
	return nil
}

func (g *Gateway) Delete(_ context.Context, key message.Key) error {
	chatID, msgID, err := parseKey(key)
	if err != nil {
		return err
	}
	if _, err := g.bot.Request(tgbotapi.NewDeleteMessage(chatID, msgID)); err != nil {
		return fmt.Errorf("telegram delete: %w", err)
	}
	return nil
}

// Kick removes userID from chatID without a lasting ban, so the member
// may be re-invited.
func (g *Gateway) Kick(_ context.Context, chatID, userID string) error {
	cid, err := parseID("chat", chatID)
	if err != nil {
		return err
	}
	uid, err := parseID("user", userID)
	if err != nil {
		return err
	}
	member := tgbotapi.ChatMemberConfig{ChatID: cid, UserID: uid}
	if _, err := g.bot.Request(tgbotapi.BanChatMemberConfig{ChatMemberConfig: member}); err != nil {
		return fmt.Errorf("telegram ban: %w", err)
	}
	if _, err := g.bot.Request(tgbotapi.UnbanChatMemberConfig{ChatMemberConfig: member, OnlyIfBanned: true}); err != nil {
		return fmt.Errorf("telegram unban after kick: %w", err)
	}
	return nil
}

// GroupInfo lists the chat's administrators. Telegram does not expose the
// full member list to bots, so plain members are absent.
func (g *Gateway) GroupInfo(_ context.Context, chatID string) (message.GroupInfo, error) {
	id, err := parseID("chat", chatID)
	if err != nil {
		return message.GroupInfo{}, err
	}
	admins, err := g.bot.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: id},
	})
	if err != nil {
		return message.GroupInfo{}, fmt.Errorf("telegram administrators: %w", err)
	}
	info := message.GroupInfo{ID: chatID}
	for _, a := range admins {
		if a.User == nil {
			continue
		}
		info.Participants = append(info.Participants, message.Participant{
			ID:      strconv.FormatInt(a.User.ID, 10),
			IsAdmin: a.IsAdministrator() || a.IsCreator(),
		})
	}
	return info, nil
}
