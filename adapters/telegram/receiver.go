package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/jdelaire/openbot/core/message"
)

const (
	longPollTimeout = 30
	errorBackoff    = 5 * time.Second
)

// Receiver long-polls Telegram for updates.
type Receiver struct {
	bot    Bot
	selfID int64
	sink   message.Sink
	logger *slog.Logger
	intake *intake
	users  *directory
	offset int
}

// NewReceiver creates a receiver. selfID is the bot's own user id. Messages
// older than five minutes are dropped; see WithMaxAge.
func NewReceiver(bot Bot, selfID int64, sink message.Sink, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{bot: bot, selfID: selfID, sink: sink, logger: logger, intake: newIntake(defaultMaxAge), users: newDirectory()}
}

// WithMaxAge sets how old a message may be and still be handled. Zero
// disables the check.
func (r *Receiver) WithMaxAge(d time.Duration) *Receiver {
	r.intake.maxAge = d
	return r
}

// Start runs the long-poll loop. Blocks until ctx is cancelled.
func (r *Receiver) Start(ctx context.Context) error {
	r.logger.Info("telegram receiver started")
	for {
		if err := ctx.Err(); err != nil {
			r.logger.Info("telegram receiver stopped")
			return nil
		}

		cfg := tgbotapi.NewUpdate(r.offset)
		cfg.Timeout = longPollTimeout
		updates, err := r.bot.GetUpdates(cfg)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("telegram receiver stopped")
				return nil
			}
			r.logger.Error("poll error", "error", err)
			select {
			case <-time.After(errorBackoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= r.offset {
				r.offset = u.UpdateID + 1
			}
			env, ok := r.envelope(u)
			if !ok {
				continue
			}
			sent := env.Timestamp
			if u.CallbackQuery != nil {
				sent = time.Time{}
			}
			if err := r.intake.admit(u.UpdateID, sent); err != nil {
				r.logger.Debug("update dropped", "update_id", u.UpdateID, "chat_id", env.ChatID, "error", err)
				continue
			}
			r.sink(ctx, env)
		}
	}
}

func (r *Receiver) envelope(u tgbotapi.Update) (message.Envelope, bool) {
	switch {
	case u.Message != nil:
		return r.fromMessage(u.Message), true
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil:
		q := u.CallbackQuery
		env := r.fromMessage(q.Message)
		env.Text, env.Caption = "", ""
		env.ReplyPayload = q.Data
		if q.From != nil {
			r.users.learn(q.From)
			env.SenderID = strconv.FormatInt(q.From.ID, 10)
			env.FromSelf = q.From.ID == r.selfID
		}
		return env, true
	}
	return message.Envelope{}, false
}

func (r *Receiver) fromMessage(m *tgbotapi.Message) message.Envelope {
	env := message.Envelope{
		ID:        strconv.Itoa(m.MessageID),
		Text:      m.Text,
		Caption:   m.Caption,
		Forwarded: m.ForwardDate != 0,
		Media:     media(m),
	}
	if m.Date != 0 {
		env.Timestamp = time.Unix(int64(m.Date), 0)
	}
	if m.Chat != nil {
		env.ChatID = strconv.FormatInt(m.Chat.ID, 10)
		env.IsGroup = m.Chat.IsGroup() || m.Chat.IsSuperGroup()
	}
	if m.From != nil {
		env.SenderID = strconv.FormatInt(m.From.ID, 10)
		env.FromSelf = m.From.ID == r.selfID
	}
	// Channel posts forwarded into a group are the broadcast equivalent of
	// a status share.
	env.Status = m.ForwardFromChat != nil && m.ForwardFromChat.IsChannel()

	if q := m.ReplyToMessage; q != nil {
		ref := &message.QuotedRef{ID: strconv.Itoa(q.MessageID), Text: q.Text}
		if q.From != nil {
			ref.SenderID = strconv.FormatInt(q.From.ID, 10)
		}
		if ref.Text == "" {
			ref.Text = q.Caption
		}
		env.Quoted = ref
	}

	r.users.learn(m.From)
	if m.ReplyToMessage != nil {
		r.users.learn(m.ReplyToMessage.From)
	}
	for i := range m.NewChatMembers {
		r.users.learn(&m.NewChatMembers[i])
	}
	r.mentions(&env, m.Text, m.Entities)
	r.mentions(&env, m.Caption, m.CaptionEntities)
	return env
}

// mentions fills env.Mentions and env.Handles from the entities of text.
// text_mention entities carry the user; plain @username mentions are
// resolved through the directory.
func (r *Receiver) mentions(env *message.Envelope, text string, entities []tgbotapi.MessageEntity) {
	for _, e := range entities {
		switch e.Type {
		case "text_mention":
			if e.User == nil {
				continue
			}
			r.users.learn(e.User)
			env.Mentions = append(env.Mentions, strconv.FormatInt(e.User.ID, 10))
		case "mention":
			name := strings.ToLower(strings.TrimPrefix(entityText(text, e), "@"))
			if name == "" {
				continue
			}
			if env.Handles == nil {
				env.Handles = make(map[string]string)
			}
			id, ok := r.users.lookup(name)
			if !ok {
				env.Handles[name] = ""
				continue
			}
			uid := strconv.FormatInt(id, 10)
			env.Handles[name] = uid
			env.Mentions = append(env.Mentions, uid)
		}
	}
}

func media(m *tgbotapi.Message) *message.Media {
	switch {
	case len(m.Photo) > 0:
		return &message.Media{Kind: message.MediaImage, MIME: "image/jpeg", FileID: m.Photo[len(m.Photo)-1].FileID, Caption: m.Caption}
	case m.Video != nil:
		return &message.Media{Kind: message.MediaVideo, MIME: m.Video.MimeType, FileID: m.Video.FileID, Caption: m.Caption}
	case m.Audio != nil:
		return &message.Media{Kind: message.MediaAudio, MIME: m.Audio.MimeType, FileID: m.Audio.FileID, Caption: m.Caption}
	case m.Voice != nil:
		return &message.Media{Kind: message.MediaAudio, MIME: m.Voice.MimeType, FileID: m.Voice.FileID, Caption: m.Caption}
	case m.Sticker != nil:
		return &message.Media{Kind: message.MediaSticker, MIME: "image/webp", FileID: m.Sticker.FileID}
	case m.Document != nil:
		return &message.Media{Kind: message.MediaDocument, MIME: m.Document.MimeType, FileID: m.Document.FileID, Caption: m.Caption}
	}
	return nil
}
