package message

import (
	"strings"
	"time"
)

// Envelope is the gateway adapter's flattened view of a raw event. Adapters
// fill what their transport carries and leave the rest zero.
type Envelope struct {
	ID           string
	ChatID       string
	SenderID     string
	FromSelf     bool
	IsGroup      bool
	Text         string
	Caption      string
	ReplyPayload string
	Quoted       *QuotedRef
	Mentions     []string
	// Handles maps lowercased @handles written in the text to user ids.
	// An empty id marks a handle the gateway could not resolve. Gateways
	// whose ids are written literally after @ leave it nil.
	Handles   map[string]string
	Media     *Media
	Forwarded bool
	Status    bool
	Timestamp time.Time
}

// Normalize converts an envelope into an InboundMessage. It returns false for
// protocol-only events that carry no user content.
//
// Text comes from the first non-empty of direct text, media caption and
// structured reply payload; when all are empty the quoted text is used so
// quote-reply commands see it as their argument source.
func Normalize(env Envelope) (InboundMessage, bool) {
	if env.ChatID == "" {
		return InboundMessage{}, false
	}

	caption := env.Caption
	if caption == "" && env.Media != nil {
		caption = env.Media.Caption
	}

	text, ok := firstNonEmpty(env.Text, caption, env.ReplyPayload)
	if !ok && env.Quoted != nil && strings.TrimSpace(env.Quoted.Text) != "" {
		text, ok = env.Quoted.Text, true
	}

	if !ok && env.Media == nil && env.Quoted == nil {
		return InboundMessage{}, false
	}

	ts := env.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var mentions []string
	if len(env.Mentions) > 0 {
		mentions = make([]string, len(env.Mentions))
		copy(mentions, env.Mentions)
	}

	var handles map[string]string
	if len(env.Handles) > 0 {
		handles = make(map[string]string, len(env.Handles))
		for h, id := range env.Handles {
			handles[strings.ToLower(h)] = id
		}
	}

	var quoted *QuotedRef
	if env.Quoted != nil {
		q := *env.Quoted
		quoted = &q
	}

	var media *Media
	if env.Media != nil {
		m := *env.Media
		media = &m
	}

	return InboundMessage{
		ID:        env.ID,
		ChatID:    env.ChatID,
		SenderID:  env.SenderID,
		FromSelf:  env.FromSelf,
		Text:      text,
		HasText:   ok,
		Quoted:    quoted,
		Mentions:  mentions,
		Handles:   handles,
		Media:     media,
		IsGroup:   env.IsGroup,
		Forwarded: env.Forwarded,
		Status:    env.Status,
		Timestamp: ts,
	}, true
}

func firstNonEmpty(values ...string) (string, bool) {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}
