package telegram

import (
	"strings"
	"sync"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxKnownUsers = 50000

// directory remembers the id behind every @username the receiver has seen.
// The Bot API cannot look a user up by username, so an @mention of someone
// who never showed up stays unresolved.
type directory struct {
	mu  sync.RWMutex
	ids map[string]int64
}

func newDirectory() *directory {
	return &directory{ids: make(map[string]int64)}
}

func (d *directory) learn(users ...*tgbotapi.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range users {
		if u == nil || u.UserName == "" {
			continue
		}
		name := strings.ToLower(u.UserName)
		if _, ok := d.ids[name]; !ok && len(d.ids) >= maxKnownUsers {
			for k := range d.ids {
				delete(d.ids, k)
				break
			}
		}
		d.ids[name] = u.ID
	}
}

func (d *directory) lookup(username string) (int64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.ids[strings.ToLower(strings.TrimPrefix(username, "@"))]
	return id, ok
}

// entityText cuts an entity out of text. Entity offsets count UTF-16 code
// units.
func entityText(text string, e tgbotapi.MessageEntity) string {
	units := utf16.Encode([]rune(text))
	if e.Offset < 0 || e.Length <= 0 || e.Offset+e.Length > len(units) {
		return ""
	}
	return string(utf16.Decode(units[e.Offset : e.Offset+e.Length]))
}
