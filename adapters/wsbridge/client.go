package wsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jdelaire/openbot/core/message"
)

// Name identifies the gateway in the registry and control socket.
const Name = "wsbridge"

const (
	defaultCallTimeout = 15 * time.Second
	reconnectBackoff   = 5 * time.Second
	writeTimeout       = 10 * time.Second
)

// ErrNotConnected is returned by gateway calls while the bridge is down.
var ErrNotConnected = errors.New("bridge not connected")

// Client is a websocket connection to the bridge. It is both the inbound
// event source and the outbound gateway.
type Client struct {
	url     string
	token   string
	dialer  *websocket.Dialer
	timeout time.Duration
	logger  *slog.Logger
	nextID  atomic.Int64

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan Frame
}

// New creates a client for url. A non-empty token is sent as a bearer
// credential on every dial.
func New(url, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:     url,
		token:   token,
		dialer:  websocket.DefaultDialer,
		timeout: defaultCallTimeout,
		logger:  logger,
		pending: make(map[string]chan Frame),
	}
}

// WithCallTimeout overrides how long a request waits for its response.
func (c *Client) WithCallTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}

func (c *Client) Name() string { return Name }

// Connected reports whether a bridge connection is up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Start dials the bridge and feeds message events to sink, reconnecting
// after failures. Blocks until ctx is cancelled.
func (c *Client) Start(ctx context.Context, sink message.Sink) error {
	c.logger.Info("bridge client started", "url", c.url)
	for {
		err := c.session(ctx, sink)
		if ctx.Err() != nil {
			c.logger.Info("bridge client stopped")
			return nil
		}
		c.logger.Error("bridge connection lost", "error", err)
		select {
		case <-time.After(reconnectBackoff):
		case <-ctx.Done():
			c.logger.Info("bridge client stopped")
			return nil
		}
	}
}

func (c *Client) session(ctx context.Context, sink message.Sink) error {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.logger.Info("bridge connected", "url", c.url)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
		c.failPending()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn("bridge frame dropped", "error", err)
			continue
		}

		switch f.Type {
		case TypeResponse:
			c.resolve(f)
		case TypeEvent:
			if f.Event != EventMessage {
				c.logger.Debug("bridge event ignored", "event", f.Event)
				continue
			}
			var in Inbound
			if err := json.Unmarshal(f.Payload, &in); err != nil {
				c.logger.Warn("bridge message dropped", "error", err)
				continue
			}
			sink(ctx, in.Envelope())
		}
	}
}

func (c *Client) resolve(f Frame) {
	c.pendingMu.Lock()
	ch, ok := c.pending[f.ID]
	delete(c.pending, f.ID)
	c.pendingMu.Unlock()
	if ok {
		ch <- f
	}
}

func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// call sends a request and decodes the response payload into out, which
// may be nil.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	id := "ob-" + strconv.FormatInt(c.nextID.Add(1), 10)
	ch := make(chan Frame, 1)

	// Registering under c.mu orders the entry before the teardown that
	// clears c.conn, so failPending always sees it.
	c.mu.Lock()
	conn := c.conn
	if conn != nil {
		c.pendingMu.Lock()
		c.pending[id] = ch
		c.pendingMu.Unlock()
	}
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	forget := func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}

	data, err := json.Marshal(Frame{Type: TypeRequest, ID: id, Method: method, Params: params})
	if err != nil {
		forget()
		return fmt.Errorf("encode %s: %w", method, err)
	}
	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		forget()
		return fmt.Errorf("write %s: %w", method, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case f, ok := <-ch:
		if !ok {
			return fmt.Errorf("%s: %w", method, ErrNotConnected)
		}
		if f.Error != nil {
			return fmt.Errorf("%s: %w", method, f.Error)
		}
		if !f.OK {
			return fmt.Errorf("%s: bridge returned ok=false", method)
		}
		if out != nil && len(f.Payload) > 0 {
			if err := json.Unmarshal(f.Payload, out); err != nil {
				return fmt.Errorf("decode %s: %w", method, err)
			}
		}
		return nil
	case <-timer.C:
		forget()
		return fmt.Errorf("timeout waiting for %s response", method)
	case <-ctx.Done():
		forget()
		return ctx.Err()
	}
}

func (c *Client) Send(ctx context.Context, chatID string, content message.Content) (message.Key, error) {
	p := SendParams{ChatID: chatID, Text: content.Text, Mentions: content.Mention}
	if content.ReplyTo != nil {
		p.ReplyTo = content.ReplyTo.MessageID
	}
	var res SendResult
	if err := c.call(ctx, MethodSend, p, &res); err != nil {
		return message.Key{}, err
	}
	return message.Key{ChatID: chatID, MessageID: res.MessageID, FromSelf: true}, nil
}

func (c *Client) React(ctx context.Context, key message.Key, emoji string) error {
	return c.call(ctx, MethodReact, ReactParams{
		KeyParams: KeyParams{ChatID: key.ChatID, MessageID: key.MessageID},
		Emoji:     emoji,
	}, nil)
}

func (c *Client) Delete(ctx context.Context, key message.Key) error {
	return c.call(ctx, MethodDelete, KeyParams{ChatID: key.ChatID, MessageID: key.MessageID}, nil)
}

func (c *Client) Kick(ctx context.Context, chatID, userID string) error {
	return c.call(ctx, MethodKick, KickParams{ChatID: chatID, UserID: userID}, nil)
}

func (c *Client) GroupInfo(ctx context.Context, chatID string) (message.GroupInfo, error) {
	var res GroupResult
	if err := c.call(ctx, MethodGroupInfo, ChatParams{ChatID: chatID}, &res); err != nil {
		return message.GroupInfo{}, err
	}
	info := message.GroupInfo{ID: res.ID, Subject: res.Subject}
	for _, p := range res.Participants {
		info.Participants = append(info.Participants, message.Participant{ID: p.ID, IsAdmin: p.Admin})
	}
	return info, nil
}
