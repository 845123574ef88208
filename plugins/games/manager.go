// Package games runs turn-based chat games on top of the tracker registry.
// A chat holds at most one session; the session's trackers live exactly as
// long as the session does.
package games

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jdelaire/openbot/core"
	"github.com/jdelaire/openbot/core/message"
	"github.com/jdelaire/openbot/core/tracker"
)

const (
	defaultIdleTimeout = 60 * time.Second
	notifyTimeout      = 10 * time.Second
)

var (
	// ErrGameActive is returned when a chat already has a session.
	ErrGameActive = errors.New("a game is already running in this chat")
	// ErrNoGame is returned when a chat has no session to stop.
	ErrNoGame = errors.New("no game is running in this chat")
	// ErrNotPlayer is returned when a non-player tries to stop a game.
	ErrNotPlayer = errors.New("only players can stop this game")
)

// State is the lifecycle position of a session.
type State int

const (
	AwaitingPlayers State = iota
	InProgress
	Ended
)

func (s State) String() string {
	switch s {
	case AwaitingPlayers:
		return "awaiting_players"
	case InProgress:
		return "in_progress"
	default:
		return "ended"
	}
}

// Outcome is why a session ended.
type Outcome string

const (
	OutcomeWin     Outcome = "win"
	OutcomeDraw    Outcome = "draw"
	OutcomeResign  Outcome = "resign"
	OutcomeTimeout Outcome = "timeout"
	OutcomeStopped Outcome = "stopped"
)

// Move is one accepted message. Seat is -1 in open games.
type Move struct {
	Seat   int
	Player string
	Text   string
}

// Step is what a game makes of a move.
type Step struct {
	Text string
	// Advance means a turn was consumed: the seat rotates and the idle
	// timer restarts.
	Advance bool
	// Outcome is set once the game is over.
	Outcome Outcome
}

// Game is the board of one session. The manager serializes every call.
type Game interface {
	Name() string
	// Seats is the number of named players taking turns. Zero means anyone
	// in the chat may answer.
	Seats() int
	Start(players []string) string
	// Legal reports whether text is a move token in the current position.
	Legal(text string) bool
	Play(mv Move) Step
	// Expire is appended to the time's up notice.
	Expire() string
}

// Timer is a pending idle timeout.
type Timer interface {
	Stop() bool
}

// Options configures a Manager.
type Options struct {
	Registrar   core.Registrar
	IdleTimeout time.Duration
	IsSudo      func(id string) bool
	// IsBanned reports senders whose messages moderation deletes. Game
	// input from them is ignored.
	IsBanned func(chatID, userID string) bool
	Words    *WordBank
	// AfterFunc schedules idle timeouts. Nil uses time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) Timer
	// Rand drives board generation. Nil uses the global source.
	Rand   *rand.Rand
	Logger *slog.Logger
}

type session struct {
	chatID   string
	state    State
	players  []string
	turn     int
	game     Game
	gw       message.Gateway
	gen      uint64
	timer    Timer
	trackers []string
}

func (s *session) seated(userID string) bool {
	return slices.Contains(s.players, userID)
}

// Manager owns every session, keyed by chat id. Tracker closures capture
// only the chat id and look the session up on each call.
type Manager struct {
	reg       core.Registrar
	idle      time.Duration
	isSudo    func(string) bool
	isBanned  func(chatID, userID string) bool
	words     *WordBank
	afterFunc func(time.Duration, func()) Timer
	intn      func(int) int
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	gen      uint64
}

// NewManager creates a manager with no sessions.
func NewManager(opts Options) *Manager {
	m := &Manager{
		reg:       opts.Registrar,
		idle:      opts.IdleTimeout,
		isSudo:    opts.IsSudo,
		isBanned:  opts.IsBanned,
		words:     opts.Words,
		afterFunc: opts.AfterFunc,
		logger:    opts.Logger,
		sessions:  make(map[string]*session),
		intn:      rand.IntN,
	}
	if m.idle <= 0 {
		m.idle = defaultIdleTimeout
	}
	if m.isSudo == nil {
		m.isSudo = func(string) bool { return false }
	}
	if m.isBanned == nil {
		m.isBanned = func(string, string) bool { return false }
	}
	if m.words == nil {
		m.words = DefaultWordBank()
	}
	if m.afterFunc == nil {
		m.afterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	if opts.Rand != nil {
		m.intn = opts.Rand.IntN
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ChatID  string
	Game    string
	State   State
	Players []string
	Turn    int
}

// Session returns the session running in chatID.
func (m *Manager) Session(chatID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[chatID]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{
		ChatID:  s.chatID,
		Game:    s.game.Name(),
		State:   s.state,
		Players: slices.Clone(s.players),
		Turn:    s.turn,
	}, true
}

// Active returns the number of running sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func trackerID(chatID, kind string) string { return "game:" + chatID + ":" + kind }

// Start opens a session in chatID and returns the announcement. Seated
// games with more than one seat wait for the other players to join; all
// others begin immediately.
func (m *Manager) Start(chatID string, gw message.Gateway, game Game, players []string) (string, error) {
	seats := game.Seats()
	if seats > 0 && len(players) != seats {
		return "", fmt.Errorf("%s needs %d players, got %d", game.Name(), seats, len(players))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[chatID]; ok {
		return "", ErrGameActive
	}
	s := &session{chatID: chatID, players: slices.Clone(players), game: game, gw: gw}
	m.sessions[chatID] = s

	var text string
	var err error
	if seats > 1 {
		s.state = AwaitingPlayers
		err = m.track(s, "join", m.joinPredicate(chatID), m.join)
		text = fmt.Sprintf("🎮 @%s challenges %s to %s. Send join to accept.",
			players[0], mentionAll(players[1:]), game.Name())
	} else {
		s.state = InProgress
		err = m.trackPlay(s)
		text = game.Start(s.players)
	}
	if err != nil {
		m.finishLocked(s)
		return "", fmt.Errorf("start %s: %w", game.Name(), err)
	}

	m.armLocked(s)
	m.logger.Info("game started", "chat_id", chatID, "game", game.Name(), "players", players, "state", s.state)
	return text, nil
}

// Stop force-ends the session in chatID on behalf of by. Sudo users may
// stop any game; others only one they play in.
func (m *Manager) Stop(chatID, by string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[chatID]
	if !ok {
		return "", ErrNoGame
	}
	if !m.isSudo(by) && !s.seated(by) {
		return "", ErrNotPlayer
	}
	name := s.game.Name()
	m.finishLocked(s)
	m.logger.Info("game stopped", "chat_id", chatID, "game", name, "by", by, "outcome", OutcomeStopped)
	return fmt.Sprintf("🛑 %s stopped by @%s.", name, by), nil
}

func (m *Manager) track(s *session, kind string, pred tracker.Predicate, act tracker.Action) error {
	id := trackerID(s.chatID, kind)
	if err := m.reg.RegisterTracker(id, pred, act); err != nil {
		return err
	}
	s.trackers = append(s.trackers, id)
	return nil
}

func (m *Manager) untrack(s *session, kind string) {
	id := trackerID(s.chatID, kind)
	m.reg.UnregisterTracker(id)
	s.trackers = slices.DeleteFunc(s.trackers, func(t string) bool { return t == id })
}

func (m *Manager) trackPlay(s *session) error {
	if err := m.track(s, "move", m.movePredicate(s.chatID), m.move); err != nil {
		return err
	}
	if s.game.Seats() > 0 {
		return m.track(s, "resign", m.resignPredicate(s.chatID), m.resign)
	}
	return nil
}

// armLocked restarts the idle timer. Generations are unique across
// sessions, so a timer already in flight is a no-op even when the chat has
// since started a new game.
func (m *Manager) armLocked(s *session) {
	if s.timer != nil {
		s.timer.Stop()
	}
	m.gen++
	s.gen = m.gen
	gen, chatID := s.gen, s.chatID
	s.timer = m.afterFunc(m.idle, func() { m.expire(chatID, gen) })
}

// finishLocked ends s: the timer is cancelled, every tracker it owns is
// removed, and only then is the chat released.
func (m *Manager) finishLocked(s *session) {
	s.state = Ended
	s.gen = 0
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	for _, id := range s.trackers {
		m.reg.UnregisterTracker(id)
	}
	s.trackers = nil
	delete(m.sessions, s.chatID)
}

func (m *Manager) expire(chatID string, gen uint64) {
	m.mu.Lock()
	s, ok := m.sessions[chatID]
	if !ok || s.gen != gen {
		m.mu.Unlock()
		return
	}
	text := "⏰ Time's up! " + s.game.Expire()
	players, gw, name := s.players, s.gw, s.game.Name()
	m.finishLocked(s)
	m.mu.Unlock()

	m.logger.Info("game ended", "chat_id", chatID, "game", name, "outcome", OutcomeTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if _, err := gw.Send(ctx, chatID, message.Content{Text: strings.TrimSpace(text), Mention: players}); err != nil {
		m.logger.Warn("timeout notice failed", "chat_id", chatID, "error", err)
	}
}

func (m *Manager) joinPredicate(chatID string) tracker.Predicate {
	return func(_ context.Context, msg message.InboundMessage) bool {
		if !strings.EqualFold(strings.TrimSpace(msg.Text), "join") || m.isBanned(chatID, msg.SenderID) {
			return false
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		s, ok := m.sessions[chatID]
		return ok && s.state == AwaitingPlayers && slices.Contains(s.players[1:], msg.SenderID)
	}
}

func (m *Manager) join(ctx context.Context, gw message.Gateway, msg message.InboundMessage) error {
	m.mu.Lock()
	s, ok := m.sessions[msg.ChatID]
	if !ok || s.state != AwaitingPlayers || !slices.Contains(s.players[1:], msg.SenderID) {
		m.mu.Unlock()
		return nil
	}
	m.untrack(s, "join")
	if err := m.trackPlay(s); err != nil {
		m.finishLocked(s)
		m.mu.Unlock()
		return fmt.Errorf("begin %s: %w", s.game.Name(), err)
	}
	s.state = InProgress
	text := s.game.Start(s.players)
	players := slices.Clone(s.players)
	m.armLocked(s)
	m.mu.Unlock()

	_, err := gw.Send(ctx, msg.ChatID, message.Content{Text: text, Mention: players})
	return err
}

// canMoveLocked reports whether msg is a legal move by the player whose turn
// it is.
func (m *Manager) canMoveLocked(s *session, msg message.InboundMessage) bool {
	if s.state != InProgress || !msg.HasText || m.isBanned(s.chatID, msg.SenderID) {
		return false
	}
	if s.game.Seats() > 0 && s.players[s.turn] != msg.SenderID {
		return false
	}
	return s.game.Legal(strings.TrimSpace(msg.Text))
}

func (m *Manager) movePredicate(chatID string) tracker.Predicate {
	return func(_ context.Context, msg message.InboundMessage) bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		s, ok := m.sessions[chatID]
		return ok && m.canMoveLocked(s, msg)
	}
}

func (m *Manager) move(ctx context.Context, gw message.Gateway, msg message.InboundMessage) error {
	m.mu.Lock()
	s, ok := m.sessions[msg.ChatID]
	if !ok || !m.canMoveLocked(s, msg) {
		m.mu.Unlock()
		return nil
	}

	seats := s.game.Seats()
	seat := -1
	if seats > 0 {
		seat = s.turn
	}
	step := s.game.Play(Move{Seat: seat, Player: msg.SenderID, Text: strings.TrimSpace(msg.Text)})
	players := slices.Clone(s.players)
	name := s.game.Name()
	switch {
	case step.Outcome != "":
		m.finishLocked(s)
	case step.Advance:
		if seats > 0 {
			s.turn = (s.turn + 1) % seats
		}
		m.armLocked(s)
	}
	m.mu.Unlock()

	if step.Outcome != "" {
		m.logger.Info("game ended", "chat_id", msg.ChatID, "game", name, "outcome", step.Outcome, "last_move", msg.SenderID)
	}
	if step.Text == "" {
		return nil
	}
	_, err := gw.Send(ctx, msg.ChatID, message.Content{Text: step.Text, Mention: players})
	return err
}

func (m *Manager) resignPredicate(chatID string) tracker.Predicate {
	return func(_ context.Context, msg message.InboundMessage) bool {
		if !strings.EqualFold(strings.TrimSpace(msg.Text), "resign") || m.isBanned(chatID, msg.SenderID) {
			return false
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		s, ok := m.sessions[chatID]
		return ok && s.state == InProgress && s.seated(msg.SenderID)
	}
}

func (m *Manager) resign(ctx context.Context, gw message.Gateway, msg message.InboundMessage) error {
	m.mu.Lock()
	s, ok := m.sessions[msg.ChatID]
	if !ok || s.state != InProgress || !s.seated(msg.SenderID) {
		m.mu.Unlock()
		return nil
	}
	others := slices.DeleteFunc(slices.Clone(s.players), func(p string) bool { return p == msg.SenderID })
	name := s.game.Name()
	m.finishLocked(s)
	m.mu.Unlock()

	m.logger.Info("game ended", "chat_id", msg.ChatID, "game", name, "outcome", OutcomeResign, "by", msg.SenderID)
	text := fmt.Sprintf("🏳️ @%s resigned. %s wins!", msg.SenderID, mentionAll(others))
	_, err := gw.Send(ctx, msg.ChatID, message.Content{Text: text, Mention: append(others, msg.SenderID)})
	return err
}

func mentionAll(ids []string) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = "@" + id
	}
	return strings.Join(out, ", ")
}
