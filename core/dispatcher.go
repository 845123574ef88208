package core

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"

	"github.com/jdelaire/openbot/core/command"
	"github.com/jdelaire/openbot/core/message"
	"github.com/jdelaire/openbot/core/permission"
	"github.com/jdelaire/openbot/core/tracker"
)

// Config is the runtime configuration read fresh on every dispatch.
type Config interface {
	Prefix() string
	Mode() permission.Mode
	OwnerID() string
	IsSudo(id string) bool
}

// Registrar is the whole surface a feature needs to plug into the core.
type Registrar interface {
	RegisterCommand(d command.Descriptor) error
	RegisterTracker(id string, pred tracker.Predicate, act tracker.Action) error
	UnregisterTracker(id string)
}

// Dispatcher owns the command and tracker registries and fans every
// inbound message out to both.
type Dispatcher struct {
	commands *command.Registry
	trackers *tracker.Registry
	config   Config
	gateway  message.Gateway
	pipeline *Pipeline
	logger   *slog.Logger

	inflight sync.WaitGroup

	queueMu sync.Mutex
	queues  map[string]*chatQueue
}

// chatQueue holds one chat's messages awaiting tracker dispatch.
type chatQueue struct {
	pending []queued
}

type queued struct {
	ctx context.Context
	msg message.InboundMessage
}

// NewDispatcher creates a Dispatcher with empty registries.
func NewDispatcher(cfg Config, gw message.Gateway, pipeline *Pipeline, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if pipeline == nil {
		pipeline = NewPipeline(PipelineOptions{}, logger)
	}
	return &Dispatcher{
		commands: command.NewRegistry(),
		trackers: tracker.NewRegistry(logger),
		config:   cfg,
		gateway:  gw,
		pipeline: pipeline,
		logger:   logger,
		queues:   make(map[string]*chatQueue),
	}
}

// Commands exposes the command registry for reloads and help listings.
func (d *Dispatcher) Commands() *command.Registry { return d.commands }

// Trackers exposes the tracker registry.
func (d *Dispatcher) Trackers() *tracker.Registry { return d.trackers }

// Gateway returns the session the dispatcher answers through.
func (d *Dispatcher) Gateway() message.Gateway { return d.gateway }

func (d *Dispatcher) RegisterCommand(desc command.Descriptor) error {
	return d.commands.Register(desc)
}

func (d *Dispatcher) RegisterTracker(id string, pred tracker.Predicate, act tracker.Action) error {
	return d.trackers.Register(id, pred, act)
}

func (d *Dispatcher) UnregisterTracker(id string) {
	d.trackers.Unregister(id)
}

// Deliver normalizes env and queues it behind earlier messages from the
// same chat. Trackers see a chat's messages in arrival order; each command
// runs in its own goroutine so a slow handler never blocks intake.
func (d *Dispatcher) Deliver(ctx context.Context, env message.Envelope) {
	msg, ok := message.Normalize(env)
	if !ok {
		return
	}
	d.inflight.Add(1)

	d.queueMu.Lock()
	q, running := d.queues[msg.ChatID]
	if !running {
		q = &chatQueue{}
		d.queues[msg.ChatID] = q
	}
	q.pending = append(q.pending, queued{ctx: ctx, msg: msg})
	d.queueMu.Unlock()

	if !running {
		go d.drain(msg.ChatID, q)
	}
}

// drain handles q until it is empty, then retires it.
func (d *Dispatcher) drain(chatID string, q *chatQueue) {
	for {
		d.queueMu.Lock()
		if len(q.pending) == 0 {
			delete(d.queues, chatID)
			d.queueMu.Unlock()
			return
		}
		next := q.pending[0]
		q.pending = q.pending[1:]
		d.queueMu.Unlock()

		d.inflight.Add(1)
		go func() {
			defer d.inflight.Done()
			defer d.recoverDispatch(next.msg)
			d.handleCommand(next.ctx, next.msg)
		}()
		d.dispatchTrackers(next.ctx, next.msg)
		d.inflight.Done()
	}
}

// Wait blocks until every delivered message has been handled.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

// Handle runs trackers and command resolution for msg and returns when
// both are done. Nothing escapes: faults are logged.
func (d *Dispatcher) Handle(ctx context.Context, msg message.InboundMessage) {
	defer d.recoverDispatch(msg)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.dispatchTrackers(ctx, msg)
	}()

	d.handleCommand(ctx, msg)
	wg.Wait()
}

func (d *Dispatcher) dispatchTrackers(ctx context.Context, msg message.InboundMessage) {
	defer d.recoverDispatch(msg)
	d.trackers.Dispatch(ctx, d.gateway, msg)
}

func (d *Dispatcher) recoverDispatch(msg message.InboundMessage) {
	if r := recover(); r != nil {
		d.logger.Error("dispatch panicked", "chat_id", msg.ChatID, "panic", r, "stack", string(debug.Stack()))
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, msg message.InboundMessage) {
	if !msg.HasText {
		return
	}

	prefix := d.config.Prefix()
	match, ok := d.commands.Resolve(msg.Text, prefix)
	if !ok {
		return
	}
	cmd := match.Command

	pc := permission.NewContext(msg, d.config.OwnerID(), d.config.IsSudo)
	decision := permission.Evaluate(pc, cmd.Flags, d.config.Mode())

	switch decision.Outcome {
	case permission.SilentDeny:
		d.logger.Debug("command ignored", "command", cmd.Name(), "chat_id", msg.ChatID, "sender", msg.SenderID)
		return
	case permission.VisibleDeny:
		d.deny(ctx, msg, decision)
		return
	}

	inv := &command.Invocation{
		ID:      uuid.NewString(),
		Command: cmd,
		Msg:     msg,
		Arg:     match.Arg,
		Perm:    pc,
		Prefix:  prefix,
		Gateway: d.gateway,
		Logger:  d.logger.With("command", cmd.Name()),
	}
	done := d.pipeline.Run(ctx, inv)
	d.logger.Debug("command finished", "command", cmd.Name(), "invocation", inv.ID, "status", done.Status, "warned", done.Warned)
}

func (d *Dispatcher) deny(ctx context.Context, msg message.InboundMessage, decision permission.Decision) {
	fctx, cancel := context.WithTimeout(ctx, feedbackTimeout)
	defer cancel()

	key := msg.Key()
	if _, err := d.gateway.Send(fctx, msg.ChatID, message.Content{Text: decision.Text(), ReplyTo: &key}); err != nil {
		d.logger.Warn("deny reply failed", "chat_id", msg.ChatID, "error", err)
	}
	if err := d.gateway.React(fctx, key, ReactDenied); err != nil {
		d.logger.Warn("deny reaction failed", "chat_id", msg.ChatID, "error", err)
	}
}
