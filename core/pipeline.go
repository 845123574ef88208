package core

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jdelaire/openbot/core/command"
)

// Reaction signals emitted by the pipeline.
const (
	ReactWorking  = "\u23f3"       // hourglass
	ReactSlow     = "\U0001F422"   // turtle
	ReactSuccess  = "\u2705"       // check mark
	ReactFallback = "\u274c"       // cross mark
	ReactError    = "\u26a0\ufe0f" // warning
	ReactDenied   = "\U0001F6AB"   // no entry
)

const (
	defaultWatchdog   = 20 * time.Second
	defaultClearDelay = 3 * time.Second
	feedbackTimeout   = 10 * time.Second
)

// Status is the terminal state of one invocation.
type Status int

const (
	StatusSuccess Status = iota
	StatusFallback
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFallback:
		return "fallback"
	}
	return "error"
}

// Completion reports how an invocation ended.
type Completion struct {
	Status Status
	Warned bool // the watchdog fired before the handler returned
	Err    error
}

// PipelineOptions tunes feedback timing. Zero values use defaults; a
// negative ClearDelay clears immediately.
type PipelineOptions struct {
	Watchdog   time.Duration
	ClearDelay time.Duration
}

// Pipeline runs one command invocation with reaction feedback.
type Pipeline struct {
	watchdog   time.Duration
	clearDelay time.Duration
	logger     *slog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(opts PipelineOptions, logger *slog.Logger) *Pipeline {
	if opts.Watchdog <= 0 {
		opts.Watchdog = defaultWatchdog
	}
	if opts.ClearDelay == 0 {
		opts.ClearDelay = defaultClearDelay
	}
	if opts.ClearDelay < 0 {
		opts.ClearDelay = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{watchdog: opts.Watchdog, clearDelay: opts.ClearDelay, logger: logger}
}

type phase int

const (
	phasePending phase = iota
	phaseAcknowledged
	phaseTimeoutWarned
	phaseCompleted
)

// invocationState serializes the watchdog and the terminal transition so a
// late watchdog signal can never follow the terminal one.
type invocationState struct {
	mu    sync.Mutex
	phase phase
}

// Run executes inv.Command.Handler. Handler errors and panics are recovered
// here and never escape.
func (p *Pipeline) Run(ctx context.Context, inv *command.Invocation) Completion {
	cmd := inv.Command
	react := !cmd.NoReact
	key := inv.Msg.Key()
	log := p.logger.With("invocation", inv.ID, "command", cmd.Name(), "chat_id", inv.Msg.ChatID)

	st := &invocationState{}
	if react {
		p.feedback(ctx, log, func(fctx context.Context) error {
			return inv.Gateway.React(fctx, key, ReactWorking)
		})
	}
	st.phase = phaseAcknowledged

	watchdog := time.AfterFunc(p.watchdog, func() {
		st.mu.Lock()
		defer st.mu.Unlock()
		if st.phase != phaseAcknowledged {
			return
		}
		st.phase = phaseTimeoutWarned
		log.Warn("command still running", "after", p.watchdog)
		if react {
			p.feedback(ctx, log, func(fctx context.Context) error {
				return inv.Gateway.React(fctx, key, ReactSlow)
			})
		}
	})

	result, err := p.invoke(ctx, inv)

	watchdog.Stop()
	st.mu.Lock()
	warned := st.phase == phaseTimeoutWarned
	st.phase = phaseCompleted
	st.mu.Unlock()

	done := Completion{Warned: warned, Err: err}
	terminal := ReactSuccess
	switch {
	case err != nil:
		done.Status = StatusError
		terminal = ReactError
		log.Error("command failed", "error", err)
	case result == command.Fallback:
		done.Status = StatusFallback
		terminal = ReactFallback
	default:
		done.Status = StatusSuccess
	}

	if react {
		p.feedback(ctx, log, func(fctx context.Context) error {
			return inv.Gateway.React(fctx, key, terminal)
		})
	}
	if err != nil && (inv.Perm.IsSudo || inv.Perm.IsOwner) {
		p.feedback(ctx, log, func(fctx context.Context) error {
			return inv.Reply(fctx, fmt.Sprintf("Error running %s%s: %s", inv.Prefix, cmd.Name(), err))
		})
	}

	if react {
		p.clear(ctx, log, func(fctx context.Context) error {
			return inv.Gateway.React(fctx, key, "")
		})
	}
	return done
}

func (p *Pipeline) invoke(ctx context.Context, inv *command.Invocation) (res command.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("command panicked", "command", inv.Command.Name(), "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return inv.Command.Handler(ctx, inv)
}

// clear waits out the clear delay and removes the transient reaction. It
// runs regardless of whether earlier feedback failed, and still clears when
// ctx is cancelled.
func (p *Pipeline) clear(ctx context.Context, log *slog.Logger, fn func(context.Context) error) {
	if p.clearDelay > 0 {
		t := time.NewTimer(p.clearDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}
	p.feedback(context.WithoutCancel(ctx), log, fn)
}

func (p *Pipeline) feedback(ctx context.Context, log *slog.Logger, fn func(context.Context) error) {
	fctx, cancel := context.WithTimeout(ctx, feedbackTimeout)
	defer cancel()
	if err := fn(fctx); err != nil {
		log.Warn("feedback failed", "error", err)
	}
}
