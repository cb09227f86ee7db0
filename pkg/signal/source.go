package signal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrUnavailable is returned by sources that cannot acquire their input,
// such as a denied device permission or an unreachable feed.
var ErrUnavailable = errors.New("signal: source unavailable")

// Source produces signals. The bus drives Start and Stop; the source updates
// its own latest value.
type Source interface {
	Type() string
	State() State
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Latest() Signal
}

// Feeder is implemented by sources that accept frames from outside, such as
// push sources fed over HTTP.
type Feeder interface {
	Publish(sig Signal) bool
}

// Hooks customize a Base. Every hook is optional.
type Hooks struct {
	// Init acquires the input. An error leaves the source in the Error state.
	Init func(ctx context.Context) error
	// Run produces frames until ctx is cancelled. It starts once the source
	// is running; a non-nil error other than cancellation moves the source to
	// Error.
	Run func(ctx context.Context, publish func(Signal) bool) error
	// Close releases what Init acquired.
	Close func(ctx context.Context) error
}

// Base implements the Source lifecycle around Hooks. Embed it, or use it
// directly for sources fed through Publish.
type Base struct {
	kind   string
	hooks  Hooks
	logger *slog.Logger

	mu     sync.Mutex
	state  atomic.Value // State
	latest atomic.Pointer[Signal]
	cancel context.CancelFunc
	done   chan struct{}
	opened bool
}

// NewBase creates an idle source of the given type.
func NewBase(kind string, hooks Hooks, logger *slog.Logger) *Base {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Base{kind: kind, hooks: hooks, logger: logger}
	b.state.Store(Idle)

	return b
}

// NewPush creates a source with no producer of its own; frames arrive
// through Publish.
func NewPush(kind string) *Base {
	return NewBase(kind, Hooks{}, nil)
}

// Type returns the source kind given to NewBase.
func (b *Base) Type() string { return b.kind }

// State returns the current lifecycle state.
func (b *Base) State() State { return b.state.Load().(State) }

// Latest returns the most recently published frame.
func (b *Base) Latest() Signal {
	if p := b.latest.Load(); p != nil {
		return *p
	}

	return Signal{}
}

// Publish stores sig as the latest frame. Frames are dropped unless the
// source is running.
func (b *Base) Publish(sig Signal) bool {
	if b.State() != Running {
		return false
	}
	b.latest.Store(&sig)

	return true
}

// Start walks idle, initializing, ready and running. Starting a running
// source is a no-op.
func (b *Base) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.State() == Running {
		return nil
	}
	if b.opened {
		// A producer that failed after start still holds its input.
		if err := b.stopLocked(ctx); err != nil {
			return err
		}
	}

	b.state.Store(Initializing)
	if b.hooks.Init != nil {
		if err := b.hooks.Init(ctx); err != nil {
			b.state.Store(Error)
			return fmt.Errorf("signal: start %s: %w", b.kind, err)
		}
	}
	b.opened = true
	b.state.Store(Ready)

	b.latest.Store(nil)
	b.state.Store(Running)

	if b.hooks.Run == nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	b.cancel, b.done = cancel, done

	go func() {
		defer close(done)
		err := b.hooks.Run(runCtx, b.Publish)
		if err != nil && runCtx.Err() == nil {
			b.logger.Warn("signal: source failed", "type", b.kind, "error", err)
			b.state.Store(Error)
		}
	}()

	return nil
}

// Stop halts the producer, releases the input and returns to idle.
func (b *Base) Stop(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.State() == Idle {
		return nil
	}

	return b.stopLocked(ctx)
}

func (b *Base) stopLocked(ctx context.Context) error {
	if b.cancel != nil {
		b.cancel()
		select {
		case <-b.done:
		case <-ctx.Done():
			return fmt.Errorf("signal: stop %s: %w", b.kind, ctx.Err())
		}
		b.cancel, b.done = nil, nil
	}

	b.state.Store(Idle)
	b.latest.Store(nil)

	if !b.opened {
		return nil
	}
	b.opened = false
	if b.hooks.Close != nil {
		if err := b.hooks.Close(ctx); err != nil {
			return fmt.Errorf("signal: stop %s: %w", b.kind, err)
		}
	}

	return nil
}
