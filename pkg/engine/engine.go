package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/germanamz/mmpa/pkg/anchors"
	"github.com/germanamz/mmpa/pkg/datadir"
	"github.com/germanamz/mmpa/pkg/easing"
	"github.com/germanamz/mmpa/pkg/events"
	"github.com/germanamz/mmpa/pkg/morph"
	"github.com/germanamz/mmpa/pkg/paramtree"
	"github.com/germanamz/mmpa/pkg/persist"
	"github.com/germanamz/mmpa/pkg/sequencer"
	"github.com/germanamz/mmpa/pkg/signal"
)

// DefaultMorphDuration is used when neither the caller nor the config sets
// a duration.
const DefaultMorphDuration = 2 * time.Second

// ErrNoState is returned by Capture before anything has been rendered.
var ErrNoState = errors.New("engine: no rendered state")

// Engine is the composition root that assembles the anchor store, sequence
// library, morph engine, player, auto mode and signal bus from configuration
// and exposes them through a frontend-agnostic API.
type Engine struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	dir    datadir.Dir
	events *events.Bus
	frames *events.Bus
	db     *sql.DB

	anchors   *anchors.Store
	sequences *sequencer.Library
	morph     *morph.Engine
	player    *sequencer.Player
	auto      *sequencer.Auto
	signals   *signal.Bus

	tickRate        int
	defaultDuration time.Duration
	defaultEasing   string

	closeOnce sync.Once
	closeErr  error
}

// New creates an Engine from the given configuration. It validates the
// config, opens storage, loads anchors and sequences, and registers the
// configured signal sources, starting those marked autostart.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:           cfg,
		logger:        cfg.Logger,
		now:           cfg.Now,
		dir:           datadir.New(cfg.DataDir),
		events:        events.NewBus(),
		frames:        events.NewBus(),
		tickRate:      cfg.TickRate,
		defaultEasing: cfg.Morph.DefaultEasing,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.tickRate == 0 {
		e.tickRate = DefaultTickRate
	}
	if e.defaultEasing == "" {
		e.defaultEasing = easing.Default.String()
	}
	e.defaultDuration, _ = parseDuration("morph.default_duration", cfg.Morph.DefaultDuration, DefaultMorphDuration)

	anchorStore, seqStore, err := e.openStorage()
	if err != nil {
		return nil, err
	}

	e.anchors, err = anchors.Open(ctx, anchors.Options{
		Persister: anchorStore,
		Events:    e.events,
		Logger:    e.logger,
		Now:       e.now,
	})
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("engine: anchors: %w", err)
	}

	e.sequences, err = sequencer.OpenLibrary(ctx, sequencer.LibraryOptions{
		Persister: seqStore,
		Events:    e.events,
		Logger:    e.logger,
		Now:       e.now,
	})
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("engine: sequences: %w", err)
	}

	e.morph = morph.New(morph.Options{Logger: e.logger, Events: e.events, Now: e.now, Sink: e.publishFrame})

	popts := sequencer.PlayerOptions{Logger: e.logger, Events: e.events, Now: e.now}
	e.player = sequencer.NewPlayer(e.sequences, e.anchors, e.morph, popts)
	e.auto = sequencer.NewAuto(e.anchors, e.morph, popts)
	e.auto.UpdateConfig(autoConfig(cfg.Auto))

	e.signals = signal.NewBus(signal.Options{
		Logger:  e.logger,
		Events:  e.events,
		Now:     e.now,
		Mode:    signal.MixMode(cfg.Signal.MixMode),
		Targets: cfg.Signal.Targets,
	})

	for _, sc := range cfg.Signal.Sources {
		src, err := buildSource(sc, e.logger)
		if err != nil {
			_ = e.Close()
			return nil, err
		}

		weight := 1.0
		if sc.Weight != nil {
			weight = *sc.Weight
		}
		e.signals.AddSource(sc.ID, src, weight)
		if sc.Enabled != nil && !*sc.Enabled {
			e.signals.SetSourceEnabled(sc.ID, false)
		}
		if sc.Autostart {
			e.signals.StartSource(ctx, sc.ID)
		}
	}

	e.logger.Info("engine: ready", "data_dir", e.dir.Root(), "backend", e.backend(),
		"anchors", e.anchors.Len(), "sequences", len(e.sequences.List()), "sources", len(cfg.Signal.Sources))

	return e, nil
}

func (e *Engine) backend() string {
	if e.cfg.Storage.Backend == "" {
		return BackendJSON
	}

	return e.cfg.Storage.Backend
}

// openStorage builds the persisters for the configured backend.
func (e *Engine) openStorage() (anchors.Persister, sequencer.Persister, error) {
	switch e.backend() {
	case BackendMemory:
		return &persist.Memory[anchors.Anchor]{}, &persist.Memory[sequencer.Sequence]{}, nil

	case BackendSQLite:
		if err := datadir.EnsureStructure(e.dir); err != nil {
			return nil, nil, fmt.Errorf("engine: storage: %w", err)
		}
		db, err := persist.OpenSQLite(e.dir.DatabasePath())
		if err != nil {
			return nil, nil, fmt.Errorf("engine: storage: %w", err)
		}
		e.db = db

		return persist.NewSQLiteTable(db, "anchor", func(a anchors.Anchor) string { return a.ID }),
			persist.NewSQLiteTable(db, "sequence", func(s sequencer.Sequence) string { return s.ID }),
			nil

	default:
		if err := datadir.EnsureStructure(e.dir); err != nil {
			return nil, nil, fmt.Errorf("engine: storage: %w", err)
		}

		return persist.NewJSONFile[anchors.Anchor](e.dir.AnchorsPath()),
			persist.NewJSONFile[sequencer.Sequence](e.dir.SequencesPath()),
			nil
	}
}

func autoConfig(c AutoConfig) sequencer.AutoConfig {
	out := sequencer.DefaultAutoConfig()
	out.MinDuration, _ = parseDuration("auto.min_duration", c.MinDuration, out.MinDuration)
	out.MaxDuration, _ = parseDuration("auto.max_duration", c.MaxDuration, out.MaxDuration)
	out.PauseBetween, _ = parseDuration("auto.pause_between", c.PauseBetween, out.PauseBetween)
	if c.RandomEasing != nil {
		out.RandomEasing = *c.RandomEasing
	}
	if c.AvoidRepeats != nil {
		out.AvoidRepeats = *c.AvoidRepeats
	}
	out.Pool = c.Pool

	return out
}

// Events returns the engine's event bus.
func (e *Engine) Events() *events.Bus { return e.events }

// Frames returns the bus every rendered frame is published on as a
// FrameRendered event.
func (e *Engine) Frames() *events.Bus { return e.frames }

func (e *Engine) publishFrame(f morph.Frame) {
	e.frames.Publish(events.Event{Kind: events.FrameRendered, Timestamp: e.now(), Data: f})
}

// Dir returns the data directory.
func (e *Engine) Dir() datadir.Dir { return e.dir }

func (e *Engine) Anchors() *anchors.Store        { return e.anchors }
func (e *Engine) Sequences() *sequencer.Library { return e.sequences }
func (e *Engine) Morph() *morph.Engine          { return e.morph }
func (e *Engine) Player() *sequencer.Player     { return e.player }
func (e *Engine) Auto() *sequencer.Auto         { return e.auto }
func (e *Engine) Signals() *signal.Bus          { return e.signals }

// TickRate returns the render loop frequency in Hz.
func (e *Engine) TickRate() int { return e.tickRate }

// Tick advances one frame: the player and auto mode first, so a morph they
// start renders in the same frame, then the morph engine.
func (e *Engine) Tick(now time.Time) (morph.Frame, bool) {
	e.player.Tick(now)
	e.auto.Tick(now)

	return e.morph.Tick(now)
}

// Run ticks the engine at the configured rate until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(e.tickRate))
	defer ticker.Stop()

	e.logger.Debug("engine: loop started", "tick_rate", e.tickRate)

	for {
		select {
		case <-ctx.Done():
			e.logger.Debug("engine: loop stopped")
			return nil
		case <-ticker.C:
			e.Tick(e.now())
		}
	}
}

// Frame returns the last rendered frame.
func (e *Engine) Frame() (morph.Frame, bool) { return e.morph.Frame() }

// Signal returns the mixed signal as delivered to a routing target.
func (e *Engine) Signal(target string) (signal.Signal, bool) { return e.signals.SignalFor(target) }

// SetState replaces the rendered state without morphing.
func (e *Engine) SetState(tree, visual paramtree.Tree) error {
	return e.morph.SetState(tree, visual)
}

// Capture stores the rendered state as a new anchor.
func (e *Engine) Capture(n anchors.NewAnchor) (anchors.Anchor, error) {
	cur, ok := e.morph.Current()
	if !ok {
		return anchors.Anchor{}, ErrNoState
	}

	n.Tree = cur.Tree
	n.VisualState = cur.VisualState

	return e.anchors.Create(n)
}

// MorphTo starts a morph from the rendered state to an anchor. A negative
// duration or empty easing uses the configured defaults. Without a rendered
// state the morph starts from the target itself.
func (e *Engine) MorphTo(id string, d time.Duration, easingName string) bool {
	target, ok := e.anchors.Get(id)
	if !ok {
		e.logger.Warn("engine: morph: anchor not found", "id", id)
		return false
	}

	from, ok := e.morph.Current()
	if !ok {
		from = target
	}
	if d < 0 {
		d = e.defaultDuration
	}
	if easingName == "" {
		easingName = e.defaultEasing
	}

	return e.morph.Start(&from, &target, d, easingName, nil)
}

// DefaultDuration returns the configured default morph duration.
func (e *Engine) DefaultDuration() time.Duration { return e.defaultDuration }

// StartAuto starts auto mode with the configured settings.
func (e *Engine) StartAuto() bool { return e.auto.Start(e.auto.Config()) }

// MorphStatus describes the live morph with durations in milliseconds.
type MorphStatus struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	Progress   float64 `json:"progress"`
	DurationMS int64   `json:"durationMs"`
	Easing     string  `json:"easing"`
}

// Status is a snapshot of the whole engine.
type Status struct {
	Morph           *MorphStatus     `json:"morph,omitempty"`
	Playback        sequencer.Status `json:"playback"`
	TimeRemainingMS int64            `json:"timeRemainingMs"`
	Auto            bool             `json:"auto"`
	Anchors         int              `json:"anchors"`
	Sequences       int              `json:"sequences"`
	Signal          signal.Info      `json:"signal"`
}

// Status reports the state of every component.
func (e *Engine) Status() Status {
	st := Status{
		Playback:        e.player.Status(),
		TimeRemainingMS: e.player.TimeRemaining().Milliseconds(),
		Auto:            e.auto.IsActive(),
		Anchors:         e.anchors.Len(),
		Sequences:       len(e.sequences.List()),
		Signal:          e.signals.Info(),
	}
	if info, ok := e.morph.Info(); ok {
		st.Morph = &MorphStatus{
			From:       info.From,
			To:         info.To,
			Progress:   info.Progress,
			DurationMS: info.Duration.Milliseconds(),
			Easing:     info.Easing.String(),
		}
	}

	return st
}

// Close stops playback and every signal source and closes storage. It is
// safe to call more than once.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		if e.player != nil {
			e.player.Stop()
		}
		if e.auto != nil {
			e.auto.Stop()
		}
		if e.signals != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			e.signals.StopAll(ctx)
			cancel()
		}
		if e.db != nil {
			if err := e.db.Close(); err != nil {
				e.closeErr = fmt.Errorf("engine: close storage: %w", err)
			}
		}
	})

	return e.closeErr
}
