// Package morph interpolates between two anchors over a duration. The Engine
// is a small Idle/Morphing state machine driven by explicit Tick calls: each
// tick computes the eased progress from the injected clock, renders one
// interpolated Frame and hands it to the Sink. At most one morph is live;
// starting a new one cancels the previous one without firing its completion
// callback.
package morph

import (
	"log/slog"
	"sync"
	"time"

	"github.com/germanamz/mmpa/pkg/anchors"
	"github.com/germanamz/mmpa/pkg/easing"
	"github.com/germanamz/mmpa/pkg/events"
	"github.com/germanamz/mmpa/pkg/paramtree"
)

// CurrentStateName is the name given to anchors built from the rendered state.
const CurrentStateName = "Current State"

// Frame is one rendered interpolation step.
type Frame struct {
	Tree        paramtree.Tree `json:"tree"`
	VisualState paramtree.Tree `json:"visualState,omitempty"`
	// Raw is the linear time fraction in [0,1]; Progress is Raw after easing.
	Raw      float64 `json:"raw"`
	Progress float64 `json:"progress"`
	Done     bool    `json:"done"`
}

// Sink receives every rendered frame. It is called outside the engine lock
// and may call back into the engine.
type Sink func(Frame)

// Info describes the live morph.
type Info struct {
	From     string        `json:"from"`
	To       string        `json:"to"`
	Progress float64       `json:"progress"`
	Duration time.Duration `json:"duration"`
	Easing   easing.Curve  `json:"easing"`
}

// Request is the full form of Start.
type Request struct {
	From       *anchors.Anchor
	To         *anchors.Anchor
	Duration   time.Duration
	Easing     string
	OnComplete func()
	// Elapsed starts the morph part-way through, as if it had begun Elapsed
	// ago. Used to resume a paused morph.
	Elapsed time.Duration
}

// Options configures an Engine. Every field is optional.
type Options struct {
	Logger *slog.Logger
	Events events.Publisher
	Now    func() time.Time
	Sink   Sink
}

type morphState struct {
	gen        uint64
	from       anchors.Anchor
	to         anchors.Anchor
	start      time.Time
	duration   time.Duration
	curve      easing.Curve
	raw        float64
	progress   float64
	onComplete func()
}

// Engine runs one morph at a time. It is safe for concurrent use.
type Engine struct {
	mu     sync.Mutex
	logger *slog.Logger
	events events.Publisher
	now    func() time.Time
	sink   Sink

	gen    uint64
	active *morphState
	last   *Frame
}

// New creates an idle Engine.
func New(opts Options) *Engine {
	e := &Engine{
		logger: opts.Logger,
		events: events.OrDiscard(opts.Events),
		now:    opts.Now,
		sink:   opts.Sink,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}

	return e
}

// Start begins a morph from one anchor to another, cancelling any morph in
// flight without firing its callback. An unknown easing name falls back to
// ease-in-out-cubic. It returns false when either anchor is nil.
func (e *Engine) Start(from, to *anchors.Anchor, d time.Duration, easingName string, onComplete func()) bool {
	_, ok := e.Begin(Request{From: from, To: to, Duration: d, Easing: easingName, OnComplete: onComplete})
	return ok
}

// Begin is Start with the full request. It returns the generation token of
// the new morph; a caller can compare it against Generation to tell whether
// its morph is still the live one.
func (e *Engine) Begin(r Request) (uint64, bool) {
	if r.From == nil || r.To == nil {
		e.logger.Warn("morph: start: missing anchor", "from_nil", r.From == nil, "to_nil", r.To == nil)
		return 0, false
	}

	curve, ok := easing.Parse(r.Easing)
	if !ok {
		if r.Easing != "" {
			e.logger.Warn("morph: unknown easing, using default", "easing", r.Easing, "default", easing.Default.String())
		}
		curve = easing.Default
	}

	if paths := paramtree.Mismatches(r.From.Tree, r.To.Tree); len(paths) > 0 {
		e.logger.Warn("morph: anchors differ in shape, unmatched leaves keep their value",
			"from", r.From.Name, "to", r.To.Name, "paths", paths)
	}

	st := &morphState{
		from:       r.From.Clone(),
		to:         r.To.Clone(),
		duration:   r.Duration,
		curve:      curve,
		onComplete: r.OnComplete,
	}

	e.mu.Lock()
	cancelled := e.active
	e.gen++
	st.gen = e.gen
	st.start = e.now().Add(-max(r.Elapsed, 0))
	e.active = st
	e.mu.Unlock()

	if cancelled != nil {
		e.events.Publish(events.Event{Kind: events.MorphStopped, Subject: cancelled.to.Name})
	}
	e.logger.Debug("morph: started", "from", st.from.Name, "to", st.to.Name,
		"duration", st.duration, "easing", curve.String(), "elapsed", r.Elapsed)
	e.events.Publish(events.Event{Kind: events.MorphStarted, Subject: st.to.Name, Data: Info{
		From: st.from.Name, To: st.to.Name, Duration: st.duration, Easing: curve,
	}})

	return st.gen, true
}

// Tick renders the live morph at time now. It returns false when idle. When
// the morph reaches its end the engine goes idle and the completion callback
// runs once, synchronously, before Tick returns.
func (e *Engine) Tick(now time.Time) (Frame, bool) {
	e.mu.Lock()
	st := e.active
	if st == nil {
		e.mu.Unlock()
		return Frame{}, false
	}

	raw := 1.0
	if st.duration > 0 {
		raw = float64(now.Sub(st.start)) / float64(st.duration)
		raw = max(0, min(1, raw))
	}
	// A clock stepping backwards never rewinds the morph.
	raw = max(raw, st.raw)
	st.raw = raw
	st.progress = max(st.curve.Apply(raw), st.progress)

	frame := Frame{
		Tree:        paramtree.Interpolate(st.from.Tree, st.to.Tree, st.progress),
		VisualState: paramtree.Interpolate(st.from.VisualState, st.to.VisualState, st.progress),
		Raw:         raw,
		Progress:    st.progress,
		Done:        raw >= 1,
	}
	e.last = &frame

	var onComplete func()
	if frame.Done {
		e.active = nil
		onComplete = st.onComplete
	}
	sink := e.sink
	e.mu.Unlock()

	if sink != nil {
		sink(frame)
	}

	if frame.Done {
		e.logger.Debug("morph: complete", "to", st.to.Name)
		e.events.Publish(events.Event{Kind: events.MorphCompleted, Subject: st.to.Name})
		if onComplete != nil {
			onComplete()
		}
	}

	return frame, true
}

// Stop cancels the live morph. Its completion callback never fires. Stopping
// an idle engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	st := e.active
	e.active = nil
	if st != nil {
		e.gen++
	}
	e.mu.Unlock()

	if st == nil {
		return
	}

	e.logger.Debug("morph: stopped", "to", st.to.Name)
	e.events.Publish(events.Event{Kind: events.MorphStopped, Subject: st.to.Name})
}

// IsActive reports whether a morph is in flight.
func (e *Engine) IsActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.active != nil
}

// Generation returns the token of the most recent Begin or Stop. It changes
// whenever the live morph is replaced or cancelled.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.gen
}

// Progress returns the eased progress of the live morph, or false when idle.
func (e *Engine) Progress() (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == nil {
		return 0, false
	}

	return e.active.progress, true
}

// Info describes the live morph, or returns false when idle.
func (e *Engine) Info() (Info, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.active
	if st == nil {
		return Info{}, false
	}

	return Info{
		From:     st.from.Name,
		To:       st.to.Name,
		Progress: st.progress,
		Duration: st.duration,
		Easing:   st.curve,
	}, true
}

// Current returns the last rendered state as an anchor named "Current State".
// It returns false before anything has been rendered or set.
func (e *Engine) Current() (anchors.Anchor, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.last == nil {
		return anchors.Anchor{}, false
	}

	return anchors.Anchor{
		Name:        CurrentStateName,
		Version:     anchors.Version,
		Tree:        paramtree.MustClone(e.last.Tree),
		VisualState: paramtree.MustClone(e.last.VisualState),
		Tags:        []string{},
		Timestamp:   e.now().UnixMilli(),
	}, true
}

// SetState replaces the rendered state without morphing, cancelling any live
// morph. The sink receives the new state as a completed frame.
func (e *Engine) SetState(tree, visual paramtree.Tree) error {
	t, err := paramtree.Clone(tree)
	if err != nil {
		return err
	}
	v, err := paramtree.Clone(visual)
	if err != nil {
		return err
	}

	e.Stop()

	frame := Frame{Tree: t, VisualState: v, Raw: 1, Progress: 1, Done: true}

	e.mu.Lock()
	e.last = &frame
	sink := e.sink
	e.mu.Unlock()

	if sink != nil {
		sink(frame)
	}

	return nil
}

// Frame returns a copy of the last rendered frame.
func (e *Engine) Frame() (Frame, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.last == nil {
		return Frame{}, false
	}

	f := *e.last
	f.Tree = paramtree.MustClone(f.Tree)
	f.VisualState = paramtree.MustClone(f.VisualState)

	return f, true
}
