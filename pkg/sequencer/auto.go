package sequencer

import (
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/germanamz/mmpa/pkg/anchors"
	"github.com/germanamz/mmpa/pkg/easing"
	"github.com/germanamz/mmpa/pkg/events"
	"github.com/germanamz/mmpa/pkg/morph"
)

// OriginName names the "from" side of an auto-morph that starts before
// anything has been rendered.
const OriginName = "Auto-Morph Origin"

// AnchorLister lists every anchor. *anchors.Store implements it.
type AnchorLister interface {
	List() []anchors.Anchor
}

// AutoConfig controls auto-morph mode.
type AutoConfig struct {
	MinDuration  time.Duration `json:"minDuration"`
	MaxDuration  time.Duration `json:"maxDuration"`
	PauseBetween time.Duration `json:"pauseBetween"`
	RandomEasing bool          `json:"randomEasing"`
	AvoidRepeats bool          `json:"avoidRepeats"`
	// Pool restricts targets to these anchor IDs. Empty means every anchor.
	Pool []string `json:"pool"`
}

// DefaultAutoConfig returns the stock auto-morph settings.
func DefaultAutoConfig() AutoConfig {
	return AutoConfig{
		MinDuration:  3 * time.Second,
		MaxDuration:  8 * time.Second,
		PauseBetween: time.Second,
		RandomEasing: true,
		AvoidRepeats: true,
	}
}

func (c AutoConfig) normalized() AutoConfig {
	c.MinDuration = max(c.MinDuration, 0)
	c.MaxDuration = max(c.MaxDuration, c.MinDuration)
	c.PauseBetween = max(c.PauseBetween, 0)
	c.Pool = slices.Clone(c.Pool)

	return c
}

// randomEasings are the curves auto mode draws from.
var randomEasings = []easing.Curve{easing.Linear, easing.InOutCubic, easing.InCubic, easing.OutCubic, easing.InOutSine}

// Auto wanders between random anchors: morph, wait PauseBetween, pick the
// next target. It is tick-driven and safe for concurrent use.
type Auto struct {
	mu      sync.Mutex
	anchors AnchorLister
	morph   Morpher
	logger  *slog.Logger
	events  events.Publisher
	now     func() time.Time
	rng     *rand.Rand

	cfg     AutoConfig
	running bool
	waiting bool
	// due is when the next morph is scheduled (waiting) or when the current
	// one ends (morphing).
	due    time.Time
	gen    uint64
	lastID string
}

// NewAuto creates a stopped Auto. It reuses PlayerOptions for its
// dependencies.
func NewAuto(store AnchorLister, m Morpher, opts PlayerOptions) *Auto {
	a := &Auto{
		anchors: store,
		morph:   m,
		logger:  opts.Logger,
		events:  events.OrDiscard(opts.Events),
		now:     opts.Now,
		rng:     opts.Rand,
		cfg:     DefaultAutoConfig(),
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.rng == nil {
		a.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // target choice, not security
	}

	return a
}

// Start enables auto mode with cfg. The first morph begins after
// cfg.PauseBetween. It returns false if auto mode is already running.
func (a *Auto) Start(cfg AutoConfig) bool {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		a.logger.Info("sequencer: auto-morph already active")
		return false
	}

	a.cfg = cfg.normalized()
	a.running = true
	a.waiting = true
	a.due = a.now().Add(a.cfg.PauseBetween)
	a.lastID = ""
	cfgCopy := a.cfg
	a.mu.Unlock()

	a.logger.Info("sequencer: auto-morph started", "min", cfgCopy.MinDuration, "max", cfgCopy.MaxDuration,
		"pause", cfgCopy.PauseBetween, "pool", len(cfgCopy.Pool))
	a.events.Publish(events.Event{Kind: events.AutoMorphStarted, Data: cfgCopy})

	return true
}

// Stop disables auto mode and cancels its morph.
func (a *Auto) Stop() bool {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return false
	}
	a.running = false
	ours := !a.waiting && a.morph.Generation() == a.gen
	a.mu.Unlock()

	if ours {
		a.morph.Stop()
	}

	a.logger.Info("sequencer: auto-morph stopped")
	a.events.Publish(events.Event{Kind: events.AutoMorphStopped})

	return true
}

// IsActive reports whether auto mode is running.
func (a *Auto) IsActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.running
}

// Config returns the current settings.
func (a *Auto) Config() AutoConfig {
	a.mu.Lock()
	defer a.mu.Unlock()

	cfg := a.cfg
	cfg.Pool = slices.Clone(cfg.Pool)

	return cfg
}

// UpdateConfig replaces the settings. A running auto mode picks them up at
// its next morph.
func (a *Auto) UpdateConfig(cfg AutoConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cfg = cfg.normalized()
}

// Tick schedules and starts auto-morphs. It does not tick the morph engine.
func (a *Auto) Tick(now time.Time) {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}

	if !a.waiting {
		if a.morph.Generation() != a.gen {
			a.running = false
			a.mu.Unlock()
			a.logger.Warn("sequencer: auto-morph preempted by another morph, stopping")
			a.events.Publish(events.Event{Kind: events.AutoMorphStopped, Data: "preempted"})
			return
		}
		if now.Before(a.due) {
			a.mu.Unlock()
			return
		}
		a.waiting = true
		a.due = a.due.Add(a.cfg.PauseBetween)
	}

	if now.Before(a.due) {
		a.mu.Unlock()
		return
	}

	target, ok := a.pickLocked()
	if !ok {
		a.running = false
		a.mu.Unlock()
		a.logger.Info("sequencer: no anchors available for auto-morph, stopping")
		a.events.Publish(events.Event{Kind: events.AutoMorphStopped, Data: "no anchors"})
		return
	}

	d := a.cfg.MinDuration
	if spread := a.cfg.MaxDuration - a.cfg.MinDuration; spread > 0 {
		d += time.Duration(a.rng.Int64N(int64(spread) + 1))
	}
	curve := easing.Default
	if a.cfg.RandomEasing {
		curve = randomEasings[a.rng.IntN(len(randomEasings))]
	}

	from, ok := a.morph.Current()
	if !ok {
		from = target
		from.Name = OriginName
	}

	scheduled := a.due
	gen, ok := a.morph.Begin(morph.Request{
		From:     &from,
		To:       &target,
		Duration: d,
		Easing:   curve.String(),
		Elapsed:  now.Sub(scheduled),
	})
	if !ok {
		a.mu.Unlock()
		return
	}

	a.gen = gen
	a.lastID = target.ID
	a.waiting = false
	a.due = scheduled.Add(d)
	a.mu.Unlock()

	a.logger.Info("sequencer: auto-morph", "to", target.Name, "duration", d, "easing", curve.String())
}

// pickLocked draws a random target from the pool, skipping the previous
// target when AvoidRepeats is set.
func (a *Auto) pickLocked() (anchors.Anchor, bool) {
	all := a.anchors.List()

	candidates := all[:0:0]
	for _, anc := range all {
		if len(a.cfg.Pool) > 0 && !slices.Contains(a.cfg.Pool, anc.ID) {
			continue
		}
		if a.cfg.AvoidRepeats && anc.ID == a.lastID {
			continue
		}
		candidates = append(candidates, anc)
	}

	if len(candidates) == 0 {
		return anchors.Anchor{}, false
	}

	return candidates[a.rng.IntN(len(candidates))], true
}
