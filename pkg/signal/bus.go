package signal

import (
	"context"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/germanamz/mmpa/pkg/events"
)

// Routing targets known to the default consumers.
const (
	TargetMorphWeights = "morphWeights"
	TargetGeometry     = "geometry"
	TargetParticles    = "particles"
	TargetLighting     = "lighting"
	TargetColors       = "colors"
)

// DefaultTargets returns the initial routing table.
func DefaultTargets() map[string]bool {
	return map[string]bool{
		TargetMorphWeights: true,
		TargetGeometry:     true,
		TargetParticles:    true,
		TargetLighting:     false,
		TargetColors:       false,
	}
}

// SourceInfo describes a registered source.
type SourceInfo struct {
	ID      string  `json:"id"`
	Type    string  `json:"type"`
	State   State   `json:"state"`
	Enabled bool    `json:"enabled"`
	Weight  float64 `json:"weight"`
}

// Info is a snapshot of the bus configuration.
type Info struct {
	Mode    MixMode         `json:"mode"`
	Sources []SourceInfo    `json:"sources"`
	Targets map[string]bool `json:"targets"`
}

// Options configures a Bus. Every field is optional.
type Options struct {
	Logger  *slog.Logger
	Events  events.Publisher
	Now     func() time.Time
	Mode    MixMode
	Targets map[string]bool
}

type entry struct {
	id      string
	src     Source
	weight  float64
	enabled bool
}

// Bus owns registered sources, their weights and enabled flags, and mixes
// their latest frames on demand. It is safe for concurrent use.
type Bus struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	mode    MixMode
	targets map[string]bool

	logger *slog.Logger
	events events.Publisher
	now    func() time.Time
}

// NewBus creates a Bus in blend mode with the default routing targets unless
// opts says otherwise.
func NewBus(opts Options) *Bus {
	b := &Bus{
		entries: make(map[string]*entry),
		mode:    Blend,
		targets: DefaultTargets(),
		logger:  opts.Logger,
		events:  events.OrDiscard(opts.Events),
		now:     opts.Now,
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.now == nil {
		b.now = time.Now
	}
	if opts.Mode != "" {
		if _, err := ParseMixMode(string(opts.Mode)); err == nil {
			b.mode = opts.Mode
		} else {
			b.logger.Warn("signal: unknown mix mode, using blend", "mode", opts.Mode)
		}
	}
	maps.Copy(b.targets, opts.Targets)

	return b
}

// AddSource registers src under id with the given weight, enabled. It
// returns false for an empty id, a nil source or a duplicate id.
func (b *Bus) AddSource(id string, src Source, weight float64) bool {
	if id == "" || src == nil {
		return false
	}

	b.mu.Lock()
	if _, ok := b.entries[id]; ok {
		b.mu.Unlock()
		b.logger.Warn("signal: source already registered", "id", id)
		return false
	}
	b.entries[id] = &entry{id: id, src: src, weight: clampWeight(weight), enabled: true}
	b.order = append(b.order, id)
	b.mu.Unlock()

	b.logger.Info("signal: source added", "id", id, "type", src.Type(), "weight", clampWeight(weight))
	b.publishState(id, src)

	return true
}

// RemoveSource unregisters a source and stops it.
func (b *Bus) RemoveSource(ctx context.Context, id string) bool {
	b.mu.Lock()
	e, ok := b.entries[id]
	if !ok {
		b.mu.Unlock()
		b.logger.Warn("signal: remove: source not found", "id", id)
		return false
	}
	delete(b.entries, id)
	b.order = slices.DeleteFunc(b.order, func(s string) bool { return s == id })
	b.mu.Unlock()

	if err := e.src.Stop(ctx); err != nil {
		b.logger.Warn("signal: remove: stop failed", "id", id, "error", err)
	}
	b.logger.Info("signal: source removed", "id", id)
	b.publishState(id, e.src)

	return true
}

// Source returns the registered source.
func (b *Bus) Source(id string) (Source, bool) {
	e, ok := b.entry(id)
	if !ok {
		return nil, false
	}

	return e.src, true
}

// StartSource starts a registered source. A source that fails to start is
// left in the Error state and contributes nothing to the mix.
func (b *Bus) StartSource(ctx context.Context, id string) bool {
	e, ok := b.entry(id)
	if !ok {
		b.logger.Warn("signal: start: source not found", "id", id)
		return false
	}

	err := e.src.Start(ctx)
	b.publishState(id, e.src)
	if err != nil {
		b.logger.Warn("signal: source unavailable", "id", id, "type", e.src.Type(), "error", err)
		return false
	}
	b.logger.Info("signal: source started", "id", id, "type", e.src.Type())

	return true
}

// StopSource stops a registered source.
func (b *Bus) StopSource(ctx context.Context, id string) bool {
	e, ok := b.entry(id)
	if !ok {
		b.logger.Warn("signal: stop: source not found", "id", id)
		return false
	}

	err := e.src.Stop(ctx)
	b.publishState(id, e.src)
	if err != nil {
		b.logger.Warn("signal: stop failed", "id", id, "error", err)
		return false
	}

	return true
}

// StartAll starts every registered source and returns how many are running.
func (b *Bus) StartAll(ctx context.Context) int {
	n := 0
	for _, id := range b.ids() {
		if b.StartSource(ctx, id) {
			n++
		}
	}

	return n
}

// StopAll stops every registered source.
func (b *Bus) StopAll(ctx context.Context) {
	for _, id := range b.ids() {
		b.StopSource(ctx, id)
	}
}

// Publish feeds a frame to a source that accepts external frames.
func (b *Bus) Publish(id string, sig Signal) bool {
	e, ok := b.entry(id)
	if !ok {
		b.logger.Warn("signal: publish: source not found", "id", id)
		return false
	}
	f, ok := e.src.(Feeder)
	if !ok {
		return false
	}

	return f.Publish(sig)
}

// SetSourceWeight sets a weight, clamped to [0,1].
func (b *Bus) SetSourceWeight(id string, w float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[id]
	if !ok {
		b.logger.Warn("signal: set weight: source not found", "id", id)
		return false
	}
	e.weight = clampWeight(w)

	return true
}

// SetSourceEnabled includes or excludes a source from the mix.
func (b *Bus) SetSourceEnabled(id string, on bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[id]
	if !ok {
		b.logger.Warn("signal: set enabled: source not found", "id", id)
		return false
	}
	e.enabled = on

	return true
}

// SetMixMode changes the mix mode. Unknown modes are rejected.
func (b *Bus) SetMixMode(m MixMode) bool {
	if _, err := ParseMixMode(string(m)); err != nil {
		b.logger.Warn("signal: set mix mode", "error", err)
		return false
	}

	b.mu.Lock()
	b.mode = m
	b.mu.Unlock()

	b.events.Publish(events.Event{Kind: events.MixModeChange, Subject: string(m), Timestamp: b.now()})

	return true
}

// MixMode returns the active mix mode.
func (b *Bus) MixMode() MixMode {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.mode
}

// CurrentSignal mixes the latest frames of every enabled, running source.
// It is recomputed on every call.
func (b *Bus) CurrentSignal() Signal {
	b.mu.RLock()
	mode := b.mode
	inputs := make([]Input, 0, len(b.order))
	for _, id := range b.order {
		e := b.entries[id]
		if !e.enabled || e.src.State() != Running {
			continue
		}
		inputs = append(inputs, Input{Signal: e.src.Latest(), Weight: e.weight})
	}
	b.mu.RUnlock()

	return Mix(mode, inputs)
}

// SetTargetEnabled gates delivery to a consumer category. It never affects
// the mix itself.
func (b *Bus) SetTargetEnabled(name string, on bool) {
	b.mu.Lock()
	b.targets[name] = on
	b.mu.Unlock()

	b.events.Publish(events.Event{Kind: events.TargetChange, Subject: name, Timestamp: b.now(), Data: on})
}

// TargetEnabled reports whether a target receives the signal. Unknown
// targets do not.
func (b *Bus) TargetEnabled(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.targets[name]
}

// SignalFor returns the mix for a target, or false when the target is gated.
func (b *Bus) SignalFor(target string) (Signal, bool) {
	if !b.TargetEnabled(target) {
		return Signal{}, false
	}

	return b.CurrentSignal(), true
}

// Info reports the mode, every source in registration order, and the
// routing targets.
func (b *Bus) Info() Info {
	b.mu.RLock()
	defer b.mu.RUnlock()

	info := Info{Mode: b.mode, Sources: make([]SourceInfo, 0, len(b.order)), Targets: maps.Clone(b.targets)}
	for _, id := range b.order {
		e := b.entries[id]
		info.Sources = append(info.Sources, SourceInfo{
			ID:      id,
			Type:    e.src.Type(),
			State:   e.src.State(),
			Enabled: e.enabled,
			Weight:  e.weight,
		})
	}

	return info
}

func (b *Bus) entry(id string) (*entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.entries[id]

	return e, ok
}

func (b *Bus) ids() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return slices.Clone(b.order)
}

func (b *Bus) publishState(id string, src Source) {
	b.events.Publish(events.Event{Kind: events.SourceState, Subject: id, Timestamp: b.now(), Data: src.State()})
}

func clampWeight(w float64) float64 {
	if math.IsNaN(w) {
		return 0
	}

	return max(0, min(1, w))
}
