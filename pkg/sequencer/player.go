package sequencer

import (
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/germanamz/mmpa/pkg/anchors"
	"github.com/germanamz/mmpa/pkg/events"
	"github.com/germanamz/mmpa/pkg/morph"
)

// AnchorGetter resolves anchors by ID. *anchors.Store implements it.
type AnchorGetter interface {
	Get(id string) (anchors.Anchor, bool)
}

// SequenceGetter resolves sequences by ID. *Library implements it.
type SequenceGetter interface {
	Get(id string) (Sequence, bool)
}

// Morpher is the part of *morph.Engine the player and auto mode drive.
type Morpher interface {
	Begin(r morph.Request) (uint64, bool)
	Stop()
	IsActive() bool
	Generation() uint64
	Current() (anchors.Anchor, bool)
}

// Status is a snapshot of the transport state.
type Status struct {
	IsPlaying           bool   `json:"isPlaying"`
	IsPaused            bool   `json:"isPaused"`
	CurrentSequenceID   string `json:"currentSequenceId,omitempty"`
	CurrentSequenceName string `json:"currentSequence,omitempty"`
	CurrentStep         int    `json:"currentStep"`
	TotalSteps          int    `json:"totalSteps"`
	LoopEnabled         bool   `json:"loopEnabled"`
	Shuffle             bool   `json:"shuffle"`
}

// PlayerOptions configures a Player. Every field is optional.
type PlayerOptions struct {
	Logger *slog.Logger
	Events events.Publisher
	Now    func() time.Time
	Rand   *rand.Rand
}

type phase int

const (
	phaseMorphing phase = iota
	phaseHolding
)

type playback struct {
	seq   Sequence
	order []int
	pos   int
	loop  bool
	phase phase
	// stepStart is the scheduled start of the current step, not the tick
	// that observed it.
	stepStart time.Time
	paused    bool
	frozen    time.Duration
	gen       uint64
	started   bool
	from      anchors.Anchor
	to        anchors.Anchor
	lastID    string
}

func (pb *playback) step() Step {
	return pb.seq.Steps[pb.order[pb.pos]]
}

// Player plays sequences through a morph engine. It is safe for concurrent
// use.
type Player struct {
	mu      sync.Mutex
	seqs    SequenceGetter
	anchors AnchorGetter
	morph   Morpher
	logger  *slog.Logger
	events  events.Publisher
	now     func() time.Time
	rng     *rand.Rand

	shuffle bool
	pb      *playback
	pending []events.Event
}

// NewPlayer creates an idle Player.
func NewPlayer(seqs SequenceGetter, store AnchorGetter, m Morpher, opts PlayerOptions) *Player {
	p := &Player{
		seqs:    seqs,
		anchors: store,
		morph:   m,
		logger:  opts.Logger,
		events:  events.OrDiscard(opts.Events),
		now:     opts.Now,
		rng:     opts.Rand,
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // playback order, not security
	}

	return p
}

// Play starts the sequence from its first step, replacing any playback in
// progress. It returns false for an unknown sequence or one without steps.
func (p *Player) Play(sequenceID string, loop bool) bool {
	seq, ok := p.seqs.Get(sequenceID)
	if !ok {
		p.logger.Warn("sequencer: play: sequence not found", "id", sequenceID)
		return false
	}
	if len(seq.Steps) == 0 {
		p.logger.Warn("sequencer: play: sequence has no steps", "id", sequenceID, "name", seq.Name)
		return false
	}

	p.mu.Lock()
	if p.pb != nil {
		p.haltLocked(events.SequenceStopped, true)
	}

	now := p.now()
	pb := &playback{seq: seq, loop: loop}
	pb.order = p.orderLocked(len(seq.Steps), seq, "")
	p.pb = pb

	p.logger.Info("sequencer: playing", "sequence", seq.Name, "steps", len(seq.Steps), "loop", loop, "shuffle", p.shuffle)
	p.emitLocked(events.SequenceStarted, seq.Name, len(seq.Steps))

	ok = p.enterStepLocked(now, now)
	p.mu.Unlock()
	p.flush()

	return ok
}

// SetShuffle toggles shuffled order. It takes effect at the next Play or
// loop restart.
func (p *Player) SetShuffle(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.shuffle = on
}

// Pause freezes playback. The elapsed time of the current step is kept.
// Playback whose morph was replaced by another caller ends instead.
func (p *Player) Pause() bool {
	p.mu.Lock()
	pb := p.pb
	if pb == nil || pb.paused {
		p.mu.Unlock()
		return false
	}

	if p.preemptedLocked() {
		p.mu.Unlock()
		p.flush()
		return false
	}

	pb.frozen = max(p.now().Sub(pb.stepStart), 0)
	pb.paused = true
	if pb.phase == phaseMorphing && pb.frozen >= pb.step().Duration {
		pb.phase = phaseHolding
	}
	p.morph.Stop()
	pb.gen = p.morph.Generation()

	p.logger.Info("sequencer: paused", "sequence", pb.seq.Name, "step", pb.pos+1)
	p.emitLocked(events.SequencePaused, pb.seq.Name, pb.pos+1)
	p.mu.Unlock()
	p.flush()

	return true
}

// Resume continues a paused playback from the frozen elapsed time. If another
// caller started or stopped a morph while paused, playback ends instead.
func (p *Player) Resume() bool {
	p.mu.Lock()
	pb := p.pb
	if pb == nil || !pb.paused {
		p.mu.Unlock()
		return false
	}

	if p.preemptedLocked() {
		p.mu.Unlock()
		p.flush()
		return false
	}

	now := p.now()
	pb.paused = false
	pb.stepStart = now.Add(-pb.frozen)
	if pb.phase == phaseMorphing {
		p.beginLocked(pb.from, pb.to, pb.frozen)
	}

	p.logger.Info("sequencer: resumed", "sequence", pb.seq.Name, "step", pb.pos+1)
	p.emitLocked(events.SequenceResumed, pb.seq.Name, pb.pos+1)
	p.mu.Unlock()
	p.flush()

	return true
}

// SkipNext jumps to the next position. At the last position it restarts the
// last step. A paused player stays paused at the new step.
func (p *Player) SkipNext() bool { return p.skip(1) }

// SkipPrev jumps to the previous position, or restarts the first step.
func (p *Player) SkipPrev() bool { return p.skip(-1) }

func (p *Player) skip(delta int) bool {
	p.mu.Lock()
	pb := p.pb
	if pb == nil {
		p.mu.Unlock()
		return false
	}

	if p.preemptedLocked() {
		p.mu.Unlock()
		p.flush()
		return false
	}

	p.morph.Stop()
	pb.gen = p.morph.Generation()
	pb.pos = max(0, min(len(pb.order)-1, pb.pos+delta))

	now := p.now()
	ok := p.enterStepLocked(now, now)
	p.mu.Unlock()
	p.flush()

	return ok
}

// Stop cancels playback and the player's morph.
func (p *Player) Stop() bool {
	p.mu.Lock()
	if p.pb == nil {
		p.mu.Unlock()
		return false
	}
	p.haltLocked(events.SequenceStopped, true)
	p.mu.Unlock()
	p.flush()

	return true
}

// Tick advances holds and step boundaries. It does not tick the morph engine.
func (p *Player) Tick(now time.Time) {
	p.mu.Lock()
	p.tickLocked(now)
	p.mu.Unlock()
	p.flush()
}

func (p *Player) tickLocked(now time.Time) {
	// Each pass either returns or enters a later step; zero-length steps can
	// chain several boundaries into one tick, bounded by one traversal.
	for range 2*len(p.orderOrNil()) + 2 {
		pb := p.pb
		if pb == nil || pb.paused {
			return
		}

		if p.preemptedLocked() {
			return
		}

		step := pb.step()
		elapsed := now.Sub(pb.stepStart)

		if pb.phase == phaseMorphing {
			if elapsed < step.Duration {
				return
			}
			pb.phase = phaseHolding
		}

		if elapsed < step.Total() {
			return
		}

		next := pb.stepStart.Add(step.Total())
		pb.pos++
		if !p.enterStepLocked(next, now) {
			return
		}
	}
}

// preemptedLocked ends playback when the morph engine's generation moved
// past the player's token, i.e. another caller started or stopped a morph.
func (p *Player) preemptedLocked() bool {
	pb := p.pb
	if p.morph.Generation() == pb.gen {
		return false
	}

	p.logger.Warn("sequencer: morph replaced by another caller, stopping playback", "sequence", pb.seq.Name)
	p.pb = nil
	p.emitLocked(events.SequenceStopped, pb.seq.Name, "preempted")

	return true
}

func (p *Player) orderOrNil() []int {
	if p.pb == nil {
		return nil
	}

	return p.pb.order
}

// enterStepLocked starts the step at pb.pos, scheduled to have begun at start.
// Steps whose anchor is missing are skipped; running past the end loops or
// completes. It returns false when playback ended.
func (p *Player) enterStepLocked(start, now time.Time) bool {
	pb := p.pb
	misses := 0

	for {
		if pb.pos >= len(pb.order) {
			if !pb.loop {
				p.logger.Info("sequencer: sequence complete", "sequence", pb.seq.Name)
				p.haltLocked(events.SequenceCompleted, false)
				return false
			}
			pb.order = p.orderLocked(len(pb.seq.Steps), pb.seq, pb.lastID)
			pb.pos = 0
			p.logger.Info("sequencer: looping", "sequence", pb.seq.Name)
			p.emitLocked(events.SequenceLooped, pb.seq.Name, nil)
		}

		step := pb.step()
		target, ok := p.anchors.Get(step.AnchorID)
		if !ok {
			misses++
			p.logger.Warn("sequencer: anchor not found, skipping step", "sequence", pb.seq.Name, "step", pb.pos+1, "anchor", step.AnchorID)
			if misses >= len(pb.order) {
				p.logger.Warn("sequencer: no playable anchors in sequence, stopping", "sequence", pb.seq.Name)
				p.haltLocked(events.SequenceStopped, true)
				return false
			}
			pb.pos++
			continue
		}

		from := p.originLocked(target)
		pb.from, pb.to = from, target
		pb.phase = phaseMorphing
		pb.lastID = target.ID
		pb.started = true

		p.logger.Info("sequencer: step", "sequence", pb.seq.Name, "step", pb.pos+1, "of", len(pb.order),
			"anchor", target.Name, "duration", step.Duration)
		p.emitLocked(events.SequenceStep, pb.seq.Name, pb.pos+1)

		if pb.paused {
			pb.frozen = 0
			return true
		}

		pb.stepStart = start
		p.beginLocked(from, target, now.Sub(start))

		return true
	}
}

// originLocked picks the "from" side of the next morph: the step's own anchor
// for the first step, otherwise the rendered state. While the previous morph
// has not rendered its final frame the previous target stands in for it.
func (p *Player) originLocked(target anchors.Anchor) anchors.Anchor {
	pb := p.pb
	if !pb.started {
		return target
	}

	if !p.morph.IsActive() {
		if cur, ok := p.morph.Current(); ok {
			return cur
		}
	}

	return pb.to
}

func (p *Player) beginLocked(from, to anchors.Anchor, elapsed time.Duration) {
	pb := p.pb
	step := pb.step()

	gen, ok := p.morph.Begin(morph.Request{
		From:     &from,
		To:       &to,
		Duration: step.Duration,
		Easing:   step.Easing,
		Elapsed:  elapsed,
	})
	if !ok {
		pb.gen = p.morph.Generation()
		return
	}
	pb.gen = gen
}

// haltLocked clears playback. With stopMorph set, the player's morph is
// cancelled if it is still live; otherwise it is left to finish rendering.
func (p *Player) haltLocked(kind events.Kind, stopMorph bool) {
	pb := p.pb
	p.pb = nil
	if pb == nil {
		return
	}

	if stopMorph && p.morph.Generation() == pb.gen && p.morph.IsActive() {
		p.morph.Stop()
	}
	p.emitLocked(kind, pb.seq.Name, nil)
}

// orderLocked builds the play order: identity, or a shuffle when enabled.
// In a shuffled order the first playable step never targets avoidID when
// the sequence has at least two distinct playable anchors.
func (p *Player) orderLocked(n int, seq Sequence, avoidID string) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if !p.shuffle {
		return order
	}

	p.rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	if avoidID == "" {
		return order
	}

	// Steps with a missing anchor are skipped, so the first step that
	// resolves is the one that plays next.
	first := slices.IndexFunc(order, func(idx int) bool { return p.resolves(seq.Steps[idx].AnchorID) })
	if first < 0 || seq.Steps[order[first]].AnchorID != avoidID {
		return order
	}
	for j := first + 1; j < n; j++ {
		if id := seq.Steps[order[j]].AnchorID; id != avoidID && p.resolves(id) {
			order[first], order[j] = order[j], order[first]
			break
		}
	}

	return order
}

func (p *Player) resolves(anchorID string) bool {
	_, ok := p.anchors.Get(anchorID)
	return ok
}

// Status reports the transport state.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := Status{Shuffle: p.shuffle}
	pb := p.pb
	if pb == nil {
		return st
	}

	st.IsPlaying = true
	st.IsPaused = pb.paused
	st.CurrentSequenceID = pb.seq.ID
	st.CurrentSequenceName = pb.seq.Name
	st.CurrentStep = pb.pos + 1
	st.TotalSteps = len(pb.seq.Steps)
	st.LoopEnabled = pb.loop

	return st
}

// TimeRemaining is the time left in the current traversal: the rest of the
// current step plus every later step, pauses included.
func (p *Player) TimeRemaining() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	pb := p.pb
	if pb == nil {
		return 0
	}

	elapsed := pb.frozen
	if !pb.paused {
		elapsed = p.now().Sub(pb.stepStart)
	}

	remaining := max(pb.step().Total()-max(elapsed, 0), 0)
	for _, idx := range pb.order[pb.pos+1:] {
		remaining = addDurations(remaining, pb.seq.Steps[idx].Total())
	}

	return remaining
}

// Order returns the current play order as step indexes.
func (p *Player) Order() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pb == nil {
		return nil
	}

	return slices.Clone(p.pb.order)
}

func (p *Player) emitLocked(kind events.Kind, subject string, data any) {
	p.pending = append(p.pending, events.Event{Kind: kind, Subject: subject, Timestamp: p.now(), Data: data})
}

// flush publishes events queued under the lock.
func (p *Player) flush() {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, e := range pending {
		p.events.Publish(e)
	}
}
