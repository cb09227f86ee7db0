// Package events is the publish/subscribe channel between engine components
// and their observers (HTTP API, dashboard, MCP clients). Components depend
// only on the narrow Publisher interface; the Bus fans events out to
// subscribers without ever blocking the publisher.
package events

import (
	"sync"
	"time"
)

// Kind identifies the type of event.
type Kind string

const (
	AnchorCreated  Kind = "anchor_created"
	AnchorUpdated  Kind = "anchor_updated"
	AnchorDeleted  Kind = "anchor_deleted"
	AnchorImported Kind = "anchor_imported"
	AnchorShared   Kind = "anchor_shared"

	MorphStarted   Kind = "morph_started"
	MorphCompleted Kind = "morph_completed"
	MorphStopped   Kind = "morph_stopped"

	SequenceCreated  Kind = "sequence_created"
	SequenceUpdated  Kind = "sequence_updated"
	SequenceDeleted  Kind = "sequence_deleted"
	SequenceImported Kind = "sequence_imported"

	SequenceStarted   Kind = "sequence_started"
	SequenceStep      Kind = "sequence_step"
	SequenceLooped    Kind = "sequence_looped"
	SequencePaused    Kind = "sequence_paused"
	SequenceResumed   Kind = "sequence_resumed"
	SequenceStopped   Kind = "sequence_stopped"
	SequenceCompleted Kind = "sequence_completed"

	AutoMorphStarted Kind = "auto_morph_started"
	AutoMorphStopped Kind = "auto_morph_stopped"

	// FrameRendered carries a morph.Frame. It is published on the engine's
	// frame bus only, never alongside lifecycle events.
	FrameRendered Kind = "frame"

	SourceState   Kind = "source_state"
	MixModeChange Kind = "mix_mode_changed"
	TargetChange  Kind = "target_changed"
)

// Event is an immutable notification. Subject names the entity involved (an
// anchor ID, a sequence name, a source ID).
type Event struct {
	Kind      Kind
	Subject   string
	Timestamp time.Time
	Data      any
}

// Publisher is implemented by anything that accepts events.
type Publisher interface {
	Publish(e Event)
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}

// Subscription receives events from a Bus.
type Subscription struct {
	C  <-chan Event
	ch chan Event
}

// Bus fans out events to all active subscribers. It is safe for concurrent
// use.
type Bus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
	now  func() time.Time
}

// NewBus creates a Bus ready for use.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[*Subscription]struct{}),
		now:  time.Now,
	}
}

// Subscribe creates a new subscription with the given channel buffer size.
// The caller should read from sub.C and eventually call Unsubscribe.
func (b *Bus) Subscribe(bufSize int) *Subscription {
	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, ch: ch}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes the subscription and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

// Publish sends an event to all subscribers. A zero Timestamp is filled in.
// If a subscriber's buffer is full the event is dropped for that subscriber
// so a slow consumer never stalls the tick loop.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = b.now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
		}
	}
}

// OrDiscard returns p, or Discard when p is nil.
func OrDiscard(p Publisher) Publisher {
	if p == nil {
		return Discard
	}

	return p
}
