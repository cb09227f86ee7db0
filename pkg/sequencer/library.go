package sequencer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/germanamz/mmpa/pkg/events"
	"github.com/germanamz/mmpa/pkg/idgen"
)

// Persister loads and saves the full sequence collection.
type Persister interface {
	Load(ctx context.Context) ([]Sequence, error)
	Save(ctx context.Context, items []Sequence) error
}

// LibraryOptions configures a Library. Every field is optional.
type LibraryOptions struct {
	Persister Persister
	Events    events.Publisher
	Logger    *slog.Logger
	IDs       idgen.Generator
	Now       func() time.Time
}

// Library is a thread-safe, insertion-ordered sequence collection. The zero
// value is ready to use and keeps sequences in memory only.
type Library struct {
	mu     sync.RWMutex
	saveMu sync.Mutex
	once   sync.Once
	opts   LibraryOptions
	order  []string
	seqs   map[string]*Sequence
}

// NewLibrary creates a Library without loading from the persister.
func NewLibrary(opts LibraryOptions) *Library {
	return &Library{opts: opts}
}

// OpenLibrary creates a Library and loads any persisted sequences.
func OpenLibrary(ctx context.Context, opts LibraryOptions) (*Library, error) {
	l := NewLibrary(opts)
	l.init()

	if l.opts.Persister == nil {
		return l, nil
	}

	loaded, err := l.opts.Persister.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("sequencer: load: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, s := range loaded {
		if s.ID == "" {
			l.opts.Logger.Warn("sequencer: skipping stored sequence without id", "name", s.Name)
			continue
		}
		if _, dup := l.seqs[s.ID]; dup {
			l.opts.Logger.Warn("sequencer: skipping duplicate stored sequence", "id", s.ID)
			continue
		}
		cp := s.Clone()
		l.order = append(l.order, cp.ID)
		l.seqs[cp.ID] = &cp
	}

	return l, nil
}

func (l *Library) init() {
	l.once.Do(func() {
		l.seqs = make(map[string]*Sequence)
		l.opts.Events = events.OrDiscard(l.opts.Events)
		if l.opts.Logger == nil {
			l.opts.Logger = slog.Default()
		}
		if l.opts.IDs == nil {
			l.opts.IDs = idgen.Prefixed("seq_", idgen.UUIDv7())
		}
		if l.opts.Now == nil {
			l.opts.Now = time.Now
		}
	})
}

// Create adds a sequence. An empty name becomes "Sequence N".
func (l *Library) Create(n NewSequence) Sequence {
	l.init()

	s := Sequence{
		Name:        n.Name,
		Description: n.Description,
		Steps:       slices.Clone(n.Steps),
		Loop:        n.Loop,
		Tags:        slices.Clone(n.Tags),
	}
	if s.Steps == nil {
		s.Steps = []Step{}
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}

	l.mu.Lock()
	s.ID = l.newIDLocked()
	s.Timestamp = l.opts.Now().UnixMilli()
	if s.Name == "" {
		s.Name = fmt.Sprintf("Sequence %d", len(l.order)+1)
	}
	l.insertLocked(s)
	l.mu.Unlock()

	l.opts.Logger.Info("sequencer: created sequence", "id", s.ID, "name", s.Name, "steps", len(s.Steps))
	l.persist()
	l.opts.Events.Publish(events.Event{Kind: events.SequenceCreated, Subject: s.ID, Data: s.Name})

	return s.Clone()
}

// Get returns a copy of the sequence with the given ID.
func (l *Library) Get(id string) (Sequence, bool) {
	l.init()
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, ok := l.seqs[id]
	if !ok {
		return Sequence{}, false
	}

	return s.Clone(), true
}

// List returns copies of all sequences in insertion order.
func (l *Library) List() []Sequence {
	l.init()
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.snapshotLocked()
}

// Update applies p to the sequence.
func (l *Library) Update(id string, p Patch) bool {
	return l.mutate("update", id, func(s *Sequence) bool {
		p.apply(s)
		return true
	})
}

// Delete removes the sequence.
func (l *Library) Delete(id string) bool {
	l.init()

	l.mu.Lock()
	s, ok := l.seqs[id]
	if !ok {
		l.mu.Unlock()
		l.opts.Logger.Warn("sequencer: delete: not found", "id", id)
		return false
	}
	delete(l.seqs, id)
	l.order = slices.DeleteFunc(l.order, func(x string) bool { return x == id })
	name := s.Name
	l.mu.Unlock()

	l.opts.Logger.Info("sequencer: deleted sequence", "id", id, "name", name)
	l.persist()
	l.opts.Events.Publish(events.Event{Kind: events.SequenceDeleted, Subject: id, Data: name})

	return true
}

// AddStep appends a step.
func (l *Library) AddStep(id string, step Step) bool {
	return l.mutate("add step", id, func(s *Sequence) bool {
		s.Steps = append(s.Steps, step)
		return true
	})
}

// RemoveStep removes the step at index.
func (l *Library) RemoveStep(id string, index int) bool {
	return l.mutate("remove step", id, func(s *Sequence) bool {
		if index < 0 || index >= len(s.Steps) {
			l.opts.Logger.Warn("sequencer: remove step: index out of range", "id", id, "index", index)
			return false
		}
		s.Steps = slices.Delete(s.Steps, index, index+1)
		return true
	})
}

// ReorderSteps moves the step at from so it ends up at index to.
func (l *Library) ReorderSteps(id string, from, to int) bool {
	return l.mutate("reorder steps", id, func(s *Sequence) bool {
		n := len(s.Steps)
		if from < 0 || from >= n || to < 0 || to >= n {
			l.opts.Logger.Warn("sequencer: reorder: index out of range", "id", id, "from", from, "to", to)
			return false
		}
		step := s.Steps[from]
		s.Steps = slices.Delete(s.Steps, from, from+1)
		s.Steps = slices.Insert(s.Steps, to, step)
		return true
	})
}

// Clear removes every sequence.
func (l *Library) Clear() {
	l.init()

	l.mu.Lock()
	n := len(l.order)
	l.order = nil
	l.seqs = make(map[string]*Sequence)
	l.mu.Unlock()

	l.opts.Logger.Info("sequencer: cleared sequences", "count", n)
	l.persist()
}

// Export returns the sequence as indented JSON.
func (l *Library) Export(id string) ([]byte, bool) {
	s, ok := l.Get(id)
	if !ok {
		l.opts.Logger.Warn("sequencer: export: not found", "id", id)
		return nil, false
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		l.opts.Logger.Warn("sequencer: export: encode failed", "id", id, "error", err)
		return nil, false
	}

	return data, true
}

// ExportAll returns every sequence as an indented JSON array.
func (l *Library) ExportAll() ([]byte, error) {
	data, err := json.MarshalIndent(l.List(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("sequencer: export all: %w", err)
	}

	return data, nil
}

// Import adds a sequence decoded from JSON. The input needs a "name" and a
// "steps" array; the ID and timestamp are regenerated.
func (l *Library) Import(data []byte) (Sequence, bool) {
	l.init()

	s, err := decodeImport(data)
	if err != nil {
		l.opts.Logger.Warn("sequencer: import: malformed sequence", "error", err)
		return Sequence{}, false
	}

	l.mu.Lock()
	s.ID = l.newIDLocked()
	s.Timestamp = l.opts.Now().UnixMilli()
	l.insertLocked(s)
	l.mu.Unlock()

	l.opts.Logger.Info("sequencer: imported sequence", "id", s.ID, "name", s.Name)
	l.persist()
	l.opts.Events.Publish(events.Event{Kind: events.SequenceImported, Subject: s.ID, Data: s.Name})

	return s.Clone(), true
}

func decodeImport(data []byte) (Sequence, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Sequence{}, err
	}

	if raw, ok := fields["name"]; !ok || string(raw) == "null" || string(raw) == `""` {
		return Sequence{}, errors.New(`missing "name"`)
	}
	raw, ok := fields["steps"]
	if !ok {
		return Sequence{}, errors.New(`missing "steps"`)
	}
	var steps []json.RawMessage
	if err := json.Unmarshal(raw, &steps); err != nil || steps == nil {
		return Sequence{}, errors.New(`"steps" must be an array`)
	}

	var s Sequence
	if err := json.Unmarshal(data, &s); err != nil {
		return Sequence{}, err
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}

	return s, nil
}

func (l *Library) mutate(op, id string, fn func(*Sequence) bool) bool {
	l.init()

	l.mu.Lock()
	s, ok := l.seqs[id]
	if !ok {
		l.mu.Unlock()
		l.opts.Logger.Warn("sequencer: "+op+": not found", "id", id)
		return false
	}
	changed := fn(s)
	name := s.Name
	l.mu.Unlock()

	if changed {
		l.persist()
		l.opts.Events.Publish(events.Event{Kind: events.SequenceUpdated, Subject: id, Data: name})
	}

	return changed
}

func (l *Library) newIDLocked() string {
	for {
		id := l.opts.IDs()
		if _, taken := l.seqs[id]; !taken {
			return id
		}
	}
}

func (l *Library) insertLocked(s Sequence) {
	l.order = append(l.order, s.ID)
	l.seqs[s.ID] = &s
}

func (l *Library) snapshotLocked() []Sequence {
	out := make([]Sequence, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.seqs[id].Clone())
	}

	return out
}

// persist writes the collection outside mu. Failures are logged only.
func (l *Library) persist() {
	if l.opts.Persister == nil {
		return
	}

	l.saveMu.Lock()
	defer l.saveMu.Unlock()

	l.mu.RLock()
	snap := l.snapshotLocked()
	l.mu.RUnlock()

	if err := l.opts.Persister.Save(context.Background(), snap); err != nil {
		l.opts.Logger.Error("sequencer: save failed", "error", err)
	}
}
