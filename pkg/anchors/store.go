package anchors

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

// ErrNotFound is returned by operations that report errors (rather than a
// bool) when the anchor ID is unknown.
var ErrNotFound = errors.New("anchors: anchor not found")

// Persister loads and saves the full anchor collection. The persist package
// provides JSON file, SQLite and in-memory implementations.
type Persister interface {
	Load(ctx context.Context) ([]Anchor, error)
	Save(ctx context.Context, items []Anchor) error
}

// Options configures a Store. Every field is optional.
type Options struct {
	Persister Persister
	Events    events.Publisher
	Logger    *slog.Logger
	IDs       idgen.Generator
	Now       func() time.Time
}

// Store is a thread-safe, insertion-ordered anchor collection. The zero value
// is ready to use and keeps anchors in memory only.
type Store struct {
	mu      sync.RWMutex
	saveMu  sync.Mutex
	once    sync.Once
	opts    Options
	order   []string
	anchors map[string]*Anchor
}

// New creates a Store without loading from the persister.
func New(opts Options) *Store {
	return &Store{opts: opts}
}

// Open creates a Store and loads any persisted anchors. Anchors whose trees
// fail validation are skipped with a warning.
func Open(ctx context.Context, opts Options) (*Store, error) {
	s := New(opts)
	s.init()

	if s.opts.Persister == nil {
		return s, nil
	}

	loaded, err := s.opts.Persister.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("anchors: load: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range loaded {
		if a.ID == "" {
			s.opts.Logger.Warn("anchors: skipping stored anchor without id", "name", a.Name)
			continue
		}
		if _, dup := s.anchors[a.ID]; dup {
			s.opts.Logger.Warn("anchors: skipping duplicate stored anchor", "id", a.ID)
			continue
		}

		norm, err := a.normalize()
		if err != nil {
			s.opts.Logger.Warn("anchors: skipping invalid stored anchor", "id", a.ID, "error", err)
			continue
		}

		s.order = append(s.order, norm.ID)
		s.anchors[norm.ID] = &norm
	}

	return s, nil
}

// init ensures internal structures and defaults are in place.
func (s *Store) init() {
	s.once.Do(func() {
		s.anchors = make(map[string]*Anchor)
		if s.opts.Logger == nil {
			s.opts.Logger = slog.Default()
		}
		if s.opts.IDs == nil {
			s.opts.IDs = idgen.Prefixed("anchor_", idgen.UUIDv7())
		}
		if s.opts.Now == nil {
			s.opts.Now = time.Now
		}
		s.opts.Events = events.OrDiscard(s.opts.Events)
	})
}

// Create adds a new anchor built from n. The trees are deep-cloned; an empty
// name becomes "Anchor N". It fails only when a tree holds a value that is not
// JSON-safe.
func (s *Store) Create(n NewAnchor) (Anchor, error) {
	s.init()

	a, err := Anchor{
		Name:        n.Name,
		Description: n.Description,
		Tree:        n.Tree,
		VisualState: n.VisualState,
		Tags:        n.Tags,
		Version:     Version,
	}.normalize()
	if err != nil {
		return Anchor{}, fmt.Errorf("anchors: create: %w", err)
	}
	if a.Tree == nil {
		a.Tree = map[string]any{}
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}

	s.mu.Lock()
	a.ID = s.newIDLocked()
	a.Timestamp = s.opts.Now().UnixMilli()
	if a.Name == "" {
		a.Name = fmt.Sprintf("Anchor %d", len(s.order)+1)
	}
	s.insertLocked(a)
	s.mu.Unlock()

	s.opts.Logger.Info("anchors: created", "id", a.ID, "name", a.Name)
	s.opts.Events.Publish(events.Event{Kind: events.AnchorCreated, Subject: a.ID, Data: a.Name})
	s.persist()

	return a.Clone(), nil
}

// Update applies the allow-listed metadata fields of p. Trees are never
// changed.
func (s *Store) Update(id string, p Patch) bool {
	s.init()

	s.mu.Lock()
	a, ok := s.anchors[id]
	if !ok {
		s.mu.Unlock()
		s.opts.Logger.Warn("anchors: update: not found", "id", id)
		return false
	}
	p.apply(a)
	name := a.Name
	s.mu.Unlock()

	s.opts.Events.Publish(events.Event{Kind: events.AnchorUpdated, Subject: id, Data: name})
	s.persist()

	return true
}

// Delete removes the anchor with the given ID.
func (s *Store) Delete(id string) bool {
	s.init()

	s.mu.Lock()
	a, ok := s.anchors[id]
	if !ok {
		s.mu.Unlock()
		s.opts.Logger.Warn("anchors: delete: not found", "id", id)
		return false
	}
	delete(s.anchors, id)
	s.order = slices.DeleteFunc(s.order, func(x string) bool { return x == id })
	name := a.Name
	s.mu.Unlock()

	s.opts.Logger.Info("anchors: deleted", "id", id, "name", name)
	s.opts.Events.Publish(events.Event{Kind: events.AnchorDeleted, Subject: id, Data: name})
	s.persist()

	return true
}

// Get returns a deep copy of the anchor with the given ID.
func (s *Store) Get(id string) (Anchor, bool) {
	s.init()
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.anchors[id]
	if !ok {
		return Anchor{}, false
	}

	return a.Clone(), true
}

// List returns deep copies of all anchors in insertion order.
func (s *Store) List() []Anchor {
	s.init()
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshotLocked()
}

// Len returns the number of stored anchors.
func (s *Store) Len() int {
	s.init()
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.order)
}

// IDs returns anchor IDs in insertion order.
func (s *Store) IDs() []string {
	s.init()
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.order)
}

// Clear removes every anchor.
func (s *Store) Clear() {
	s.init()

	s.mu.Lock()
	n := len(s.order)
	s.order = nil
	s.anchors = make(map[string]*Anchor)
	s.mu.Unlock()

	s.opts.Logger.Info("anchors: cleared", "count", n)
	s.persist()
}

// ExportOne returns the anchor as indented JSON.
func (s *Store) ExportOne(id string) ([]byte, bool) {
	a, ok := s.Get(id)
	if !ok {
		s.opts.Logger.Warn("anchors: export: not found", "id", id)
		return nil, false
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		s.opts.Logger.Warn("anchors: export: encode failed", "id", id, "error", err)
		return nil, false
	}

	return data, true
}

// ExportAll returns every anchor as an indented JSON array.
func (s *Store) ExportAll() ([]byte, error) {
	all := s.List()

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("anchors: export all: %w", err)
	}

	return data, nil
}

// ImportOne adds an anchor decoded from JSON. The input must carry "id",
// "name" and "tree"; the ID and timestamp are regenerated and every other
// field is kept. Malformed input leaves the store unchanged.
func (s *Store) ImportOne(data []byte) (Anchor, bool) {
	s.init()

	a, err := decodeImport(data)
	if err != nil {
		s.opts.Logger.Warn("anchors: import: malformed anchor", "error", err)
		return Anchor{}, false
	}

	s.mu.Lock()
	a.ID = s.newIDLocked()
	a.Timestamp = s.opts.Now().UnixMilli()
	s.insertLocked(a)
	s.mu.Unlock()

	s.opts.Logger.Info("anchors: imported", "id", a.ID, "name", a.Name)
	s.opts.Events.Publish(events.Event{Kind: events.AnchorImported, Subject: a.ID, Data: a.Name})
	s.persist()

	return a.Clone(), true
}

func decodeImport(data []byte) (Anchor, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Anchor{}, err
	}

	for _, key := range []string{"id", "name", "tree"} {
		raw, ok := fields[key]
		if !ok || string(raw) == "null" || string(raw) == `""` {
			return Anchor{}, fmt.Errorf("missing %q", key)
		}
	}

	var a Anchor
	if err := json.Unmarshal(data, &a); err != nil {
		return Anchor{}, err
	}
	if a.Tree == nil {
		return Anchor{}, errors.New(`"tree" must be an object`)
	}

	return a.normalize()
}

// newIDLocked returns an ID not yet used in the store. Must be called with mu
// held.
func (s *Store) newIDLocked() string {
	for {
		id := s.opts.IDs()
		if _, taken := s.anchors[id]; !taken {
			return id
		}
	}
}

// insertLocked appends a. Must be called with mu held.
func (s *Store) insertLocked(a Anchor) {
	s.order = append(s.order, a.ID)
	s.anchors[a.ID] = &a
}

func (s *Store) snapshotLocked() []Anchor {
	out := make([]Anchor, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.anchors[id].Clone())
	}

	return out
}

// persist writes the current collection through the persister. It runs
// outside mu; saveMu keeps concurrent saves in mutation order. Failures are
// logged, never returned.
func (s *Store) persist() {
	if s.opts.Persister == nil {
		return
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	snap := s.snapshotLocked()
	s.mu.RUnlock()

	if err := s.opts.Persister.Save(context.Background(), snap); err != nil {
		s.opts.Logger.Error("anchors: save failed", "error", err)
	}
}
