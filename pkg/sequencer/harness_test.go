package sequencer

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/germanamz/mmpa/pkg/anchors"
	"github.com/germanamz/mmpa/pkg/events"
	"github.com/germanamz/mmpa/pkg/idgen"
	"github.com/germanamz/mmpa/pkg/morph"
	"github.com/germanamz/mmpa/pkg/paramtree"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// recorder records the target of every morph the player or auto mode starts.
type recorder struct {
	*morph.Engine
	mu      sync.Mutex
	targets []string
}

func (r *recorder) Begin(req morph.Request) (uint64, bool) {
	r.mu.Lock()
	r.targets = append(r.targets, req.To.ID)
	r.mu.Unlock()

	return r.Engine.Begin(req)
}

func (r *recorder) Targets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.targets...)
}

type harness struct {
	t0     time.Time
	clock  *clock
	store  *anchors.Store
	lib    *Library
	engine *morph.Engine
	rec    *recorder
	bus    *events.Bus
	player *Player
	auto   *Auto
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	t0 := time.Unix(10_000, 0)
	c := &clock{t: t0}
	bus := events.NewBus()
	engine := morph.New(morph.Options{Now: c.Now})
	rec := &recorder{Engine: engine}
	store := anchors.New(anchors.Options{IDs: idgen.Sequential("anchor"), Now: c.Now})
	lib := NewLibrary(LibraryOptions{IDs: idgen.Sequential("seq"), Now: c.Now})
	opts := PlayerOptions{Now: c.Now, Events: bus, Rand: rand.New(rand.NewPCG(1, 2))}

	return &harness{
		t0:     t0,
		clock:  c,
		store:  store,
		lib:    lib,
		engine: engine,
		rec:    rec,
		bus:    bus,
		player: NewPlayer(lib, store, rec, opts),
		auto:   NewAuto(store, rec, opts),
	}
}

func (h *harness) anchor(t *testing.T, name string, level float64) string {
	t.Helper()

	a, err := h.store.Create(anchors.NewAnchor{Name: name, Tree: paramtree.Tree{"level": level}})
	require.NoError(t, err)

	return a.ID
}

// at moves the clock to t0+d and ticks player, auto and morph engine in the
// same order the composition root does.
func (h *harness) at(d time.Duration) {
	now := h.t0.Add(d)
	h.clock.Set(now)
	h.player.Tick(now)
	h.auto.Tick(now)
	h.engine.Tick(now)
}

// run ticks every step from the current clock up to t0+until.
func (h *harness) run(until, step time.Duration) {
	for d := h.clock.Now().Sub(h.t0) + step; d <= until; d += step {
		h.at(d)
	}
}

func (h *harness) level(t *testing.T) float64 {
	t.Helper()

	frame, ok := h.engine.Frame()
	require.True(t, ok)
	v, ok := paramtree.Number(frame.Tree, "level")
	require.True(t, ok)

	return v
}

func steps(d, pause time.Duration, ids ...string) []Step {
	out := make([]Step, 0, len(ids))
	for _, id := range ids {
		out = append(out, Step{AnchorID: id, Duration: d, Easing: "linear", PauseAfter: pause})
	}

	return out
}
