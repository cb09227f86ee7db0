package morph

import (
	"sync"
	"testing"
	"time"

	"github.com/germanamz/mmpa/pkg/anchors"
	"github.com/germanamz/mmpa/pkg/easing"
	"github.com/germanamz/mmpa/pkg/events"
	"github.com/germanamz/mmpa/pkg/paramtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Unix(1000, 0)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return c.t
}

func anchor(name string, tree paramtree.Tree) *anchors.Anchor {
	return &anchors.Anchor{ID: name, Name: name, Tree: paramtree.MustClone(tree)}
}

func newEngine(c *clock) *Engine {
	return New(Options{Now: c.Now})
}

func TestScenarioLinearHalfway(t *testing.T) {
	c := newClock()
	e := newEngine(c)
	a := anchor("A", paramtree.Tree{"level": 0})
	b := anchor("B", paramtree.Tree{"level": 10})

	require.True(t, e.Start(a, b, time.Second, "linear", nil))

	frame, ok := e.Tick(c.Advance(500 * time.Millisecond))
	require.True(t, ok)
	assert.InDelta(t, 0.5, frame.Progress, 1e-9)
	level, _ := paramtree.Number(frame.Tree, "level")
	assert.InDelta(t, 5.0, level, 1e-9)
	assert.False(t, frame.Done)

	p, ok := e.Progress()
	require.True(t, ok)
	assert.InDelta(t, 0.5, p, 1e-9)
}

func TestEndpoints(t *testing.T) {
	c := newClock()
	e := newEngine(c)
	a := anchor("A", paramtree.Tree{"x": -3, "n": map[string]any{"y": 1}})
	b := anchor("B", paramtree.Tree{"x": 7, "n": map[string]any{"y": 2}})

	e.Start(a, b, time.Second, "ease-in-out-cubic", nil)

	start, _ := e.Tick(c.Now())
	x, _ := paramtree.Number(start.Tree, "x")
	assert.InDelta(t, -3.0, x, 1e-9)

	end, _ := e.Tick(c.Advance(time.Second))
	x, _ = paramtree.Number(end.Tree, "x")
	y, _ := paramtree.Number(end.Tree, "n.y")
	assert.InDelta(t, 7.0, x, 1e-9)
	assert.InDelta(t, 2.0, y, 1e-9)
	assert.True(t, end.Done)
	assert.False(t, e.IsActive())
}

func TestDiscreteFlipsOnceAtMidpoint(t *testing.T) {
	c := newClock()
	e := newEngine(c)
	a := anchor("A", paramtree.Tree{"mode": "calm"})
	b := anchor("B", paramtree.Tree{"mode": "storm"})
	e.Start(a, b, time.Second, "linear", nil)

	flips := 0
	prev := "calm"
	for i := 0; i <= 10; i++ {
		frame, ok := e.Tick(c.Now())
		require.True(t, ok)
		mode := frame.Tree["mode"].(string)
		if mode != prev {
			flips++
			assert.GreaterOrEqual(t, frame.Progress, 0.5)
		} else if mode == "calm" {
			assert.Less(t, frame.Progress, 0.5)
		}
		prev = mode
		c.Advance(100 * time.Millisecond)
	}
	assert.Equal(t, 1, flips)
	assert.Equal(t, "storm", prev)
}

func TestProgressMonotonicAndBounded(t *testing.T) {
	for _, curve := range easing.All() {
		t.Run(curve.String(), func(t *testing.T) {
			c := newClock()
			e := newEngine(c)
			e.Start(anchor("A", paramtree.Tree{"v": 0}), anchor("B", paramtree.Tree{"v": 1}), time.Second, curve.String(), nil)

			last := -1.0
			for i := 0; i < 40; i++ {
				frame, ok := e.Tick(c.Advance(30 * time.Millisecond))
				if !ok {
					break
				}
				assert.GreaterOrEqual(t, frame.Progress, last)
				assert.GreaterOrEqual(t, frame.Progress, 0.0)
				assert.LessOrEqual(t, frame.Progress, 1.0)
				last = frame.Progress
			}
		})
	}
}

func TestClockGoingBackwardsDoesNotRewind(t *testing.T) {
	c := newClock()
	e := newEngine(c)
	e.Start(anchor("A", paramtree.Tree{"v": 0}), anchor("B", paramtree.Tree{"v": 10}), time.Second, "linear", nil)

	f1, _ := e.Tick(c.Advance(600 * time.Millisecond))
	f2, _ := e.Tick(c.Advance(-400 * time.Millisecond))

	assert.InDelta(t, f1.Progress, f2.Progress, 1e-12)
}

func TestOnCompleteFiresExactlyOnce(t *testing.T) {
	c := newClock()
	e := newEngine(c)
	calls := 0
	e.Start(anchor("A", nil), anchor("B", nil), 100*time.Millisecond, "linear", func() { calls++ })

	e.Tick(c.Advance(50 * time.Millisecond))
	assert.Equal(t, 0, calls)

	e.Tick(c.Advance(100 * time.Millisecond))
	assert.Equal(t, 1, calls)

	_, ok := e.Tick(c.Advance(100 * time.Millisecond))
	assert.False(t, ok)
	assert.Equal(t, 1, calls)
}

func TestReplacingCancelsPreviousCallback(t *testing.T) {
	c := newClock()
	e := newEngine(c)
	var fired []string

	e.Start(anchor("A", nil), anchor("B", nil), time.Second, "linear", func() { fired = append(fired, "first") })
	e.Tick(c.Advance(100 * time.Millisecond))
	e.Start(anchor("B", nil), anchor("C", nil), time.Second, "linear", func() { fired = append(fired, "second") })

	for range 20 {
		e.Tick(c.Advance(100 * time.Millisecond))
	}

	assert.Equal(t, []string{"second"}, fired)
}

func TestStopPreventsCallback(t *testing.T) {
	c := newClock()
	e := newEngine(c)
	fired := false
	e.Start(anchor("A", nil), anchor("B", nil), time.Second, "linear", func() { fired = true })
	e.Tick(c.Advance(100 * time.Millisecond))

	genBefore := e.Generation()
	e.Stop()
	e.Stop()

	assert.False(t, e.IsActive())
	assert.NotEqual(t, genBefore, e.Generation())
	_, ok := e.Progress()
	assert.False(t, ok)
	_, ok = e.Info()
	assert.False(t, ok)

	_, ok = e.Tick(c.Advance(2 * time.Second))
	assert.False(t, ok)
	assert.False(t, fired)
}

func TestZeroDurationCompletesOnFirstTick(t *testing.T) {
	c := newClock()
	e := newEngine(c)
	fired := false
	e.Start(anchor("A", paramtree.Tree{"v": 0}), anchor("B", paramtree.Tree{"v": 4}), 0, "linear", func() { fired = true })

	frame, ok := e.Tick(c.Now())
	require.True(t, ok)
	assert.True(t, frame.Done)
	assert.True(t, fired)
	v, _ := paramtree.Number(frame.Tree, "v")
	assert.InDelta(t, 4.0, v, 1e-9)
}

func TestStartRejectsNilAnchor(t *testing.T) {
	e := newEngine(newClock())

	assert.False(t, e.Start(nil, anchor("B", nil), time.Second, "linear", nil))
	assert.False(t, e.Start(anchor("A", nil), nil, time.Second, "linear", nil))
	assert.False(t, e.IsActive())
}

func TestUnknownEasingFallsBack(t *testing.T) {
	e := newEngine(newClock())
	require.True(t, e.Start(anchor("A", nil), anchor("B", nil), time.Second, "bouncy", nil))

	info, ok := e.Info()
	require.True(t, ok)
	assert.Equal(t, easing.InOutCubic, info.Easing)
	assert.Equal(t, "A", info.From)
	assert.Equal(t, "B", info.To)
	assert.Equal(t, time.Second, info.Duration)
}

func TestElapsedResumesPartWay(t *testing.T) {
	c := newClock()
	e := newEngine(c)

	_, ok := e.Begin(Request{
		From:     anchor("A", paramtree.Tree{"v": 0}),
		To:       anchor("B", paramtree.Tree{"v": 10}),
		Duration: time.Second,
		Easing:   "linear",
		Elapsed:  700 * time.Millisecond,
	})
	require.True(t, ok)

	frame, _ := e.Tick(c.Now())
	assert.InDelta(t, 0.7, frame.Progress, 1e-9)
}

func TestShapeMismatchKeepsOneSidedLeaves(t *testing.T) {
	c := newClock()
	e := newEngine(c)
	e.Start(
		anchor("A", paramtree.Tree{"shared": 0, "onlyFrom": "x"}),
		anchor("B", paramtree.Tree{"shared": 2, "onlyTo": 5}),
		time.Second, "linear", nil,
	)

	frame, _ := e.Tick(c.Advance(250 * time.Millisecond))
	assert.Equal(t, "x", frame.Tree["onlyFrom"])
	assert.Equal(t, 5.0, frame.Tree["onlyTo"])
	assert.InDelta(t, 0.5, frame.Tree["shared"].(float64), 1e-9)
}

func TestStartDoesNotAliasAnchors(t *testing.T) {
	c := newClock()
	e := newEngine(c)
	a := anchor("A", paramtree.Tree{"v": 0})
	b := anchor("B", paramtree.Tree{"v": 10})
	e.Start(a, b, time.Second, "linear", nil)

	b.Tree["v"] = 1000.0

	frame, _ := e.Tick(c.Advance(time.Second))
	assert.InDelta(t, 10.0, frame.Tree["v"].(float64), 1e-9)
}

func TestSinkAndCallbackMayReenter(t *testing.T) {
	c := newClock()
	var e *Engine
	var sinkSawActive []bool
	e = New(Options{Now: c.Now, Sink: func(Frame) {
		sinkSawActive = append(sinkSawActive, e.IsActive())
	}})

	chained := false
	e.Start(anchor("A", nil), anchor("B", nil), 10*time.Millisecond, "linear", func() {
		chained = e.Start(anchor("B", nil), anchor("C", nil), time.Second, "linear", nil)
	})
	e.Tick(c.Advance(20 * time.Millisecond))

	assert.True(t, chained)
	assert.True(t, e.IsActive())
	assert.Equal(t, []bool{false}, sinkSawActive)
}

func TestCurrentAndSetState(t *testing.T) {
	c := newClock()
	e := newEngine(c)

	_, ok := e.Current()
	assert.False(t, ok)

	var frames []Frame
	e.sink = func(f Frame) { frames = append(frames, f) }
	require.NoError(t, e.SetState(paramtree.Tree{"v": 2}, paramtree.Tree{"layout": "grid"}))

	cur, ok := e.Current()
	require.True(t, ok)
	assert.Equal(t, CurrentStateName, cur.Name)
	assert.Equal(t, 2.0, cur.Tree["v"])
	assert.Equal(t, "grid", cur.VisualState["layout"])
	require.Len(t, frames, 1)
	assert.True(t, frames[0].Done)

	require.Error(t, e.SetState(paramtree.Tree{"bad": func() {}}, nil))
}

func TestCurrentTracksLastFrame(t *testing.T) {
	c := newClock()
	e := newEngine(c)
	e.Start(anchor("A", paramtree.Tree{"v": 0}), anchor("B", paramtree.Tree{"v": 10}), time.Second, "linear", nil)
	e.Tick(c.Advance(300 * time.Millisecond))

	cur, ok := e.Current()
	require.True(t, ok)
	assert.InDelta(t, 3.0, cur.Tree["v"].(float64), 1e-9)

	frame, ok := e.Frame()
	require.True(t, ok)
	frame.Tree["v"] = 99.0
	again, _ := e.Frame()
	assert.InDelta(t, 3.0, again.Tree["v"].(float64), 1e-9)
}

func TestEventsPublished(t *testing.T) {
	c := newClock()
	bus := events.NewBus()
	sub := bus.Subscribe(8)
	defer bus.Unsubscribe(sub)

	e := New(Options{Now: c.Now, Events: bus})
	e.Start(anchor("A", nil), anchor("B", nil), 10*time.Millisecond, "linear", nil)
	e.Tick(c.Advance(time.Second))

	assert.Equal(t, events.MorphStarted, (<-sub.C).Kind)
	assert.Equal(t, events.MorphCompleted, (<-sub.C).Kind)
}
