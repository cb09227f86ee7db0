package sequencer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedAutoConfig() AutoConfig {
	return AutoConfig{
		MinDuration:  100 * ms,
		MaxDuration:  100 * ms,
		PauseBetween: 50 * ms,
		AvoidRepeats: true,
	}
}

func TestAutoAlternatesWithAvoidRepeats(t *testing.T) {
	h := newHarness(t)
	a := h.anchor(t, "A", 0)
	b := h.anchor(t, "B", 10)

	require.True(t, h.auto.Start(fixedAutoConfig()))
	assert.False(t, h.auto.Start(fixedAutoConfig()), "already running")

	h.at(40 * ms)
	assert.Empty(t, h.rec.Targets(), "first morph waits PauseBetween")

	h.run(1000*ms, 10*ms)

	targets := h.rec.Targets()
	// One morph every 150ms starting at 50ms.
	require.Len(t, targets, 7)
	for i := 1; i < len(targets); i++ {
		assert.NotEqual(t, targets[i-1], targets[i])
	}
	assert.ElementsMatch(t, []string{a, b}, []string{targets[0], targets[1]})
	assert.True(t, h.auto.IsActive())
}

func TestAutoPoolRestrictsTargets(t *testing.T) {
	h := newHarness(t)
	a := h.anchor(t, "A", 0)
	h.anchor(t, "B", 10)

	cfg := fixedAutoConfig()
	cfg.AvoidRepeats = false
	cfg.Pool = []string{a}
	require.True(t, h.auto.Start(cfg))

	h.run(600*ms, 10*ms)

	require.NotEmpty(t, h.rec.Targets())
	for _, id := range h.rec.Targets() {
		assert.Equal(t, a, id)
	}
}

func TestAutoStopsWithoutAnchors(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.auto.Start(fixedAutoConfig()))
	h.run(100*ms, 10*ms)

	assert.False(t, h.auto.IsActive())
}

func TestAutoStopsWhenAvoidRepeatsExhaustsSingleAnchor(t *testing.T) {
	h := newHarness(t)
	h.anchor(t, "A", 0)

	require.True(t, h.auto.Start(fixedAutoConfig()))
	h.run(400*ms, 10*ms)

	assert.Len(t, h.rec.Targets(), 1)
	assert.False(t, h.auto.IsActive())
}

func TestAutoStopCancelsMorph(t *testing.T) {
	h := newHarness(t)
	h.anchor(t, "A", 0)
	h.anchor(t, "B", 10)

	require.True(t, h.auto.Start(fixedAutoConfig()))
	h.run(80*ms, 10*ms)
	require.True(t, h.engine.IsActive())

	require.True(t, h.auto.Stop())
	assert.False(t, h.auto.Stop())
	assert.False(t, h.engine.IsActive())
}

func TestAutoPreemptedByForeignMorph(t *testing.T) {
	h := newHarness(t)
	a := h.anchor(t, "A", 0)
	h.anchor(t, "B", 10)

	require.True(t, h.auto.Start(fixedAutoConfig()))
	h.run(80*ms, 10*ms)

	target, _ := h.store.Get(a)
	h.engine.Start(&target, &target, time.Second, "linear", nil)
	h.at(90 * ms)

	assert.False(t, h.auto.IsActive())
}

func TestAutoRandomDurationWithinBounds(t *testing.T) {
	h := newHarness(t)
	h.anchor(t, "A", 0)
	h.anchor(t, "B", 10)

	cfg := fixedAutoConfig()
	cfg.MinDuration = 100 * ms
	cfg.MaxDuration = 300 * ms
	cfg.RandomEasing = true
	require.True(t, h.auto.Start(cfg))

	for d := 10 * ms; d <= 3000*ms; d += 10 * ms {
		h.at(d)
		if info, ok := h.engine.Info(); ok {
			assert.GreaterOrEqual(t, info.Duration, 100*ms)
			assert.LessOrEqual(t, info.Duration, 300*ms)
		}
	}
	assert.True(t, h.auto.IsActive())
}

func TestAutoConfigNormalized(t *testing.T) {
	h := newHarness(t)
	h.auto.UpdateConfig(AutoConfig{MinDuration: 500 * ms, MaxDuration: 100 * ms, PauseBetween: -time.Second})

	cfg := h.auto.Config()
	assert.Equal(t, 500*ms, cfg.MaxDuration)
	assert.Zero(t, cfg.PauseBetween)
}
