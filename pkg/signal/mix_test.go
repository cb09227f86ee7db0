package signal

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bass(v float64) Signal {
	return New(map[string]float64{"bass": v}, nil, 1)
}

func TestMixMaxScenario(t *testing.T) {
	got := Mix(Max, []Input{{Signal: bass(0.8), Weight: 1}, {Signal: bass(0.4), Weight: 0.5}})
	assert.InDelta(t, 0.8, got.Band("bass"), 1e-9)
}

func TestMixBlendScenario(t *testing.T) {
	got := Mix(Blend, []Input{{Signal: bass(0.8), Weight: 1}, {Signal: bass(0.4), Weight: 0.5}})
	assert.InDelta(t, 0.667, got.Band("bass"), 1e-3)
}

func TestMixSumClamps(t *testing.T) {
	got := Mix(Sum, []Input{{Signal: bass(0.8), Weight: 1}, {Signal: bass(0.6), Weight: 1}})
	assert.InDelta(t, 1.0, got.Band("bass"), 1e-9)

	got = Mix(Sum, []Input{{Signal: bass(0.2), Weight: 1}, {Signal: bass(0.4), Weight: 0.5}})
	assert.InDelta(t, 0.4, got.Band("bass"), 1e-9)
}

func TestMixMultiplyExcludesZeroWeight(t *testing.T) {
	got := Mix(Multiply, []Input{{Signal: bass(0.8), Weight: 1}, {Signal: bass(0.5), Weight: 0.5}, {Signal: bass(0.9), Weight: 0}})
	assert.InDelta(t, 0.2, got.Band("bass"), 1e-9)

	got = Mix(Multiply, []Input{{Signal: bass(0.8), Weight: 0}})
	assert.Zero(t, got.Band("bass"))
}

func TestMixBlendZeroWeight(t *testing.T) {
	got := Mix(Blend, []Input{{Signal: bass(0.8), Weight: 0}})
	assert.Zero(t, got.Band("bass"))
	assert.Zero(t, got.Quality())
}

func TestMixMissingBandCountsAsZero(t *testing.T) {
	a := New(map[string]float64{"bass": 0.6, "mid": 0.4}, nil, 1)
	b := New(map[string]float64{"bass": 0.2}, nil, 1)

	got := Mix(Blend, []Input{{Signal: a, Weight: 1}, {Signal: b, Weight: 1}})
	assert.Equal(t, []string{"bass", "mid"}, got.BandNames())
	assert.InDelta(t, 0.4, got.Band("bass"), 1e-9)
	assert.InDelta(t, 0.2, got.Band("mid"), 1e-9)

	got = Mix(Multiply, []Input{{Signal: a, Weight: 1}, {Signal: b, Weight: 1}})
	assert.Zero(t, got.Band("mid"))
}

func TestMixSpectrumAndQuality(t *testing.T) {
	a := New(nil, []float64{1, 0.5, 0.2}, 1)
	b := New(nil, []float64{0.5}, 0.5)

	got := Mix(Max, []Input{{Signal: a, Weight: 0.5}, {Signal: b, Weight: 1}})
	require.Len(t, got.Spectrum(), 3)
	assert.InDelta(t, 0.5, got.Spectrum()[0], 1e-9)
	assert.InDelta(t, 0.25, got.Spectrum()[1], 1e-9)
	assert.InDelta(t, 0.1, got.Spectrum()[2], 1e-9)
	assert.InDelta(t, (1*0.5+0.5*1)/1.5, got.Quality(), 1e-9)
}

func TestMixEmpty(t *testing.T) {
	for _, mode := range MixModes() {
		assert.True(t, Mix(mode, nil).IsZero(), mode)
	}
}

func TestNewClampsAndCopies(t *testing.T) {
	bands := map[string]float64{"a": 2, "b": -1, "c": math.NaN()}
	spectrum := []float64{0.5, 3}

	s := New(bands, spectrum, 7)
	bands["a"] = 0
	spectrum[0] = 0

	assert.Equal(t, map[string]float64{"a": 1, "b": 0, "c": 0}, s.Bands())
	assert.Equal(t, []float64{0.5, 1}, s.Spectrum())
	assert.Equal(t, 1.0, s.Quality())

	out := s.Bands()
	out["a"] = 0.1
	assert.Equal(t, 1.0, s.Band("a"))
}

func TestSignalJSON(t *testing.T) {
	data, err := json.Marshal(Signal{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"bands":{},"spectrum":[],"quality":0}`, string(data))

	var s Signal
	require.NoError(t, json.Unmarshal([]byte(`{"bands":{"bass":0.5},"spectrum":[0.1],"quality":0.9}`), &s))
	assert.Equal(t, 0.5, s.Band("bass"))
	assert.Equal(t, []float64{0.1}, s.Spectrum())
	assert.Equal(t, 0.9, s.Quality())
}

func TestParseMixMode(t *testing.T) {
	m, err := ParseMixMode("multiply")
	require.NoError(t, err)
	assert.Equal(t, Multiply, m)

	_, err = ParseMixMode("average")
	require.Error(t, err)
}
