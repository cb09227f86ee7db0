// Package signal aggregates independent, asynchronously updating sources
// into one weighted signal. Sources push frames at their own cadence; the
// Bus holds the last frame of every source and recomputes the mix whenever a
// consumer asks for it.
package signal

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
)

// Signal is an immutable frame of normalized channels. Bands are named
// values in [0,1]; Spectrum is an ordered series in the same range; Quality
// expresses how trustworthy the frame is.
type Signal struct {
	bands    map[string]float64
	spectrum []float64
	quality  float64
}

// New builds a Signal from copies of its inputs. Values are clamped to [0,1]
// and NaN becomes 0.
func New(bands map[string]float64, spectrum []float64, quality float64) Signal {
	s := Signal{quality: unit(quality)}
	if len(bands) > 0 {
		s.bands = make(map[string]float64, len(bands))
		for k, v := range bands {
			s.bands[k] = unit(v)
		}
	}
	if len(spectrum) > 0 {
		s.spectrum = make([]float64, len(spectrum))
		for i, v := range spectrum {
			s.spectrum[i] = unit(v)
		}
	}

	return s
}

// Bands returns a copy of the band map.
func (s Signal) Bands() map[string]float64 {
	if s.bands == nil {
		return map[string]float64{}
	}

	return maps.Clone(s.bands)
}

// Band returns a single band, 0 when absent.
func (s Signal) Band(name string) float64 {
	return s.bands[name]
}

// BandNames returns the band names in sorted order.
func (s Signal) BandNames() []string {
	return slices.Sorted(maps.Keys(s.bands))
}

// Spectrum returns a copy of the spectrum.
func (s Signal) Spectrum() []float64 {
	if s.spectrum == nil {
		return []float64{}
	}

	return slices.Clone(s.spectrum)
}

// Quality is the producer's confidence in the frame, in [0,1].
func (s Signal) Quality() float64 { return s.quality }

// IsZero reports whether the signal carries nothing.
func (s Signal) IsZero() bool {
	return len(s.bands) == 0 && len(s.spectrum) == 0 && s.quality == 0
}

type wireSignal struct {
	Bands    map[string]float64 `json:"bands"`
	Spectrum []float64          `json:"spectrum"`
	Quality  float64            `json:"quality"`
}

// MarshalJSON encodes the signal as {"bands","spectrum","quality"}.
func (s Signal) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireSignal{Bands: s.Bands(), Spectrum: s.Spectrum(), Quality: s.quality})
}

// UnmarshalJSON decodes a frame, clamping every value to [0,1].
func (s *Signal) UnmarshalJSON(data []byte) error {
	var w wireSignal
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = New(w.Bands, w.Spectrum, w.Quality)

	return nil
}

func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}

	return max(0, min(1, v))
}

// State is the lifecycle state of a source.
type State string

const (
	Idle         State = "idle"
	Initializing State = "initializing"
	Ready        State = "ready"
	Running      State = "running"
	Error        State = "error"
)

// MixMode selects how the bus combines weighted sources.
type MixMode string

const (
	Blend    MixMode = "blend"
	Max      MixMode = "max"
	Sum      MixMode = "sum"
	Multiply MixMode = "multiply"
)

// MixModes lists every supported mode.
func MixModes() []MixMode {
	return []MixMode{Blend, Max, Sum, Multiply}
}

// ParseMixMode resolves a mode name.
func ParseMixMode(s string) (MixMode, error) {
	m := MixMode(s)
	if !slices.Contains(MixModes(), m) {
		return "", fmt.Errorf("signal: unknown mix mode %q", s)
	}

	return m, nil
}
