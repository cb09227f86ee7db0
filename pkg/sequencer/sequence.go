// Package sequencer composes anchors into timed sequences and plays them back
// through a morph engine. Library stores sequences, Player is the playback
// transport (play, pause, resume, skip, loop, shuffle) and Auto is the
// generative auto-morph mode that wanders between random anchors.
//
// Player and Auto are tick-driven: they never start goroutines or timers.
// The owner calls Tick(now) on them before ticking the morph engine so a
// morph started on a step boundary renders in the same frame.
package sequencer

import (
	"encoding/json"
	"math"
	"slices"
	"time"
)

// Step is one morph of a sequence: morph to AnchorID over Duration, then hold
// for PauseAfter.
type Step struct {
	AnchorID   string
	Duration   time.Duration
	Easing     string
	PauseAfter time.Duration
}

type stepJSON struct {
	AnchorID   string  `json:"anchorId"`
	Duration   float64 `json:"duration"`
	Easing     string  `json:"easing,omitempty"`
	PauseAfter float64 `json:"pauseAfter"`
}

// MarshalJSON encodes durations as milliseconds.
func (s Step) MarshalJSON() ([]byte, error) {
	return json.Marshal(stepJSON{
		AnchorID:   s.AnchorID,
		Duration:   toMillis(s.Duration),
		Easing:     s.Easing,
		PauseAfter: toMillis(s.PauseAfter),
	})
}

// UnmarshalJSON decodes millisecond durations. Negative values become zero.
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw stepJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Step{
		AnchorID:   raw.AnchorID,
		Duration:   Millis(raw.Duration),
		Easing:     raw.Easing,
		PauseAfter: Millis(raw.PauseAfter),
	}

	return nil
}

// Total is the time the step occupies in playback.
func (s Step) Total() time.Duration {
	return addDurations(s.Duration, s.PauseAfter)
}

// addDurations adds non-negative durations, saturating at the maximum.
func addDurations(a, b time.Duration) time.Duration {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}

	return a + b
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Millis converts milliseconds to a Duration. Negative and NaN values become
// zero; values beyond the range of Duration saturate at the maximum.
func Millis(ms float64) time.Duration {
	if ms <= 0 || math.IsNaN(ms) {
		return 0
	}
	if ns := ms * float64(time.Millisecond); ns < math.MaxInt64 {
		return time.Duration(ns)
	}

	return math.MaxInt64
}

// Sequence is an ordered list of steps.
type Sequence struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Steps       []Step   `json:"steps"`
	Loop        bool     `json:"loop"`
	Timestamp   int64    `json:"timestamp"`
	Tags        []string `json:"tags"`
}

// Clone returns a deep copy of s.
func (s Sequence) Clone() Sequence {
	cp := s
	cp.Steps = slices.Clone(s.Steps)
	cp.Tags = slices.Clone(s.Tags)

	return cp
}

// Duration is the length of one traversal, pauses included.
func (s Sequence) Duration() time.Duration {
	var total time.Duration
	for _, st := range s.Steps {
		total = addDurations(total, st.Total())
	}

	return total
}

// NewSequence holds the caller-supplied fields for Library.Create.
type NewSequence struct {
	Name        string
	Description string
	Steps       []Step
	Loop        bool
	Tags        []string
}

// Patch describes a partial sequence update. Nil fields are left unchanged.
type Patch struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Steps       *[]Step   `json:"steps,omitempty"`
	Loop        *bool     `json:"loop,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
}

func (p Patch) apply(s *Sequence) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.Steps != nil {
		s.Steps = slices.Clone(*p.Steps)
	}
	if p.Loop != nil {
		s.Loop = *p.Loop
	}
	if p.Tags != nil {
		s.Tags = slices.Clone(*p.Tags)
	}
}
