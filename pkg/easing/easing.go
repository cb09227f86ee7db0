// Package easing provides the fixed set of easing curves used to remap linear
// morph progress. Curves are a closed enum: every Curve maps [0,1] to [0,1]
// through a pure function, and inputs outside [0,1] are clamped first.
package easing

import (
	"math"
	"strings"
)

// Curve identifies an easing function.
type Curve int

const (
	Linear Curve = iota
	InCubic
	OutCubic
	InOutCubic
	InOutQuad
	InOutSine
)

// Default is the curve used when a name cannot be resolved.
const Default = InOutCubic

var names = [...]string{
	Linear:     "linear",
	InCubic:    "ease-in-cubic",
	OutCubic:   "ease-out-cubic",
	InOutCubic: "ease-in-out-cubic",
	InOutQuad:  "ease-in-out-quad",
	InOutSine:  "ease-in-out-sine",
}

// legacy camelCase names as stored by older exports.
var aliases = map[string]Curve{
	"easeincubic":    InCubic,
	"easeoutcubic":   OutCubic,
	"easeinoutcubic": InOutCubic,
	"easeinoutquad":  InOutQuad,
	"easeinoutsine":  InOutSine,
}

// All returns every curve in declaration order.
func All() []Curve {
	return []Curve{Linear, InCubic, OutCubic, InOutCubic, InOutQuad, InOutSine}
}

// String returns the canonical kebab-case name.
func (c Curve) String() string {
	if c < 0 || int(c) >= len(names) {
		return names[Default]
	}

	return names[c]
}

// Parse resolves a curve by name. Canonical kebab-case names and the legacy
// camelCase names ("easeInOutCubic") are accepted, case-insensitively.
func Parse(name string) (Curve, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range names {
		if s == n {
			return Curve(i), true
		}
	}
	if c, ok := aliases[strings.ReplaceAll(n, "-", "")]; ok {
		return c, true
	}

	return Default, false
}

// Lookup is Parse without the found flag: unknown names resolve to Default.
func Lookup(name string) Curve {
	c, _ := Parse(name)
	return c
}

// Apply evaluates the curve at t. t is clamped to [0,1].
func (c Curve) Apply(t float64) float64 {
	t = clamp01(t)

	switch c {
	case Linear:
		return t
	case InCubic:
		return t * t * t
	case OutCubic:
		return 1 - math.Pow(1-t, 3)
	case InOutQuad:
		if t < 0.5 {
			return 2 * t * t
		}
		return 1 - math.Pow(-2*t+2, 2)/2
	case InOutSine:
		return clamp01(-(math.Cos(math.Pi*t) - 1) / 2)
	default:
		if t < 0.5 {
			return 4 * t * t * t
		}
		return 1 - math.Pow(-2*t+2, 3)/2
	}
}

// MarshalText encodes the curve as its canonical name.
func (c Curve) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a curve name; unknown names decode to Default.
func (c *Curve) UnmarshalText(b []byte) error {
	*c = Lookup(string(b))
	return nil
}

func clamp01(t float64) float64 {
	switch {
	case math.IsNaN(t), t <= 0:
		return 0
	case t >= 1:
		return 1
	default:
		return t
	}
}
