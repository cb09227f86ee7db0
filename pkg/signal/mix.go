package signal

import "math"

// Input is one source's contribution to a mix.
type Input struct {
	Signal Signal
	Weight float64
}

// Mix combines inputs band by band over the union of band names, treating a
// missing band as 0. The spectrum is combined element-wise with the same
// mode and Quality is the weight-averaged quality.
//
// In Multiply mode zero-weight inputs are left out of the product. When no
// input has weight the product is 0.
func Mix(mode MixMode, inputs []Input) Signal {
	if len(inputs) == 0 {
		return Signal{}
	}

	totalWeight := 0.0
	quality := 0.0
	width := 0
	names := make(map[string]struct{})
	for _, in := range inputs {
		totalWeight += in.Weight
		quality += in.Signal.quality * in.Weight
		width = max(width, len(in.Signal.spectrum))
		for name := range in.Signal.bands {
			names[name] = struct{}{}
		}
	}

	bands := make(map[string]float64, len(names))
	for name := range names {
		bands[name] = combine(mode, inputs, totalWeight, func(s Signal) float64 { return s.bands[name] })
	}

	spectrum := make([]float64, width)
	for i := range spectrum {
		spectrum[i] = combine(mode, inputs, totalWeight, func(s Signal) float64 {
			if i < len(s.spectrum) {
				return s.spectrum[i]
			}
			return 0
		})
	}

	if totalWeight > 0 {
		quality /= totalWeight
	} else {
		quality = 0
	}

	return New(bands, spectrum, quality)
}

func combine(mode MixMode, inputs []Input, totalWeight float64, value func(Signal) float64) float64 {
	switch mode {
	case Max:
		out := math.Inf(-1)
		for _, in := range inputs {
			out = max(out, value(in.Signal)*in.Weight)
		}
		return out
	case Sum:
		out := 0.0
		for _, in := range inputs {
			out += value(in.Signal) * in.Weight
		}
		return min(1, out)
	case Multiply:
		out, n := 1.0, 0
		for _, in := range inputs {
			if in.Weight <= 0 {
				continue
			}
			out *= value(in.Signal) * in.Weight
			n++
		}
		if n == 0 {
			return 0
		}
		return out
	default:
		if totalWeight <= 0 {
			return 0
		}
		out := 0.0
		for _, in := range inputs {
			out += value(in.Signal) * in.Weight
		}
		return out / totalWeight
	}
}
