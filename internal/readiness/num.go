package readiness

import "math"

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteOr(v, def float64) float64 {
	if isFinite(v) {
		return v
	}
	return def
}

// norm maps v from [lo,hi] onto [0,1].
func norm(v, lo, hi float64) float64 {
	return clamp((v-lo)/(hi-lo), 0, 1)
}

// optional dereferences an optional input, rejecting nil and non-finite values.
func optional(p *float64) (float64, bool) {
	if p == nil || !isFinite(*p) {
		return 0, false
	}
	return *p, true
}
