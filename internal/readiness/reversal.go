package readiness

import "math"

// DryCredit is the signed storage offset (inches) applied before scoring.
// Capacities below the midpoint earn a positive credit (the field reads
// drier than its raw storage), capacities above it a negative one.
func (m *Model) DryCredit(smax float64) float64 {
	p := m.params
	lean := clamp((p.RevMidpoint-smax)/p.RevSpan, -1, 1)
	return lean * (p.RevPointsMax / 100) * smax
}

// Score converts storage into readiness. It returns the unrounded score and
// the rounded integer readiness.
func (m *Model) Score(storage float64, f Factors, t Tuning) (float64, int) {
	if f.Smax <= 0 {
		return 0, 0
	}
	eff := clamp(finiteOr(storage, 0)+t.WetBias, 0, f.Smax)
	forReadiness := clamp(eff-f.DryCredit, 0, f.Smax)
	wetPct := forReadiness / f.Smax * 100
	score := clamp(100-wetPct+t.ReadinessShift, 0, 100)
	return score, int(math.Round(score))
}

// InvertReadiness returns the storage that scores exactly target for the
// given factors and tuning. Targets the reversal cannot reach resolve to the
// closest storage inside [0, Smax].
func (m *Model) InvertReadiness(target float64, f Factors, t Tuning) float64 {
	if f.Smax <= 0 {
		return 0
	}
	target = clamp(target, 0, 100)
	wetPct := clamp(100-target+t.ReadinessShift, 0, 100)
	forReadiness := wetPct / 100 * f.Smax
	eff := forReadiness + f.DryCredit
	return clamp(eff-t.WetBias, 0, f.Smax)
}
