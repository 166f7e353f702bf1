package readiness

// Params holds the policy constants of the storage model. They are
// calibrated heuristics, not physical laws, and may be overridden per
// deployment. The zero value is not usable; start from DefaultParams.
type Params struct {
	// Capacity.
	SmaxMin   float64 // inches
	SmaxMax   float64 // inches
	InfilSpan float64 // InfilMult range around 1.0 driven by poor drainage

	// Drying multiplier spans around 1.0.
	DrySpanDrain float64
	DrySpanHold  float64

	// LossScale converts unit drying power into inches per day.
	LossScale float64
	// PowerMax caps the unmultiplied drying power.
	PowerMax float64

	// Readiness reversal: the signed dry credit pivots on RevMidpoint inches
	// and reaches RevPointsMax points at RevSpan inches away from it.
	RevMidpoint  float64
	RevSpan      float64
	RevPointsMax float64

	// Drying power weights (sum to 1.0).
	WeightTemp  float64
	WeightWind  float64
	WeightRH    float64
	WeightSolar float64

	// Light-influence nudges, applied around the midpoint of each range.
	NudgeVPD          float64
	NudgeCloud        float64
	NudgeET0          float64
	NudgeSoilMoisture float64

	// Normalization ranges.
	TempMinF        float64
	TempMaxF        float64
	WindMaxMph      float64
	SolarMaxWm2     float64
	VPDMaxKPa       float64
	ET0MaxIn        float64
	SoilMoistureMax float64

	// Baseline seed as a fraction of Smax: BaselineFrac + BaselineHoldFrac*SoilHold.
	BaselineFrac     float64
	BaselineHoldFrac float64

	// Substitutes for missing or non-finite core weather inputs.
	DefaultTempF    float64
	DefaultWindMph  float64
	DefaultRHPct    float64
	DefaultSolarWm2 float64
}

// DefaultParams returns the production model constants.
func DefaultParams() Params {
	return Params{
		SmaxMin:   3.0,
		SmaxMax:   5.0,
		InfilSpan: 0.30,

		DrySpanDrain: 0.30,
		DrySpanHold:  0.20,

		LossScale: 0.30,
		PowerMax:  1.5,

		RevMidpoint:  4.0,
		RevSpan:      1.0,
		RevPointsMax: 20,

		WeightTemp:  0.35,
		WeightWind:  0.15,
		WeightRH:    0.25,
		WeightSolar: 0.25,

		NudgeVPD:          0.10,
		NudgeCloud:        0.08,
		NudgeET0:          0.10,
		NudgeSoilMoisture: 0.08,

		TempMinF:        32,
		TempMaxF:        90,
		WindMaxMph:      20,
		SolarMaxWm2:     300,
		VPDMaxKPa:       2.5,
		ET0MaxIn:        0.30,
		SoilMoistureMax: 0.50,

		BaselineFrac:     0.40,
		BaselineHoldFrac: 0.20,

		DefaultTempF:    55,
		DefaultWindMph:  5,
		DefaultRHPct:    70,
		DefaultSolarWm2: 150,
	}
}

// valid reports whether p can drive the model without degenerate arithmetic.
func (p Params) valid() bool {
	return p.SmaxMin > 0 &&
		p.SmaxMax >= p.SmaxMin &&
		p.LossScale >= 0 &&
		p.RevSpan > 0 &&
		p.TempMaxF > p.TempMinF &&
		p.WindMaxMph > 0 &&
		p.SolarMaxWm2 > 0 &&
		p.VPDMaxKPa > 0 &&
		p.ET0MaxIn > 0 &&
		p.SoilMoistureMax > 0
}
