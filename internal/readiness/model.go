// Package readiness implements the field storage model: a daily soil water
// balance driven by weather rows, the readiness reversal that turns storage
// into a 0–100 score, and the bounded ETA forecaster built on top of it.
//
// Every function here is pure. Identical inputs always produce identical
// runs, so per-field simulations can run concurrently without coordination.
package readiness

import (
	"math"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
)

// SeedSource records where a simulation's starting storage came from.
type SeedSource string

const (
	SeedTruth    SeedSource = "truth"
	SeedBaseline SeedSource = "baseline"
)

// Tuning carries the fleet-wide multipliers and calibration bias terms.
type Tuning struct {
	DryLossMult    float64 `json:"dry_loss_mult"`
	RainEffMult    float64 `json:"rain_eff_mult"`
	WetBias        float64 `json:"wet_bias"`
	ReadinessShift float64 `json:"readiness_shift"`
}

// TuningFrom extracts model tuning from the persisted global document.
func TuningFrom(g domain.GlobalTuning) Tuning {
	g = g.Sanitize()
	return Tuning{
		DryLossMult:    g.DryLossMult,
		RainEffMult:    g.RainEffMult,
		WetBias:        g.WetBias,
		ReadinessShift: g.ReadinessShift,
	}
}

// BaselineTuning keeps the learned drying multiplier and drops everything a
// calibration may have pushed onto the fleet.
func BaselineTuning(g domain.GlobalTuning) Tuning {
	g = g.Sanitize()
	return Tuning{DryLossMult: g.DryLossMult, RainEffMult: 1}
}

func (t Tuning) sanitized() Tuning {
	return TuningFrom(domain.GlobalTuning{
		DryLossMult:    t.DryLossMult,
		RainEffMult:    t.RainEffMult,
		WetBias:        t.WetBias,
		ReadinessShift: t.ReadinessShift,
	})
}

// Factors are the per-field constants derived from the soil profile.
type Factors struct {
	Smax      float64 `json:"smax"`
	SmaxBase  float64 `json:"smax_base"`
	InfilMult float64 `json:"infil_mult"`
	DryMult   float64 `json:"dry_mult"`
	SoilHold  float64 `json:"soil_hold"`
	DrainPoor float64 `json:"drain_poor"`
	DryCredit float64 `json:"dry_credit"`
}

// Seed is the storage a simulation window starts from. Rows dated on or
// before AsOfDate are already reflected in Storage and are skipped.
type Seed struct {
	Storage  float64    `json:"storage"`
	AsOfDate string     `json:"as_of_date,omitempty"`
	Source   SeedSource `json:"source"`
}

// Input is everything one simulation needs.
type Input struct {
	FieldID string
	Profile domain.SoilProfile
	Rows    []domain.WeatherRow
	Seed    Seed
	Tuning  Tuning
}

// DayTrace explains one simulated day.
type DayTrace struct {
	Date          string  `json:"date"`
	RainIn        float64 `json:"rain_in"`
	RainAdded     float64 `json:"rain_added"`
	DryingPower   float64 `json:"drying_power"`
	Loss          float64 `json:"loss"`
	StorageBefore float64 `json:"storage_before"`
	StorageAfter  float64 `json:"storage_after"`
	Readiness     int     `json:"readiness"`
}

// Run is the result of simulating one field.
type Run struct {
	FieldID      string              `json:"field_id"`
	SeedStorage  float64             `json:"seed_storage"`
	SeedSource   SeedSource          `json:"seed_source"`
	StorageFinal float64             `json:"storage_final"`
	AsOfDate     string              `json:"as_of_date,omitempty"`
	Readiness    float64             `json:"readiness"`
	ReadinessR   int                 `json:"readiness_r"`
	WetnessR     int                 `json:"wetness_r"`
	Factors      Factors             `json:"factors"`
	Tuning       Tuning              `json:"tuning"`
	Rows         []domain.WeatherRow `json:"rows,omitempty"`
	Trace        []DayTrace          `json:"trace,omitempty"`
}

// Model runs the storage simulation with a fixed parameter set.
type Model struct {
	params Params
}

// NewModel creates a Model. Invalid parameters fall back to DefaultParams.
func NewModel(p Params) *Model {
	if !p.valid() {
		p = DefaultParams()
	}
	return &Model{params: p}
}

// Params returns the model constants.
func (m *Model) Params() Params {
	return m.params
}

// Factors derives capacity and multipliers from a soil profile.
func (m *Model) Factors(profile domain.SoilProfile) Factors {
	p := m.params
	hold := clamp(profile.SoilHold, 0, 1)
	drain := clamp(profile.DrainPoor, 0, 1)

	smaxBase := p.SmaxMin + (p.SmaxMax-p.SmaxMin)*(0.5*hold+0.5*drain)
	infil := 1 + p.InfilSpan*(drain-0.5)
	smax := clamp(smaxBase*infil, p.SmaxMin, p.SmaxMax)
	dry := clamp(1+p.DrySpanDrain*(0.5-drain)-p.DrySpanHold*(hold-0.5), 0.5, 1.5)

	return Factors{
		Smax:      smax,
		SmaxBase:  smaxBase,
		InfilMult: infil,
		DryMult:   dry,
		SoilHold:  hold,
		DrainPoor: drain,
		DryCredit: m.DryCredit(smax),
	}
}

// BaselineSeed is the heuristic starting storage when no truth exists.
func (m *Model) BaselineSeed(profile domain.SoilProfile) Seed {
	f := m.Factors(profile)
	frac := clamp(m.params.BaselineFrac+m.params.BaselineHoldFrac*f.SoilHold, 0, 1)
	return Seed{Storage: frac * f.Smax, Source: SeedBaseline}
}

// SeedFrom returns the persisted truth as a seed, or the baseline seed when
// no truth exists.
func (m *Model) SeedFrom(profile domain.SoilProfile, state *domain.StorageState) Seed {
	if state == nil {
		return m.BaselineSeed(profile)
	}
	s := state.Normalize()
	return Seed{Storage: s.StorageFinal, AsOfDate: s.AsOfDate, Source: SeedTruth}
}

// Simulate runs the daily water balance over in.Rows and scores the result.
func (m *Model) Simulate(in Input) Run {
	f := m.Factors(in.Profile)
	t := in.Tuning.sanitized()

	seed := in.Seed
	if !isFinite(seed.Storage) {
		seed = m.BaselineSeed(in.Profile)
	}
	storage := clamp(seed.Storage, 0, f.Smax)

	run := Run{
		FieldID:     in.FieldID,
		SeedStorage: storage,
		SeedSource:  seed.Source,
		AsOfDate:    seed.AsOfDate,
		Factors:     f,
		Tuning:      t,
	}

	for _, row := range in.Rows {
		if seed.AsOfDate != "" && row.Date != "" && row.Date <= seed.AsOfDate {
			continue
		}
		day := m.step(f, storage, row, t)
		storage = day.StorageAfter
		if row.Date != "" {
			run.AsOfDate = row.Date
		}
		run.Rows = append(run.Rows, row)
		run.Trace = append(run.Trace, day)
	}

	run.StorageFinal = storage
	run.Readiness, run.ReadinessR = m.Score(storage, f, t)
	run.WetnessR = 100 - run.ReadinessR
	return run
}

// Step advances storage by one weather row.
func (m *Model) Step(f Factors, before float64, row domain.WeatherRow, t Tuning) DayTrace {
	return m.step(f, clamp(before, 0, f.Smax), row, t.sanitized())
}

func (m *Model) step(f Factors, before float64, row domain.WeatherRow, t Tuning) DayTrace {
	rain := math.Max(finiteOr(row.RainIn, 0), 0)
	rainAdded := math.Min(rain*f.InfilMult*t.RainEffMult, f.Smax-before)

	power := m.DryingPower(row, f)
	loss := math.Min(power*t.DryLossMult*m.params.LossScale, before+rainAdded)

	after := clamp(before+rainAdded-loss, 0, f.Smax)
	_, r := m.Score(after, f, t)

	return DayTrace{
		Date:          row.Date,
		RainIn:        rain,
		RainAdded:     rainAdded,
		DryingPower:   power,
		Loss:          loss,
		StorageBefore: before,
		StorageAfter:  after,
		Readiness:     r,
	}
}

// DryingPower is the normalized evaporative demand of one day, scaled by
// the field's drying multiplier.
func (m *Model) DryingPower(row domain.WeatherRow, f Factors) float64 {
	p := m.params

	temp := norm(finiteOr(row.TempF, p.DefaultTempF), p.TempMinF, p.TempMaxF)
	wind := norm(finiteOr(row.WindMph, p.DefaultWindMph), 0, p.WindMaxMph)
	dryAir := 1 - norm(finiteOr(row.RHPct, p.DefaultRHPct), 0, 100)
	solar := norm(finiteOr(row.SolarWm2, p.DefaultSolarWm2), 0, p.SolarMaxWm2)

	power := p.WeightTemp*temp + p.WeightWind*wind + p.WeightRH*dryAir + p.WeightSolar*solar

	if v, ok := optional(row.VPDKPa); ok {
		power += p.NudgeVPD * (norm(v, 0, p.VPDMaxKPa) - 0.5)
	}
	if v, ok := optional(row.CloudPct); ok {
		power -= p.NudgeCloud * (norm(v, 0, 100) - 0.5)
	}
	if v, ok := optional(row.ET0In); ok {
		power += p.NudgeET0 * (norm(v, 0, p.ET0MaxIn) - 0.5)
	}
	if v, ok := optional(row.SoilMoisture); ok {
		power -= p.NudgeSoilMoisture * (norm(v, 0, p.SoilMoistureMax) - 0.5)
	}

	return clamp(power, 0, p.PowerMax) * f.DryMult
}
