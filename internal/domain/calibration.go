package domain

import (
	"math"
	"time"
)

// Feel is the operator's field-level observation behind a calibration.
type Feel string

const (
	FeelWet Feel = "wet"
	FeelDry Feel = "dry"
)

// Valid reports whether f is a known feel.
func (f Feel) Valid() bool {
	return f == FeelWet || f == FeelDry
}

// OpKey identifies a field operation with its own readiness threshold.
type OpKey string

const (
	OpSpringTillage OpKey = "spring_tillage"
	OpPlanting      OpKey = "planting"
	OpSpraying      OpKey = "spraying"
	OpHarvest       OpKey = "harvest"
	OpFallTillage   OpKey = "fall_tillage"
)

// defaultThresholds apply when the threshold document is missing or malformed.
var defaultThresholds = map[OpKey]int{
	OpSpringTillage: 70,
	OpPlanting:      75,
	OpSpraying:      60,
	OpHarvest:       80,
	OpFallTillage:   65,
}

// OpKeys lists the known operations in display order.
func OpKeys() []OpKey {
	return []OpKey{OpSpringTillage, OpPlanting, OpSpraying, OpHarvest, OpFallTillage}
}

// Valid reports whether k is a known operation.
func (k OpKey) Valid() bool {
	_, ok := defaultThresholds[k]
	return ok
}

// DefaultThreshold returns the built-in threshold for k, or 70 for unknown keys.
func DefaultThreshold(k OpKey) int {
	if v, ok := defaultThresholds[k]; ok {
		return v
	}
	return 70
}

// CalibrationAdjustment is the audit record of one applied global calibration.
type CalibrationAdjustment struct {
	ID              string `json:"id"`
	Feel            Feel   `json:"feel"`
	AnchorReadiness int    `json:"anchor_readiness"`
	TargetReadiness int    `json:"target_readiness"`

	// AchievedReadiness is what the reference field reads after the forced
	// storage. It differs from TargetReadiness when the target lies outside
	// the range the field's capacity can express.
	AchievedReadiness int `json:"achieved_readiness"`

	Delta         int       `json:"delta"`
	StorageMult   float64   `json:"storage_mult"`
	ForcedStorage float64   `json:"forced_storage"`
	RefFieldID    string    `json:"ref_field_id"`
	OpKey         OpKey     `json:"op_key"`
	Global        bool      `json:"global"`
	FieldsUpdated int       `json:"fields_updated"`
	FieldsFailed  int       `json:"fields_failed"`
	AppliedBy     string    `json:"applied_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Tuning multiplier bounds.
const (
	TuningMultMin = 0.30
	TuningMultMax = 3.00
)

// GlobalTuning is the fleet-wide model tuning document.
type GlobalTuning struct {
	DryLossMult float64 `json:"dry_loss_mult"`
	RainEffMult float64 `json:"rain_eff_mult"`

	// Calibration bias terms applied after the physical simulation.
	WetBias        float64 `json:"wet_bias"`
	ReadinessShift float64 `json:"readiness_shift"`

	LastAdjustmentID string    `json:"last_adjustment_id,omitempty"`
	LastAdjustedAt   time.Time `json:"last_adjusted_at,omitempty"`
	Adjustments      int       `json:"adjustments"`
}

// DefaultTuning returns neutral multipliers and no bias.
func DefaultTuning() GlobalTuning {
	return GlobalTuning{DryLossMult: 1, RainEffMult: 1}
}

// Sanitize replaces missing or non-finite multipliers with 1.0, clamps them
// into [TuningMultMin, TuningMultMax], and zeroes non-finite bias terms.
func (g GlobalTuning) Sanitize() GlobalTuning {
	g.DryLossMult = sanitizeMult(g.DryLossMult)
	g.RainEffMult = sanitizeMult(g.RainEffMult)
	if !finite(g.WetBias) {
		g.WetBias = 0
	}
	if !finite(g.ReadinessShift) {
		g.ReadinessShift = 0
	}
	return g
}

func sanitizeMult(v float64) float64 {
	if !finite(v) || v <= 0 {
		return 1
	}
	return math.Min(math.Max(v, TuningMultMin), TuningMultMax)
}

// DefaultCooldownHours is the lock window after a global calibration.
const DefaultCooldownHours = 72

// CooldownState is the calibration lock document.
type CooldownState struct {
	LastApplied   time.Time `json:"last_applied,omitempty"`
	NextAllowed   time.Time `json:"next_allowed,omitempty"`
	CooldownHours float64   `json:"cooldown_hours"`
}

// Locked reports whether a calibration at now falls inside the cooldown window.
func (c CooldownState) Locked(now time.Time) bool {
	return !c.NextAllowed.IsZero() && now.Before(c.NextAllowed)
}
