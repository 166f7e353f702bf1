package domain

import (
	"math"
	"time"
)

// TruthSource records which operation produced a StorageState.
type TruthSource string

const (
	SourceBaselineRebuild   TruthSource = "baseline-rebuild"
	SourceGlobalForceTarget TruthSource = "global-force-target"
	SourceDailyRollForward  TruthSource = "daily-roll-forward"
)

// StorageState is a field's persisted truth: the storage the next simulation
// window starts from. Every key is always encoded so a merge-write replaces
// the provenance left by the previous writer.
type StorageState struct {
	FieldID      string      `json:"field_id"`
	StorageFinal float64     `json:"storage_final"`
	AsOfDate     string      `json:"as_of_date"`
	SmaxAtSave   float64     `json:"smax_at_save"`
	Source       TruthSource `json:"source"`

	UpdatedAt    time.Time `json:"updated_at"`
	UpdatedBy    string    `json:"updated_by"`
	AdjustmentID string    `json:"adjustment_id"`
	StorageMult  float64   `json:"storage_mult"`
}

// Normalize enforces 0 <= StorageFinal <= SmaxAtSave. Non-finite storage
// collapses to zero and a non-positive capacity to the storage itself.
func (s StorageState) Normalize() StorageState {
	if !finite(s.StorageFinal) || s.StorageFinal < 0 {
		s.StorageFinal = 0
	}
	if !finite(s.SmaxAtSave) || s.SmaxAtSave <= 0 {
		s.SmaxAtSave = s.StorageFinal
	}
	if s.StorageFinal > s.SmaxAtSave {
		s.StorageFinal = s.SmaxAtSave
	}
	return s
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
