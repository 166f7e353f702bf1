package domain

import "math"

// Location is a WGS-84 latitude/longitude pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Field is a tracked farm field. Identity is immutable; soil parameters are
// operator-editable.
type Field struct {
	ID            string   `json:"id"`
	FarmID        string   `json:"farm_id"`
	Name          string   `json:"name,omitempty"`
	SoilWetness   float64  `json:"soil_wetness"`   // 0–100, higher holds more water
	DrainageIndex float64  `json:"drainage_index"` // 0–100, higher drains worse
	TillableAcres float64  `json:"tillable_acres,omitempty"`
	Location      Location `json:"location"`
}

// SoilProfile is the normalized soil input of the storage model.
type SoilProfile struct {
	SoilHold  float64 `json:"soil_hold"`
	DrainPoor float64 `json:"drain_poor"`
}

// Profile converts the operator-facing 0–100 parameters into [0,1] ratios.
// Out-of-range values are clamped; non-finite values read as the midpoint.
func (f Field) Profile() SoilProfile {
	return SoilProfile{
		SoilHold:  unitRatio(f.SoilWetness),
		DrainPoor: unitRatio(f.DrainageIndex),
	}
}

func unitRatio(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0.5
	}
	r := v / 100
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}
