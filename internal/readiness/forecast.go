package readiness

import (
	"math"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
)

// DefaultHorizonHours bounds how far ahead an ETA is searched.
const DefaultHorizonHours = 168

// ETAStatus classifies a readiness ETA.
type ETAStatus string

const (
	// ETAReady means the field already meets the threshold.
	ETAReady ETAStatus = "ready"
	// ETAWithinHorizon means the threshold is crossed inside the horizon.
	ETAWithinHorizon ETAStatus = "within_horizon"
	// ETABeyondHorizon means no crossing was found inside the horizon or
	// the forecast ran out first.
	ETABeyondHorizon ETAStatus = "beyond_horizon"
)

// ForecastInput is everything an ETA prediction needs.
type ForecastInput struct {
	Profile      domain.SoilProfile
	Start        float64 // storage at the end of history, inches
	Forecast     []domain.WeatherRow
	Tuning       Tuning
	Threshold    int
	HorizonHours int
}

// ETA is the predicted time until a field's readiness reaches a threshold.
type ETA struct {
	Status       ETAStatus  `json:"status"`
	Hours        int        `json:"hours"`
	Date         string     `json:"date,omitempty"`
	Readiness    int        `json:"readiness"`
	Threshold    int        `json:"threshold"`
	HorizonHours int        `json:"horizon_hours"`
	Trace        []DayTrace `json:"trace,omitempty"`
}

// PredictETA steps the storage model through the forecast, one day at a
// time, until readiness reaches the threshold. Crossings are interpolated
// linearly inside the crossing day. It never looks past the horizon.
func (m *Model) PredictETA(in ForecastInput) ETA {
	f := m.Factors(in.Profile)
	t := in.Tuning.sanitized()

	horizon := in.HorizonHours
	if horizon <= 0 {
		horizon = DefaultHorizonHours
	}
	threshold := int(clamp(float64(in.Threshold), 0, 100))

	storage := clamp(finiteOr(in.Start, 0), 0, f.Smax)
	prev, current := m.Score(storage, f, t)

	eta := ETA{
		Status:       ETABeyondHorizon,
		Readiness:    current,
		Threshold:    threshold,
		HorizonHours: horizon,
	}
	if current >= threshold {
		eta.Status = ETAReady
		return eta
	}

	// A rounded score reaches the threshold once the unrounded one passes
	// threshold - 0.5.
	target := float64(threshold) - 0.5
	days := (horizon + 23) / 24

	for i := 0; i < days && i < len(in.Forecast); i++ {
		row := in.Forecast[i]
		day := m.step(f, storage, row, t)
		eta.Trace = append(eta.Trace, day)

		next, _ := m.Score(day.StorageAfter, f, t)
		if next >= target {
			frac := 1.0
			if next > prev {
				frac = clamp((target-prev)/(next-prev), 0, 1)
			}
			hours := int(math.Ceil(24 * (float64(i) + frac)))
			if hours < 1 {
				hours = 1
			}
			if hours > horizon {
				return eta
			}
			eta.Status = ETAWithinHorizon
			eta.Hours = hours
			eta.Date = row.Date
			return eta
		}

		storage = day.StorageAfter
		prev = next
	}
	return eta
}
