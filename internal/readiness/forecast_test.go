package readiness

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
)

func TestPredictETA_AlreadyReady(t *testing.T) {
	m := NewModel(DefaultParams())
	eta := m.PredictETA(ForecastInput{
		Profile:   midpointProfile(),
		Start:     0.5,
		Forecast:  rowsFrom(t, testStartDate, domain.WeatherRow{RainIn: 3}),
		Threshold: 70,
	})
	assert.Equal(t, ETAReady, eta.Status)
	assert.Equal(t, 0, eta.Hours)
	assert.Equal(t, 88, eta.Readiness)
	assert.Empty(t, eta.Trace, "no simulation when already ready")
}

func TestPredictETA_WeekOfDrying(t *testing.T) {
	m := NewModel(DefaultParams())
	forecast := rowsFrom(t, testStartDate, repeat(steadyDryingRow(), 7)...)

	eta := m.PredictETA(ForecastInput{
		Profile:   exampleProfile(),
		Start:     2.0,
		Forecast:  forecast,
		Threshold: 70,
	})
	require.Equal(t, ETAWithinHorizon, eta.Status)
	assert.Equal(t, 92, eta.Hours)
	assert.Equal(t, forecast[3].Date, eta.Date)
	assert.Equal(t, 50, eta.Readiness)
	assert.Equal(t, DefaultHorizonHours, eta.HorizonHours)
	assert.Len(t, eta.Trace, 4)

	again := m.PredictETA(ForecastInput{Profile: exampleProfile(), Start: 2.0, Forecast: forecast, Threshold: 70})
	assert.Equal(t, eta, again)
}

func TestPredictETA_BeyondHorizonWhenRaining(t *testing.T) {
	m := NewModel(DefaultParams())
	wet := domain.WeatherRow{RainIn: 0.8, TempF: 50, WindMph: 4, RHPct: 95, SolarWm2: 40}

	eta := m.PredictETA(ForecastInput{
		Profile:   exampleProfile(),
		Start:     2.0,
		Forecast:  rowsFrom(t, testStartDate, repeat(wet, 7)...),
		Threshold: 70,
	})
	assert.Equal(t, ETABeyondHorizon, eta.Status)
	assert.Equal(t, 0, eta.Hours)
	assert.Len(t, eta.Trace, 7)
}

func TestPredictETA_NeverExtrapolatesPastForecast(t *testing.T) {
	m := NewModel(DefaultParams())
	eta := m.PredictETA(ForecastInput{
		Profile:   exampleProfile(),
		Start:     2.0,
		Forecast:  rowsFrom(t, testStartDate, repeat(steadyDryingRow(), 2)...),
		Threshold: 70,
	})
	assert.Equal(t, ETABeyondHorizon, eta.Status)
	assert.Len(t, eta.Trace, 2)
}

func TestPredictETA_RespectsHorizon(t *testing.T) {
	m := NewModel(DefaultParams())
	eta := m.PredictETA(ForecastInput{
		Profile:      exampleProfile(),
		Start:        2.0,
		Forecast:     rowsFrom(t, testStartDate, repeat(steadyDryingRow(), 7)...),
		Threshold:    70,
		HorizonHours: 48,
	})
	assert.Equal(t, ETABeyondHorizon, eta.Status)
	assert.Len(t, eta.Trace, 2)
	assert.Equal(t, 48, eta.HorizonHours)
}

func TestPredictETA_DrierNeverLater(t *testing.T) {
	m := NewModel(DefaultParams())

	hoursOf := func(e ETA) float64 {
		if e.Status == ETABeyondHorizon {
			return math.Inf(1)
		}
		return float64(e.Hours)
	}

	pattern := []float64{0.1, 0, 0.35, 0, 0.05, 0.2, 0}
	scales := []float64{0, 0.25, 0.5, 1, 2, 4}

	for _, threshold := range []int{60, 70, 80, 90} {
		prev := -1.0
		for _, scale := range scales {
			rows := make([]domain.WeatherRow, len(pattern))
			for i, rain := range pattern {
				r := steadyDryingRow()
				r.RainIn = rain * scale
				rows[i] = r
			}
			eta := m.PredictETA(ForecastInput{
				Profile:   exampleProfile(),
				Start:     2.4,
				Forecast:  rowsFrom(t, testStartDate, rows...),
				Threshold: threshold,
			})
			h := hoursOf(eta)
			assert.GreaterOrEqual(t, h, prev, "threshold=%d scale=%v: wetter scenario finished earlier", threshold, scale)
			prev = h
		}
	}
}

func TestPredictETA_ThresholdClamped(t *testing.T) {
	m := NewModel(DefaultParams())

	zero := m.PredictETA(ForecastInput{Profile: midpointProfile(), Start: 4, Threshold: -5})
	assert.Equal(t, ETAReady, zero.Status)
	assert.Equal(t, 0, zero.Threshold)

	unreachable := m.PredictETA(ForecastInput{
		Profile:   domain.Field{SoilWetness: 95, DrainageIndex: 90}.Profile(),
		Start:     2,
		Forecast:  rowsFrom(t, testStartDate, repeat(steadyDryingRow(), 7)...),
		Threshold: 150,
	})
	assert.Equal(t, 100, unreachable.Threshold)
	assert.Equal(t, ETABeyondHorizon, unreachable.Status)
}
