package domain

import "time"

// DateLayout is the ISO calendar date layout used by weather rows and truth state.
const DateLayout = "2006-01-02"

// WeatherRow is one day of observed or forecast weather for a field.
// Optional inputs are pointers; a nil value means the source did not report it.
type WeatherRow struct {
	Date     string  `json:"date"`
	RainIn   float64 `json:"rain_in"`
	TempF    float64 `json:"temp_f"`
	WindMph  float64 `json:"wind_mph"`
	RHPct    float64 `json:"rh_pct"`
	SolarWm2 float64 `json:"solar_wm2"`

	VPDKPa       *float64 `json:"vpd_kpa,omitempty"`
	CloudPct     *float64 `json:"cloud_pct,omitempty"`
	SoilMoisture *float64 `json:"soil_moisture,omitempty"`
	SoilTempF    *float64 `json:"soil_temp_f,omitempty"`
	ET0In        *float64 `json:"et0_in,omitempty"`
}

// WeatherSeries holds a field's daily history and forecast, each ordered by date.
// UTCOffsetSeconds is the offset of the field's local day that split the two.
type WeatherSeries struct {
	History          []WeatherRow `json:"history"`
	Forecast         []WeatherRow `json:"forecast"`
	UTCOffsetSeconds int          `json:"utc_offset_seconds,omitempty"`
}

// LastHistoryDate returns the date of the newest history row, or "" when empty.
func (s WeatherSeries) LastHistoryDate() string {
	if len(s.History) == 0 {
		return ""
	}
	return s.History[len(s.History)-1].Date
}

// TrailingHistory returns at most the last n history rows.
func (s WeatherSeries) TrailingHistory(n int) []WeatherRow {
	if n <= 0 || n >= len(s.History) {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// FormatDate renders t as an ISO calendar date in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// LocalDate renders t as an ISO calendar date at the given UTC offset.
func LocalDate(t time.Time, offsetSeconds int) string {
	return FormatDate(t.Add(time.Duration(offsetSeconds) * time.Second))
}

// Float returns a pointer to v, for populating optional weather inputs.
func Float(v float64) *float64 {
	return &v
}
