package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
	"github.com/couchcryptid/field-readiness-service/internal/observability"
	"github.com/couchcryptid/field-readiness-service/internal/readiness"
)

// DefaultBaseURL is the public Open-Meteo forecast endpoint.
const DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

// mjPerDayToWm2 converts a daily radiation sum in MJ/m² to mean W/m².
const mjPerDayToWm2 = 1e6 / 86400

const mmPerInch = 25.4

var dailyVariables = []string{
	"precipitation_sum",
	"temperature_2m_mean",
	"wind_speed_10m_mean",
	"relative_humidity_2m_mean",
	"shortwave_radiation_sum",
	"vapour_pressure_deficit_max",
	"cloud_cover_mean",
	"et0_fao_evapotranspiration",
}

var hourlyVariables = []string{
	"soil_moisture_0_to_1cm",
	"soil_temperature_0cm",
}

// Options configure the client.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	HistoryDays  int
	ForecastDays int
	Clock        clockwork.Clock
}

// Client implements domain.WeatherSeriesProvider using the Open-Meteo API.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	historyDays  int
	forecastDays int
	clock        clockwork.Clock
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewClient creates an Open-Meteo client.
func NewClient(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = 30
	}
	if opts.ForecastDays <= 0 {
		opts.ForecastDays = 7
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		baseURL:      opts.BaseURL,
		historyDays:  opts.HistoryDays,
		forecastDays: opts.ForecastDays,
		clock:        domain.ClockOrDefault(opts.Clock),
		logger:       logger,
		metrics:      metrics,
	}
}

// Series fetches trailing history and the forecast for a field's location.
// Days before the local date at the field are history; the rest is forecast.
func (c *Client) Series(ctx context.Context, field domain.Field) (domain.WeatherSeries, error) {
	params := url.Values{
		"latitude":           {strconv.FormatFloat(field.Location.Lat, 'f', 4, 64)},
		"longitude":          {strconv.FormatFloat(field.Location.Lon, 'f', 4, 64)},
		"daily":              {strings.Join(dailyVariables, ",")},
		"hourly":             {strings.Join(hourlyVariables, ",")},
		"past_days":          {strconv.Itoa(c.historyDays)},
		"forecast_days":      {strconv.Itoa(c.forecastDays)},
		"temperature_unit":   {"fahrenheit"},
		"wind_speed_unit":    {"mph"},
		"precipitation_unit": {"inch"},
		"timezone":           {"auto"},
	}

	start := time.Now()
	resp, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	c.metrics.WeatherAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.WeatherRequests.WithLabelValues("error").Inc()
		return domain.WeatherSeries{}, err
	}
	c.metrics.WeatherRequests.WithLabelValues("success").Inc()

	rows := resp.rows()
	today := domain.LocalDate(c.clock.Now(), resp.UTCOffsetSeconds)

	series := domain.WeatherSeries{UTCOffsetSeconds: resp.UTCOffsetSeconds}
	for _, r := range rows {
		if r.Date < today {
			series.History = append(series.History, r)
		} else {
			series.Forecast = append(series.Forecast, r)
		}
	}
	c.logger.Debug("weather fetched",
		"field_id", field.ID,
		"history_days", len(series.History),
		"forecast_days", len(series.Forecast),
	)
	return series, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return response{}, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return response{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// Open-Meteo API response types. Values are nullable.

type response struct {
	UTCOffsetSeconds int        `json:"utc_offset_seconds"`
	DailyUnits       dailyUnits `json:"daily_units"`
	Daily            daily      `json:"daily"`
	Hourly           hourly     `json:"hourly"`
}

type dailyUnits struct {
	ET0 string `json:"et0_fao_evapotranspiration"`
}

type daily struct {
	Time          []string   `json:"time"`
	Precipitation []*float64 `json:"precipitation_sum"`
	Temperature   []*float64 `json:"temperature_2m_mean"`
	WindSpeed     []*float64 `json:"wind_speed_10m_mean"`
	Humidity      []*float64 `json:"relative_humidity_2m_mean"`
	Shortwave     []*float64 `json:"shortwave_radiation_sum"`
	VPD           []*float64 `json:"vapour_pressure_deficit_max"`
	CloudCover    []*float64 `json:"cloud_cover_mean"`
	ET0           []*float64 `json:"et0_fao_evapotranspiration"`
}

type hourly struct {
	Time         []string   `json:"time"`
	SoilMoisture []*float64 `json:"soil_moisture_0_to_1cm"`
	SoilTemp     []*float64 `json:"soil_temperature_0cm"`
}

// rows converts the columnar daily arrays into weather rows, joining the
// per-day mean of the hourly soil series. Missing rain is zero; other missing
// drivers take the model's neutral defaults.
func (r response) rows() []domain.WeatherRow {
	def := readiness.DefaultParams()
	moisture := dailyMeans(r.Hourly.Time, r.Hourly.SoilMoisture)
	soilTemp := dailyMeans(r.Hourly.Time, r.Hourly.SoilTemp)
	et0Scale := 1.0
	if strings.EqualFold(r.DailyUnits.ET0, "mm") {
		et0Scale = 1 / mmPerInch
	}

	out := make([]domain.WeatherRow, 0, len(r.Daily.Time))
	for i, date := range r.Daily.Time {
		row := domain.WeatherRow{
			Date:     date,
			RainIn:   valueOr(r.Daily.Precipitation, i, 0),
			TempF:    valueOr(r.Daily.Temperature, i, def.DefaultTempF),
			WindMph:  valueOr(r.Daily.WindSpeed, i, def.DefaultWindMph),
			RHPct:    valueOr(r.Daily.Humidity, i, def.DefaultRHPct),
			SolarWm2: def.DefaultSolarWm2,
		}
		if v, ok := at(r.Daily.Shortwave, i); ok {
			row.SolarWm2 = v * mjPerDayToWm2
		}
		if v, ok := at(r.Daily.VPD, i); ok {
			row.VPDKPa = domain.Float(v)
		}
		if v, ok := at(r.Daily.CloudCover, i); ok {
			row.CloudPct = domain.Float(v)
		}
		if v, ok := at(r.Daily.ET0, i); ok {
			row.ET0In = domain.Float(v * et0Scale)
		}
		if v, ok := moisture[date]; ok {
			row.SoilMoisture = domain.Float(v)
		}
		if v, ok := soilTemp[date]; ok {
			row.SoilTempF = domain.Float(v)
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Date < out[b].Date })
	return out
}

func at(vals []*float64, i int) (float64, bool) {
	if i >= len(vals) || vals[i] == nil {
		return 0, false
	}
	v := *vals[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func valueOr(vals []*float64, i int, def float64) float64 {
	if v, ok := at(vals, i); ok {
		return v
	}
	return def
}

// dailyMeans averages hourly values by the date prefix of their timestamp.
func dailyMeans(times []string, vals []*float64) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i, ts := range times {
		v, ok := at(vals, i)
		if !ok || len(ts) < len(domain.DateLayout) {
			continue
		}
		day := ts[:len(domain.DateLayout)]
		sums[day] += v
		counts[day]++
	}
	out := make(map[string]float64, len(sums))
	for day, sum := range sums {
		out[day] = sum / float64(counts[day])
	}
	return out
}
