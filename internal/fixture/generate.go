package fixture

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
)

// GenerateOptions control synthetic fixture generation.
type GenerateOptions struct {
	Fields       int
	HistoryDays  int
	ForecastDays int
	Today        time.Time
	Seed         uint64
	// Center is the location fields are scattered around.
	Center domain.Location
}

// Generate builds a deterministic synthetic fixture: identical options
// always produce an identical fixture.
func Generate(opts GenerateOptions) *Fixture {
	if opts.Fields <= 0 {
		opts.Fields = 8
	}
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = 30
	}
	if opts.ForecastDays <= 0 {
		opts.ForecastDays = 7
	}
	today := time.Date(opts.Today.Year(), opts.Today.Month(), opts.Today.Day(), 0, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))

	fx := &Fixture{
		GeneratedFor: domain.FormatDate(today),
		Seed:         opts.Seed,
		Weather:      make(map[string]domain.WeatherSeries, opts.Fields),
	}

	for i := range opts.Fields {
		f := domain.Field{
			ID:            fmt.Sprintf("field-%02d", i+1),
			FarmID:        fmt.Sprintf("farm-%d", i/4+1),
			Name:          fmt.Sprintf("Field %d", i+1),
			SoilWetness:   math.Round(rng.Float64() * 100),
			DrainageIndex: math.Round(rng.Float64() * 100),
			TillableAcres: math.Round(40 + rng.Float64()*120),
			Location: domain.Location{
				Lat: round4(opts.Center.Lat + (rng.Float64()-0.5)*0.5),
				Lon: round4(opts.Center.Lon + (rng.Float64()-0.5)*0.5),
			},
		}
		fx.Fields = append(fx.Fields, f)

		var series domain.WeatherSeries
		start := today.AddDate(0, 0, -opts.HistoryDays)
		for d := range opts.HistoryDays + opts.ForecastDays {
			row := syntheticDay(rng, start.AddDate(0, 0, d))
			if d < opts.HistoryDays {
				series.History = append(series.History, row)
			} else {
				series.Forecast = append(series.Forecast, row)
			}
		}
		fx.Weather[f.ID] = series
	}
	return fx
}

// syntheticDay draws one plausible spring day. Rain falls on roughly a
// third of days with a heavy tail; wet days run cooler, cloudier, and more
// humid.
func syntheticDay(rng *rand.Rand, day time.Time) domain.WeatherRow {
	doy := float64(day.YearDay())
	seasonal := 52 - 22*math.Cos(2*math.Pi*(doy-15)/365)

	rain := 0.0
	wet := rng.Float64() < 0.33
	if wet {
		rain = round2(rng.ExpFloat64() * 0.35)
	}

	temp := seasonal + rng.NormFloat64()*6
	cloud := 20 + rng.Float64()*40
	rh := 45 + rng.Float64()*25
	if wet {
		temp -= 4
		cloud = 70 + rng.Float64()*30
		rh = 75 + rng.Float64()*20
	}
	solar := math.Max(30, (330-2.4*cloud)*(0.75+0.25*math.Sin(2*math.Pi*(doy-80)/365)))

	return domain.WeatherRow{
		Date:     domain.FormatDate(day),
		RainIn:   rain,
		TempF:    round2(temp),
		WindMph:  round2(math.Abs(6 + rng.NormFloat64()*3)),
		RHPct:    round2(math.Min(rh, 100)),
		SolarWm2: round2(solar),
		CloudPct: domain.Float(round2(math.Min(cloud, 100))),
		VPDKPa:   domain.Float(round2(vpd(temp, rh))),
	}
}

// vpd is the Tetens vapour pressure deficit in kPa for °F and percent RH.
func vpd(tempF, rh float64) float64 {
	c := (tempF - 32) * 5 / 9
	es := 0.6108 * math.Exp(17.27*c/(c+237.3))
	return math.Max(0, es*(1-math.Min(rh, 100)/100))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
