// Command validate runs the storage model over a weather fixture and checks
// the model's invariants field by field: capacity range, storage bounds under
// the fixture and under extreme weather, readiness/wetness complement,
// determinism, the forcing round trip, and ETA monotonicity in dryness.
//
// Usage:
//
//	go run ./cmd/validate -fixture data/fixtures/spring_weather.json
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/google/go-cmp/cmp"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
	"github.com/couchcryptid/field-readiness-service/internal/fixture"
	"github.com/couchcryptid/field-readiness-service/internal/readiness"
)

const eps = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	path := flag.String("fixture", "", "path to a weather fixture written by genweather")
	flag.Parse()

	if *path == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*path); code != 0 {
		os.Exit(code)
	}
}

func run(path string) int {
	fmt.Println("=== Field Readiness Model Validation ===")
	fmt.Println()

	fx, err := fixture.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load fixture: %v\n", err)
		return 1
	}

	m := readiness.NewModel(readiness.DefaultParams())
	tuning := readiness.TuningFrom(domain.DefaultTuning())

	phases := []*phase{
		validateCapacity(m, fx),
		validateStorageBounds(m, fx, tuning),
		validateComplement(m, fx, tuning),
		validateDeterminism(m, fx, tuning),
		validateForcing(m, fx, tuning),
		validateETAMonotone(m, fx, tuning),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Fixture: %d fields, generated for %s, seed %d\n", len(fx.Fields), fx.GeneratedFor, fx.Seed)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phases ──

func validateCapacity(m *readiness.Model, fx *fixture.Fixture) *phase {
	p := &phase{name: "Phase 1: Capacity range"}
	params := m.Params()
	for _, f := range fx.Fields {
		smax := m.Factors(f.Profile()).Smax
		if smax < params.SmaxMin-eps || smax > params.SmaxMax+eps {
			p.errorf("%s: Smax %.4f outside [%.1f, %.1f]", f.ID, smax, params.SmaxMin, params.SmaxMax)
		}
	}
	return p
}

func validateStorageBounds(m *readiness.Model, fx *fixture.Fixture, t readiness.Tuning) *phase {
	p := &phase{name: "Phase 2: Storage bounds"}
	for _, f := range fx.Fields {
		series := fx.Weather[f.ID]
		scenarios := map[string][]domain.WeatherRow{
			"fixture": append(append([]domain.WeatherRow{}, series.History...), series.Forecast...),
			"deluge":  repeat(domain.WeatherRow{RainIn: 12, TempF: 40, WindMph: 0, RHPct: 100, SolarWm2: 0}, 10),
			"drought": repeat(domain.WeatherRow{TempF: 105, WindMph: 30, RHPct: 5, SolarWm2: 400}, 30),
		}
		profile := f.Profile()
		smax := m.Factors(profile).Smax
		for name, rows := range scenarios {
			for _, seed := range []float64{0, smax / 2, smax} {
				run := m.Simulate(readiness.Input{
					FieldID: f.ID,
					Profile: profile,
					Rows:    rows,
					Seed:    readiness.Seed{Storage: seed, Source: readiness.SeedBaseline},
					Tuning:  t,
				})
				for _, day := range run.Trace {
					if day.StorageAfter < -eps || day.StorageAfter > smax+eps {
						p.errorf("%s/%s seed=%.2f: storage %.4f outside [0, %.4f] on %s",
							f.ID, name, seed, day.StorageAfter, smax, day.Date)
						break
					}
				}
			}
		}
	}
	return p
}

func validateComplement(m *readiness.Model, fx *fixture.Fixture, t readiness.Tuning) *phase {
	p := &phase{name: "Phase 3: Readiness + wetness = 100"}
	for _, f := range fx.Fields {
		run := simulate(m, f, fx.Weather[f.ID].History, t)
		if run.ReadinessR+run.WetnessR != 100 {
			p.errorf("%s: readiness %d + wetness %d != 100", f.ID, run.ReadinessR, run.WetnessR)
		}
		if run.ReadinessR < 0 || run.ReadinessR > 100 {
			p.errorf("%s: readiness %d outside [0, 100]", f.ID, run.ReadinessR)
		}
	}
	return p
}

func validateDeterminism(m *readiness.Model, fx *fixture.Fixture, t readiness.Tuning) *phase {
	p := &phase{name: "Phase 4: Determinism"}
	for _, f := range fx.Fields {
		a := simulate(m, f, fx.Weather[f.ID].History, t)
		b := simulate(m, f, fx.Weather[f.ID].History, t)
		if diff := cmp.Diff(a, b); diff != "" {
			p.errorf("%s: repeated runs differ:\n%s", f.ID, diff)
		}
	}
	return p
}

func validateForcing(m *readiness.Model, fx *fixture.Fixture, t readiness.Tuning) *phase {
	p := &phase{name: "Phase 5: Forcing round trip"}
	for _, f := range fx.Fields {
		factors := m.Factors(f.Profile())
		for target := 0; target <= 100; target += 5 {
			storage := m.InvertReadiness(float64(target), factors, t)
			if storage <= eps || storage >= factors.Smax-eps {
				// Clamped: the reversal cannot reach this target exactly.
				continue
			}
			if _, got := m.Score(storage, factors, t); got != target {
				p.errorf("%s: forcing to %d scores %d (storage %.4f)", f.ID, target, got, storage)
			}
		}
	}
	return p
}

func validateETAMonotone(m *readiness.Model, fx *fixture.Fixture, t readiness.Tuning) *phase {
	p := &phase{name: "Phase 6: ETA monotone in dryness"}
	for _, f := range fx.Fields {
		series := fx.Weather[f.ID]
		start := simulate(m, f, series.History, t).StorageFinal
		for _, threshold := range []int{60, 70, 80} {
			prev := -1.0
			for _, scale := range []float64{0, 0.5, 1, 2} {
				eta := m.PredictETA(readiness.ForecastInput{
					Profile:   f.Profile(),
					Start:     start,
					Forecast:  scaleRain(series.Forecast, scale),
					Tuning:    t,
					Threshold: threshold,
				})
				h := float64(eta.Hours)
				if eta.Status == readiness.ETABeyondHorizon {
					h = math.Inf(1)
				}
				if h < prev {
					p.errorf("%s threshold=%d: rain x%.1f reaches readiness before a drier forecast", f.ID, threshold, scale)
				}
				prev = h
			}
		}
	}
	return p
}

// ── Helpers ──

func simulate(m *readiness.Model, f domain.Field, rows []domain.WeatherRow, t readiness.Tuning) readiness.Run {
	profile := f.Profile()
	return m.Simulate(readiness.Input{
		FieldID: f.ID,
		Profile: profile,
		Rows:    rows,
		Seed:    m.BaselineSeed(profile),
		Tuning:  t,
	})
}

func repeat(row domain.WeatherRow, n int) []domain.WeatherRow {
	rows := make([]domain.WeatherRow, n)
	for i := range rows {
		rows[i] = row
	}
	return rows
}

func scaleRain(rows []domain.WeatherRow, scale float64) []domain.WeatherRow {
	out := make([]domain.WeatherRow, len(rows))
	for i, r := range rows {
		r.RainIn *= scale
		out[i] = r
	}
	return out
}
