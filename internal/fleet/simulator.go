// Package fleet runs the storage model across stored fields: it joins each
// field with its weather series, truth seed, and the global tuning, and owns
// the throttled fan-out of truth writes back to the store.
package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
	"github.com/couchcryptid/field-readiness-service/internal/observability"
	"github.com/couchcryptid/field-readiness-service/internal/readiness"
)

// DefaultConcurrency bounds simulations and writes in flight.
const DefaultConcurrency = 4

// Deps are the collaborators a Simulator needs.
type Deps struct {
	Fields     domain.FieldStore
	Weather    domain.WeatherSeriesProvider
	Truth      domain.TruthStateStore
	Tuning     domain.GlobalTuningStore
	Thresholds domain.ThresholdStore
	Model      *readiness.Model
	Logger     *slog.Logger
	Metrics    *observability.Metrics

	Concurrency  int
	HorizonHours int
}

// Simulator evaluates fields against persisted state.
type Simulator struct {
	fields     domain.FieldStore
	weather    domain.WeatherSeriesProvider
	truth      domain.TruthStateStore
	tuning     domain.GlobalTuningStore
	thresholds domain.ThresholdStore
	model      *readiness.Model
	logger     *slog.Logger
	metrics    *observability.Metrics

	concurrency  int
	horizonHours int

	cycle sync.Mutex
}

// New creates a Simulator. A nil model uses the default parameters.
func New(d Deps) *Simulator {
	if d.Model == nil {
		d.Model = readiness.NewModel(readiness.DefaultParams())
	}
	if d.Concurrency <= 0 {
		d.Concurrency = DefaultConcurrency
	}
	if d.HorizonHours <= 0 {
		d.HorizonHours = readiness.DefaultHorizonHours
	}
	return &Simulator{
		fields:       d.Fields,
		weather:      d.Weather,
		truth:        d.Truth,
		tuning:       d.Tuning,
		thresholds:   d.Thresholds,
		model:        d.Model,
		logger:       d.Logger,
		metrics:      d.Metrics,
		concurrency:  d.Concurrency,
		horizonHours: d.HorizonHours,
	}
}

// Lock claims the truth cycle. Callers that read truth, simulate, and write
// it back hold the lock from the first read to the last write so their
// writes never interleave.
func (s *Simulator) Lock() { s.cycle.Lock() }

// Unlock releases the truth cycle.
func (s *Simulator) Unlock() { s.cycle.Unlock() }

// FieldRun is one field's simulation together with the inputs it used.
type FieldRun struct {
	Field    domain.Field        `json:"field"`
	Run      readiness.Run       `json:"run"`
	Forecast []domain.WeatherRow `json:"-"`
	// Degraded is set when weather could not be fetched and the run holds
	// the seed only.
	Degraded bool `json:"degraded,omitempty"`
}

// Mode selects how a simulation is seeded.
type Mode int

const (
	// FromTruth seeds from persisted truth and applies every newer history row.
	FromTruth Mode = iota
	// FromBaseline ignores truth and seeds from the baseline heuristic over
	// the trailing window.
	FromBaseline
)

// Options configure a fleet pass.
type Options struct {
	Mode       Mode
	Tuning     readiness.Tuning
	WindowDays int
}

// Model returns the storage model in use.
func (s *Simulator) Model() *readiness.Model {
	return s.model
}

// Fields lists stored fields.
func (s *Simulator) Fields(ctx context.Context) ([]domain.Field, error) {
	return s.fields.List(ctx)
}

// CurrentTuning loads the global tuning document and refreshes the gauges.
func (s *Simulator) CurrentTuning(ctx context.Context) (domain.GlobalTuning, error) {
	g, err := s.tuning.Get(ctx)
	if err != nil {
		return domain.GlobalTuning{}, fmt.Errorf("load tuning: %w", err)
	}
	g = g.Sanitize()
	s.metrics.RecordTuning(g.DryLossMult, g.RainEffMult)
	return g, nil
}

// SimulateField runs the model for a single field.
func (s *Simulator) SimulateField(ctx context.Context, field domain.Field, opts Options) (FieldRun, error) {
	profile := field.Profile()

	series, err := s.weather.Series(ctx, field)
	degraded := false
	if err != nil {
		if ctx.Err() != nil {
			return FieldRun{}, ctx.Err()
		}
		s.logger.Warn("weather unavailable, simulating from seed only",
			"field_id", field.ID, "error", err)
		series = domain.WeatherSeries{}
		degraded = true
	}

	var (
		seed readiness.Seed
		rows = series.History
	)
	switch opts.Mode {
	case FromBaseline:
		seed = s.model.BaselineSeed(profile)
		rows = series.TrailingHistory(opts.WindowDays)
	default:
		state, ok, err := s.truth.Get(ctx, field.ID)
		if err != nil {
			return FieldRun{}, fmt.Errorf("load truth for %s: %w", field.ID, err)
		}
		if ok {
			seed = s.model.SeedFrom(profile, &state)
		} else {
			seed = s.model.SeedFrom(profile, nil)
		}
	}

	run := s.model.Simulate(readiness.Input{
		FieldID: field.ID,
		Profile: profile,
		Rows:    rows,
		Seed:    seed,
		Tuning:  opts.Tuning,
	})
	s.metrics.Simulations.Inc()

	return FieldRun{Field: field, Run: run, Forecast: series.Forecast, Degraded: degraded}, nil
}

// SimulateAll runs every field concurrently. The result order matches fields.
// Any truth read failure fails the pass so callers never act on a partial view.
func (s *Simulator) SimulateAll(ctx context.Context, fields []domain.Field, opts Options) ([]FieldRun, error) {
	start := time.Now()
	out := make([]FieldRun, len(fields))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, f := range fields {
		g.Go(func() error {
			run, err := s.SimulateField(gctx, f, opts)
			if err != nil {
				return err
			}
			out[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.metrics.FleetSimulation.Observe(time.Since(start).Seconds())
	return out, nil
}

// WriteResult counts a fleet write.
type WriteResult struct {
	Updated int `json:"fields_updated"`
	Failed  int `json:"fields_failed"`
}

// WriteAll persists states with bounded concurrency. A failed write is logged
// and counted; it never cancels its siblings.
func (s *Simulator) WriteAll(ctx context.Context, states []domain.StorageState) WriteResult {
	var updated, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, st := range states {
		g.Go(func() error {
			if err := s.truth.Set(ctx, st.FieldID, st); err != nil {
				failed.Add(1)
				s.metrics.TruthWrites.WithLabelValues(string(st.Source), "error").Inc()
				s.logger.Error("truth write failed",
					"field_id", st.FieldID, "source", st.Source, "error", err)
				return nil
			}
			updated.Add(1)
			s.metrics.TruthWrites.WithLabelValues(string(st.Source), "success").Inc()
			return nil
		})
	}
	_ = g.Wait()

	return WriteResult{Updated: int(updated.Load()), Failed: int(failed.Load())}
}

// Readiness simulates one stored field from its truth with the current tuning.
func (s *Simulator) Readiness(ctx context.Context, fieldID string) (FieldRun, error) {
	field, err := s.fields.Get(ctx, fieldID)
	if err != nil {
		return FieldRun{}, err
	}
	g, err := s.CurrentTuning(ctx)
	if err != nil {
		return FieldRun{}, err
	}
	return s.SimulateField(ctx, field, Options{Tuning: readiness.TuningFrom(g)})
}

// ETAResult is a field's current readiness and its predicted crossing of an
// operation threshold.
type ETAResult struct {
	FieldID string        `json:"field_id"`
	OpKey   domain.OpKey  `json:"op_key"`
	ETA     readiness.ETA `json:"eta"`
}

// ETA predicts when fieldID reaches the threshold of op.
func (s *Simulator) ETA(ctx context.Context, fieldID string, op domain.OpKey) (ETAResult, error) {
	fr, err := s.Readiness(ctx, fieldID)
	if err != nil {
		return ETAResult{}, err
	}
	threshold, err := s.thresholds.Get(ctx, op)
	if err != nil {
		return ETAResult{}, fmt.Errorf("load threshold %s: %w", op, err)
	}

	eta := s.model.PredictETA(readiness.ForecastInput{
		Profile:      fr.Field.Profile(),
		Start:        fr.Run.StorageFinal,
		Forecast:     fr.Forecast,
		Tuning:       fr.Run.Tuning,
		Threshold:    threshold,
		HorizonHours: s.horizonHours,
	})
	s.metrics.ETAPredictions.WithLabelValues(string(eta.Status)).Inc()

	return ETAResult{FieldID: fieldID, OpKey: op, ETA: eta}, nil
}
