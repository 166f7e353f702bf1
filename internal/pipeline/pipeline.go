package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
	"github.com/couchcryptid/field-readiness-service/internal/fleet"
	"github.com/couchcryptid/field-readiness-service/internal/observability"
	"github.com/couchcryptid/field-readiness-service/internal/readiness"
)

// DefaultInterval is the time between roll-forward passes.
const DefaultInterval = 24 * time.Hour

// FleetRunner simulates and persists the fleet. Its Locker claims the truth
// cycle shared with calibration.
type FleetRunner interface {
	sync.Locker
	Fields(ctx context.Context) ([]domain.Field, error)
	CurrentTuning(ctx context.Context) (domain.GlobalTuning, error)
	SimulateAll(ctx context.Context, fields []domain.Field, opts fleet.Options) ([]fleet.FieldRun, error)
	WriteAll(ctx context.Context, states []domain.StorageState) fleet.WriteResult
}

// Pipeline advances every field's truth state over newly completed weather
// days on a fixed interval.
type Pipeline struct {
	runner   FleetRunner
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	interval time.Duration
	ready    atomic.Bool
	passes   atomic.Int64
}

// New creates a roll-forward Pipeline. A non-positive interval uses
// DefaultInterval; a nil clock uses the package default.
func New(runner FleetRunner, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, interval time.Duration) *Pipeline {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Pipeline{
		runner:   runner,
		clock:    domain.ClockOrDefault(clock),
		logger:   logger,
		metrics:  metrics,
		interval: interval,
	}
}

// CheckReadiness returns nil once a roll-forward pass has completed,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("roll-forward has not completed a pass yet")
	}
	return nil
}

// Passes returns the number of completed passes.
func (p *Pipeline) Passes() int64 {
	return p.passes.Load()
}

// PassResult summarizes one roll-forward pass.
type PassResult struct {
	Fields   int `json:"fields"`
	Advanced int `json:"advanced"`
	Skipped  int `json:"skipped"`
	fleet.WriteResult
}

// Run executes roll-forward passes until the context is cancelled. The first
// pass starts immediately. A failed pass is retried with backoff.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("roll-forward started", "interval", p.interval)
	p.metrics.RollForwardRunning.Set(1)
	defer p.metrics.RollForwardRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("roll-forward stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if _, err := p.RollForward(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("roll-forward stopping", "reason", ctx.Err())
				return nil
			}
			p.logger.Error("roll-forward pass failed", "error", err, "retry_in", backoff)
			if !sleepWithContext(ctx, p.clock, backoff) {
				return nil
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}

		backoff = 200 * time.Millisecond
		if !sleepWithContext(ctx, p.clock, p.interval) {
			p.logger.Info("roll-forward stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// RollForward runs one pass: every field is simulated from its truth seed
// over history newer than the seed, and fields that advanced are persisted.
// A pass fails only when it cannot simulate or when every write fails.
func (p *Pipeline) RollForward(ctx context.Context) (PassResult, error) {
	p.runner.Lock()
	defer p.runner.Unlock()

	fields, err := p.runner.Fields(ctx)
	if err != nil {
		return PassResult{}, fmt.Errorf("list fields: %w", err)
	}
	g, err := p.runner.CurrentTuning(ctx)
	if err != nil {
		return PassResult{}, err
	}
	runs, err := p.runner.SimulateAll(ctx, fields, fleet.Options{
		Mode:   fleet.FromTruth,
		Tuning: readiness.TuningFrom(g),
	})
	if err != nil {
		return PassResult{}, fmt.Errorf("simulate fleet: %w", err)
	}

	states := RollForwardStates(runs, p.clock.Now())
	res := PassResult{
		Fields:   len(fields),
		Advanced: len(states),
		Skipped:  len(fields) - len(states),
	}
	if len(states) > 0 {
		res.WriteResult = p.runner.WriteAll(ctx, states)
		if res.Updated == 0 {
			return res, fmt.Errorf("roll-forward: all %d truth writes failed", res.Failed)
		}
	}

	p.passes.Add(1)
	p.ready.Store(true)
	p.logger.Info("roll-forward pass complete",
		"fields", res.Fields,
		"advanced", res.Advanced,
		"updated", res.Updated,
		"failed", res.Failed,
	)
	return res, nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
