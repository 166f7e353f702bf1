// Package calibration corrects systemic model bias. An operator forces one
// reference field to a target readiness; the engine rescales every field's
// persisted storage by the same factor, records the adjustment, and feeds it
// to the tuning learner.
package calibration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
	"github.com/couchcryptid/field-readiness-service/internal/fleet"
	"github.com/couchcryptid/field-readiness-service/internal/observability"
	"github.com/couchcryptid/field-readiness-service/internal/readiness"
)

// Storage scaling bounds.
const (
	MinRefStorage  = 0.05
	MinStorageMult = 0.05
	MaxStorageMult = 5.0
)

// DefaultWindowDays is the trailing history a rebuild simulates.
const DefaultWindowDays = 30

// ErrNoFields is returned by RebuildTruth when no fields are stored.
var ErrNoFields = errors.New("no fields loaded")

// Deps are the collaborators an Engine needs. Publisher is optional.
type Deps struct {
	Simulator  *fleet.Simulator
	Thresholds domain.ThresholdStore
	Tuning     domain.GlobalTuningStore
	Cooldown   domain.CooldownLock
	Gate       domain.PermissionGate
	Audit      domain.AuditLog
	Publisher  domain.AuditPublisher
	Learner    *Learner
	Clock      clockwork.Clock
	Logger     *slog.Logger
	Metrics    *observability.Metrics

	Hysteresis int
}

// Engine applies global calibrations and baseline rebuilds.
type Engine struct {
	sim        *fleet.Simulator
	thresholds domain.ThresholdStore
	tuning     domain.GlobalTuningStore
	cooldown   domain.CooldownLock
	gate       domain.PermissionGate
	audit      domain.AuditLog
	publisher  domain.AuditPublisher
	learner    *Learner
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
	hysteresis int
}

// NewEngine creates an Engine. A nil gate allows every caller and a
// non-positive hysteresis uses DefaultHysteresis.
func NewEngine(d Deps) *Engine {
	if d.Gate == nil {
		d.Gate = domain.AllowAll{}
	}
	if d.Hysteresis <= 0 {
		d.Hysteresis = DefaultHysteresis
	}
	if d.Learner == nil {
		d.Learner = NewLearner(d.Tuning, d.Logger, d.Metrics)
	}
	return &Engine{
		sim:        d.Simulator,
		thresholds: d.Thresholds,
		tuning:     d.Tuning,
		cooldown:   d.Cooldown,
		gate:       d.Gate,
		audit:      d.Audit,
		publisher:  d.Publisher,
		learner:    d.Learner,
		clock:      domain.ClockOrDefault(d.Clock),
		logger:     d.Logger,
		metrics:    d.Metrics,
		hysteresis: d.Hysteresis,
	}
}

// Request asks for a global calibration anchored on one reference field.
type Request struct {
	RefFieldID      string       `json:"ref_field_id"`
	TargetReadiness int          `json:"target_readiness"`
	Feel            domain.Feel  `json:"feel"`
	OpKey           domain.OpKey `json:"op_key"`
	Actor           string       `json:"-"`
}

// Result reports the outcome of ApplyAdjustment. Rejected requests carry a
// Reason and leave every store untouched.
type Result struct {
	Applied    bool                          `json:"applied"`
	Reason     Reason                        `json:"reason,omitempty"`
	Status     Status                        `json:"status,omitempty"`
	Anchor     int                           `json:"anchor_readiness"`
	Threshold  int                           `json:"threshold"`
	Adjustment *domain.CalibrationAdjustment `json:"adjustment,omitempty"`
	Tuning     *domain.GlobalTuning          `json:"tuning,omitempty"`
	NextAllow  time.Time                     `json:"next_allowed,omitempty"`
}

func (e *Engine) reject(reason Reason, res Result) Result {
	e.metrics.CalibrationsRejected.WithLabelValues(string(reason)).Inc()
	res.Applied = false
	res.Reason = reason
	return res
}

// ApplyAdjustment forces req.RefFieldID to req.TargetReadiness and scales
// every other field's storage by the same factor. Concurrent calls are
// serialized so the cooldown check and its claim are atomic.
func (e *Engine) ApplyAdjustment(ctx context.Context, req Request) (Result, error) {
	if !e.gate.CanEdit(ctx) {
		return Result{}, domain.ErrForbidden
	}
	e.sim.Lock()
	defer e.sim.Unlock()

	now := e.clock.Now().UTC()

	lock, err := e.cooldown.Get(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load cooldown: %w", err)
	}
	if lock.Locked(now) {
		e.logger.Info("calibration rejected", "reason", ReasonLocked, "next_allowed", lock.NextAllowed)
		return e.reject(ReasonLocked, Result{NextAllow: lock.NextAllowed}), nil
	}

	if req.OpKey == "" {
		req.OpKey = domain.OpSpringTillage
	}
	if !req.Feel.Valid() || !req.OpKey.Valid() || req.TargetReadiness < 0 || req.TargetReadiness > 100 {
		return e.reject(ReasonInvalidRequest, Result{}), nil
	}

	fields, err := e.sim.Fields(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list fields: %w", err)
	}
	if len(fields) == 0 {
		return e.reject(ReasonNoFields, Result{}), nil
	}
	if !containsField(fields, req.RefFieldID) {
		return e.reject(ReasonUnknownField, Result{}), nil
	}

	g, err := e.sim.CurrentTuning(ctx)
	if err != nil {
		return Result{}, err
	}
	tuning := readiness.TuningFrom(g)

	runs, err := e.sim.SimulateAll(ctx, fields, fleet.Options{Tuning: tuning})
	if err != nil {
		return Result{}, fmt.Errorf("simulate fleet: %w", err)
	}
	ref := findRun(runs, req.RefFieldID)

	threshold, err := e.thresholds.Get(ctx, req.OpKey)
	if err != nil {
		return Result{}, fmt.Errorf("load threshold: %w", err)
	}
	anchor := ref.Run.ReadinessR
	status := Classify(anchor, threshold, e.hysteresis)
	res := Result{Status: status, Anchor: anchor, Threshold: threshold}

	if reason := guard(status, req.Feel, anchor, req.TargetReadiness); reason != "" {
		e.logger.Info("calibration rejected",
			"reason", reason, "ref_field_id", req.RefFieldID,
			"anchor", anchor, "target", req.TargetReadiness, "feel", req.Feel)
		return e.reject(reason, res), nil
	}

	model := e.sim.Model()
	currentRef := math.Max(ref.Run.StorageFinal, MinRefStorage)
	forced := model.InvertReadiness(float64(req.TargetReadiness), ref.Run.Factors, tuning)
	mult := clamp(forced/currentRef, MinStorageMult, MaxStorageMult)
	_, achieved := model.Score(forced, ref.Run.Factors, tuning)
	if achieved != req.TargetReadiness {
		e.logger.Warn("calibration target out of reach",
			"ref_field_id", req.RefFieldID, "target", req.TargetReadiness,
			"achieved", achieved, "smax", ref.Run.Factors.Smax)
	}

	adj := domain.CalibrationAdjustment{
		ID:                uuid.NewString(),
		Feel:              req.Feel,
		AnchorReadiness:   anchor,
		TargetReadiness:   req.TargetReadiness,
		AchievedReadiness: achieved,
		Delta:             req.TargetReadiness - anchor,
		StorageMult:       mult,
		ForcedStorage:     forced,
		RefFieldID:        req.RefFieldID,
		OpKey:             req.OpKey,
		Global:            true,
		AppliedBy:         req.Actor,
		CreatedAt:         now,
	}

	states := make([]domain.StorageState, 0, len(runs))
	for _, fr := range runs {
		smax := fr.Run.Factors.Smax
		storage := clamp(fr.Run.StorageFinal*mult, 0, smax)
		if fr.Field.ID == req.RefFieldID {
			storage = forced
		}
		states = append(states, domain.StorageState{
			FieldID:      fr.Field.ID,
			StorageFinal: storage,
			AsOfDate:     fr.Run.AsOfDate,
			SmaxAtSave:   smax,
			Source:       domain.SourceGlobalForceTarget,
			UpdatedAt:    now,
			UpdatedBy:    req.Actor,
			AdjustmentID: adj.ID,
			StorageMult:  mult,
		})
	}

	written := e.sim.WriteAll(ctx, states)
	adj.FieldsUpdated = written.Updated
	adj.FieldsFailed = written.Failed
	if written.Updated == 0 {
		return Result{}, fmt.Errorf("adjustment failed: no truth writes succeeded (%d failed)", written.Failed)
	}

	e.record(ctx, adj)

	learned, err := e.learner.Record(ctx, adj)
	if err != nil {
		e.logger.Error("tuning update failed", "adjustment_id", adj.ID, "error", err)
	} else {
		res.Tuning = &learned
	}

	if err := e.cooldown.Set(ctx, now); err != nil {
		e.logger.Error("cooldown lock failed", "adjustment_id", adj.ID, "error", err)
	}
	if lock, err := e.cooldown.Get(ctx); err == nil {
		res.NextAllow = lock.NextAllowed
	}

	e.metrics.CalibrationsApplied.Inc()
	e.logger.Info("calibration applied",
		"adjustment_id", adj.ID,
		"ref_field_id", adj.RefFieldID,
		"anchor", anchor,
		"target", adj.TargetReadiness,
		"achieved", adj.AchievedReadiness,
		"storage_mult", mult,
		"fields_updated", adj.FieldsUpdated,
		"fields_failed", adj.FieldsFailed,
	)

	res.Applied = true
	res.Adjustment = &adj
	return res, nil
}

// record appends adj to the audit log and publishes it. Failures are logged;
// the truth writes they describe have already happened.
func (e *Engine) record(ctx context.Context, adj domain.CalibrationAdjustment) {
	if err := e.audit.Append(ctx, adj); err != nil {
		e.logger.Error("audit append failed", "adjustment_id", adj.ID, "error", err)
	}
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, adj); err != nil {
		e.metrics.AuditPublished.WithLabelValues("error").Inc()
		e.logger.Warn("audit publish failed", "adjustment_id", adj.ID, "error", err)
		return
	}
	e.metrics.AuditPublished.WithLabelValues("success").Inc()
}

// RebuildResult reports a baseline rebuild.
type RebuildResult struct {
	WindowDays    int `json:"window_days"`
	FieldsUpdated int `json:"fields_updated"`
	FieldsFailed  int `json:"fields_failed"`
}

// RebuildTruth discards persisted truth and re-derives every field's storage
// from the baseline seed over the trailing windowDays of history. It keeps
// the learned drying multiplier and clears the calibration bias terms.
func (e *Engine) RebuildTruth(ctx context.Context, windowDays int, actor string) (RebuildResult, error) {
	if !e.gate.CanEdit(ctx) {
		return RebuildResult{}, domain.ErrForbidden
	}
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	e.sim.Lock()
	defer e.sim.Unlock()

	start := time.Now()
	now := e.clock.Now().UTC()

	fields, err := e.sim.Fields(ctx)
	if err != nil {
		return RebuildResult{}, fmt.Errorf("list fields: %w", err)
	}
	if len(fields) == 0 {
		return RebuildResult{}, ErrNoFields
	}

	g, err := e.sim.CurrentTuning(ctx)
	if err != nil {
		return RebuildResult{}, err
	}

	runs, err := e.sim.SimulateAll(ctx, fields, fleet.Options{
		Mode:       fleet.FromBaseline,
		Tuning:     readiness.BaselineTuning(g),
		WindowDays: windowDays,
	})
	if err != nil {
		return RebuildResult{}, fmt.Errorf("simulate fleet: %w", err)
	}

	states := make([]domain.StorageState, 0, len(runs))
	for _, fr := range runs {
		states = append(states, domain.StorageState{
			FieldID:      fr.Field.ID,
			StorageFinal: fr.Run.StorageFinal,
			AsOfDate:     fr.Run.AsOfDate,
			SmaxAtSave:   fr.Run.Factors.Smax,
			Source:       domain.SourceBaselineRebuild,
			UpdatedAt:    now,
			UpdatedBy:    actor,
			StorageMult:  1,
		})
	}
	written := e.sim.WriteAll(ctx, states)

	g.WetBias = 0
	g.ReadinessShift = 0
	if err := e.tuning.Set(ctx, g); err != nil {
		e.logger.Error("clearing calibration bias failed", "error", err)
	}

	e.metrics.RebuildDuration.Observe(time.Since(start).Seconds())
	e.logger.Info("truth rebuilt",
		"window_days", windowDays,
		"fields_updated", written.Updated,
		"fields_failed", written.Failed,
	)

	res := RebuildResult{WindowDays: windowDays, FieldsUpdated: written.Updated, FieldsFailed: written.Failed}
	if written.Updated == 0 {
		return res, fmt.Errorf("rebuild failed: no truth writes succeeded (%d failed)", written.Failed)
	}
	return res, nil
}

// LockStatus is the calibration lock as seen by the API.
type LockStatus struct {
	domain.CooldownState
	Locked bool                `json:"locked"`
	Tuning domain.GlobalTuning `json:"tuning"`
}

// Status returns the cooldown lock and current tuning.
func (e *Engine) Status(ctx context.Context) (LockStatus, error) {
	lock, err := e.cooldown.Get(ctx)
	if err != nil {
		return LockStatus{}, fmt.Errorf("load cooldown: %w", err)
	}
	g, err := e.sim.CurrentTuning(ctx)
	if err != nil {
		return LockStatus{}, err
	}
	return LockStatus{CooldownState: lock, Locked: lock.Locked(e.clock.Now()), Tuning: g}, nil
}

// History returns every recorded calibration, oldest first.
func (e *Engine) History(ctx context.Context) ([]domain.CalibrationAdjustment, error) {
	return e.audit.List(ctx)
}

func containsField(fields []domain.Field, id string) bool {
	for _, f := range fields {
		if f.ID == id {
			return true
		}
	}
	return false
}

func findRun(runs []fleet.FieldRun, id string) fleet.FieldRun {
	for _, r := range runs {
		if r.Field.ID == id {
			return r
		}
	}
	return fleet.FieldRun{}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
