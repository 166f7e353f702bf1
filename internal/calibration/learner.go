package calibration

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
	"github.com/couchcryptid/field-readiness-service/internal/observability"
)

// Learner damping and clamp constants.
const (
	LearnExponent  = 0.5
	IntentFloor    = 0.10
	IntentCeiling  = 2.50
	minStorageMult = 1e-9
)

// Learn folds one adjustment into the tuning multipliers. A storage
// multiplier below one means the fleet was drier than modeled, so drying
// speeds up and rain effectiveness drops; above one does the opposite.
func Learn(prev domain.GlobalTuning, adj domain.CalibrationAdjustment) domain.GlobalTuning {
	next := prev.Sanitize()
	mult := adj.StorageMult
	if math.IsNaN(mult) || math.IsInf(mult, 0) || mult < minStorageMult {
		return next
	}

	intent := math.Min(math.Max(1/mult, IntentFloor), IntentCeiling)
	next.DryLossMult = clampMult(next.DryLossMult * math.Pow(intent, LearnExponent))
	next.RainEffMult = clampMult(next.RainEffMult * math.Pow(1/intent, LearnExponent))

	next.LastAdjustmentID = adj.ID
	next.LastAdjustedAt = adj.CreatedAt
	next.Adjustments++
	return next
}

// Replay folds an audit history, oldest first, onto base.
func Replay(base domain.GlobalTuning, history []domain.CalibrationAdjustment) domain.GlobalTuning {
	g := base.Sanitize()
	for _, adj := range history {
		g = Learn(g, adj)
	}
	return g
}

func clampMult(v float64) float64 {
	return math.Min(math.Max(v, domain.TuningMultMin), domain.TuningMultMax)
}

// Learner persists learned tuning after each applied calibration.
type Learner struct {
	store   domain.GlobalTuningStore
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewLearner creates a Learner over the global tuning document.
func NewLearner(store domain.GlobalTuningStore, logger *slog.Logger, metrics *observability.Metrics) *Learner {
	return &Learner{store: store, logger: logger, metrics: metrics}
}

// Record reads the tuning document, applies adj, and writes it back.
func (l *Learner) Record(ctx context.Context, adj domain.CalibrationAdjustment) (domain.GlobalTuning, error) {
	prev, err := l.store.Get(ctx)
	if err != nil {
		return domain.GlobalTuning{}, fmt.Errorf("load tuning: %w", err)
	}
	next := Learn(prev, adj)
	if err := l.store.Set(ctx, next); err != nil {
		return domain.GlobalTuning{}, fmt.Errorf("save tuning: %w", err)
	}

	l.metrics.RecordTuning(next.DryLossMult, next.RainEffMult)
	l.logger.Info("tuning updated",
		"adjustment_id", adj.ID,
		"storage_mult", adj.StorageMult,
		"dry_loss_mult", next.DryLossMult,
		"rain_eff_mult", next.RainEffMult,
	)
	return next, nil
}
