package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller lacks edit permission.
	ErrForbidden = errors.New("edit permission required")
)

// WeatherSeriesProvider supplies a field's ordered daily history and forecast.
type WeatherSeriesProvider interface {
	Series(ctx context.Context, field Field) (WeatherSeries, error)
}

// FieldStore lists and stores fields.
type FieldStore interface {
	List(ctx context.Context) ([]Field, error)
	Get(ctx context.Context, id string) (Field, error)
	Put(ctx context.Context, field Field) error
}

// TruthStateStore persists each field's carry-over storage. Set has
// upsert-merge semantics.
type TruthStateStore interface {
	Get(ctx context.Context, fieldID string) (StorageState, bool, error)
	Set(ctx context.Context, fieldID string, state StorageState) error
}

// ThresholdStore returns the readiness threshold of an operation.
type ThresholdStore interface {
	Get(ctx context.Context, op OpKey) (int, error)
}

// GlobalTuningStore persists the single fleet-wide tuning document.
type GlobalTuningStore interface {
	Get(ctx context.Context) (GlobalTuning, error)
	Set(ctx context.Context, tuning GlobalTuning) error
}

// CooldownLock persists the calibration lock. Set records an application at
// now and derives the next allowed time from the configured window.
type CooldownLock interface {
	Get(ctx context.Context) (CooldownState, error)
	Set(ctx context.Context, now time.Time) error
}

// PermissionGate decides whether the caller may run calibration operations.
type PermissionGate interface {
	CanEdit(ctx context.Context) bool
}

// AuditLog stores calibration adjustments.
type AuditLog interface {
	Append(ctx context.Context, adj CalibrationAdjustment) error
	List(ctx context.Context) ([]CalibrationAdjustment, error)
}

// AuditPublisher emits calibration adjustments to downstream consumers.
type AuditPublisher interface {
	Publish(ctx context.Context, adj CalibrationAdjustment) error
}

// AllowAll is a PermissionGate that always grants edit access.
type AllowAll struct{}

func (AllowAll) CanEdit(context.Context) bool { return true }
