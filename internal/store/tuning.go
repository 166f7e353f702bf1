package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
)

const tuningKey = "global"

// Tuning implements domain.GlobalTuningStore.
type Tuning struct {
	backend Backend
	logger  *slog.Logger
}

// NewTuning creates a global tuning store over backend.
func NewTuning(backend Backend, logger *slog.Logger) *Tuning {
	return &Tuning{backend: backend, logger: logger}
}

// Get returns the sanitized tuning document, or neutral defaults when it is
// missing or malformed.
func (s *Tuning) Get(ctx context.Context) (domain.GlobalTuning, error) {
	var g domain.GlobalTuning
	err := getJSON(ctx, s.backend, CollectionTuning, tuningKey, &g)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.DefaultTuning(), nil
	case err != nil && isDecodeError(err):
		s.logger.Warn("malformed tuning document, using defaults", "error", err)
		return domain.DefaultTuning(), nil
	case err != nil:
		return domain.GlobalTuning{}, err
	}
	return g.Sanitize(), nil
}

// Set replaces the tuning document.
func (s *Tuning) Set(ctx context.Context, tuning domain.GlobalTuning) error {
	return putJSON(ctx, s.backend, CollectionTuning, tuningKey, tuning.Sanitize())
}
