package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
)

const thresholdsKey = "operations"

// Thresholds implements domain.ThresholdStore. All operations share one
// document; missing or malformed entries fall back to the built-in defaults.
type Thresholds struct {
	backend Backend
	logger  *slog.Logger
}

// NewThresholds creates a threshold store over backend.
func NewThresholds(backend Backend, logger *slog.Logger) *Thresholds {
	return &Thresholds{backend: backend, logger: logger}
}

// Get returns the threshold of op.
func (s *Thresholds) Get(ctx context.Context, op domain.OpKey) (int, error) {
	all, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	v, ok := all[op]
	if !ok || v < 0 || v > 100 {
		if ok {
			s.logger.Warn("threshold out of range, using default", "op", op, "value", v)
		}
		return domain.DefaultThreshold(op), nil
	}
	return v, nil
}

// All returns every known operation's threshold.
func (s *Thresholds) All(ctx context.Context) (map[domain.OpKey]int, error) {
	out := make(map[domain.OpKey]int, len(domain.OpKeys()))
	for _, op := range domain.OpKeys() {
		v, err := s.Get(ctx, op)
		if err != nil {
			return nil, err
		}
		out[op] = v
	}
	return out, nil
}

// Set merges values into the threshold document.
func (s *Thresholds) Set(ctx context.Context, values map[domain.OpKey]int) error {
	return mergeJSON(ctx, s.backend, CollectionThresholds, thresholdsKey, values)
}

func (s *Thresholds) load(ctx context.Context) (map[domain.OpKey]int, error) {
	var all map[domain.OpKey]int
	err := getJSON(ctx, s.backend, CollectionThresholds, thresholdsKey, &all)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, nil
	case err != nil && isDecodeError(err):
		s.logger.Warn("malformed threshold document, using defaults", "error", err)
		return nil, nil
	case err != nil:
		return nil, err
	}
	return all, nil
}
