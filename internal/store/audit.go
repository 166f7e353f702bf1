package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
)

// Audit implements domain.AuditLog. Keys sort chronologically.
type Audit struct {
	backend Backend
}

// NewAudit creates a calibration audit log over backend.
func NewAudit(backend Backend) *Audit {
	return &Audit{backend: backend}
}

// Append stores adj.
func (s *Audit) Append(ctx context.Context, adj domain.CalibrationAdjustment) error {
	key := adj.CreatedAt.UTC().Format("20060102T150405.000000000Z") + "-" + adj.ID
	return putJSON(ctx, s.backend, CollectionAudit, key, adj)
}

// List returns every adjustment, oldest first.
func (s *Audit) List(ctx context.Context) ([]domain.CalibrationAdjustment, error) {
	docs, err := s.backend.List(ctx, CollectionAudit)
	if err != nil {
		return nil, fmt.Errorf("list adjustments: %w", err)
	}
	out := make([]domain.CalibrationAdjustment, 0, len(docs))
	for _, doc := range docs {
		var adj domain.CalibrationAdjustment
		if err := json.Unmarshal(doc, &adj); err != nil {
			continue
		}
		out = append(out, adj)
	}
	return out, nil
}

// Since returns adjustments created at or after t.
func (s *Audit) Since(ctx context.Context, t time.Time) ([]domain.CalibrationAdjustment, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, adj := range all {
		if !adj.CreatedAt.Before(t) {
			out = append(out, adj)
		}
	}
	return out, nil
}
