package store

import (
	"context"
	"errors"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
)

// Truth implements domain.TruthStateStore.
type Truth struct {
	backend Backend
}

// NewTruth creates a truth-state store over backend.
func NewTruth(backend Backend) *Truth {
	return &Truth{backend: backend}
}

// Get returns the persisted state of fieldID. The boolean is false when the
// field has no truth yet.
func (s *Truth) Get(ctx context.Context, fieldID string) (domain.StorageState, bool, error) {
	var st domain.StorageState
	err := getJSON(ctx, s.backend, CollectionTruth, fieldID, &st)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.StorageState{}, false, nil
	case err != nil:
		return domain.StorageState{}, false, err
	}
	return st.Normalize(), true, nil
}

// Set upsert-merges state for fieldID. The storage invariant is enforced
// before writing.
func (s *Truth) Set(ctx context.Context, fieldID string, state domain.StorageState) error {
	state.FieldID = fieldID
	return mergeJSON(ctx, s.backend, CollectionTruth, fieldID, state.Normalize())
}
