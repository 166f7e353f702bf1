package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
)

// Fields implements domain.FieldStore.
type Fields struct {
	backend Backend
}

// NewFields creates a field store over backend.
func NewFields(backend Backend) *Fields {
	return &Fields{backend: backend}
}

// List returns every stored field ordered by id. Undecodable documents are skipped.
func (s *Fields) List(ctx context.Context) ([]domain.Field, error) {
	docs, err := s.backend.List(ctx, CollectionFields)
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	fields := make([]domain.Field, 0, len(docs))
	for _, doc := range docs {
		var f domain.Field
		if err := json.Unmarshal(doc, &f); err != nil || f.ID == "" {
			continue
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// Get returns the field with id or an error wrapping domain.ErrNotFound.
func (s *Fields) Get(ctx context.Context, id string) (domain.Field, error) {
	var f domain.Field
	if err := getJSON(ctx, s.backend, CollectionFields, id, &f); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Field{}, fmt.Errorf("field %q: %w", id, domain.ErrNotFound)
		}
		return domain.Field{}, err
	}
	return f, nil
}

// Put stores field, replacing any existing document with the same id.
func (s *Fields) Put(ctx context.Context, field domain.Field) error {
	if field.ID == "" {
		return errors.New("field id is required")
	}
	return putJSON(ctx, s.backend, CollectionFields, field.ID, field)
}
