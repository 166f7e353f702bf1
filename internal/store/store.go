// Package store maps the field-readiness document contracts onto a generic
// key/value document backend. Each typed store owns one collection and
// encodes its documents as JSON.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
)

// Collection names.
const (
	CollectionFields      = "fields"
	CollectionTruth       = "truth"
	CollectionThresholds  = "thresholds"
	CollectionTuning      = "tuning"
	CollectionCalibration = "calibration"
	CollectionAudit       = "calibration_adjustments"
)

// Backend is a document store with per-key get/upsert semantics. Get returns
// domain.ErrNotFound for missing keys. List returns documents ordered by key.
type Backend interface {
	Get(ctx context.Context, collection, key string) ([]byte, error)
	Put(ctx context.Context, collection, key string, doc []byte) error
	List(ctx context.Context, collection string) ([][]byte, error)
}

func getJSON(ctx context.Context, b Backend, collection, key string, dst any) error {
	raw, err := b.Get(ctx, collection, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &decodeError{err: fmt.Errorf("decode %s/%s: %w", collection, key, err)}
	}
	return nil
}

func putJSON(ctx context.Context, b Backend, collection, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	return b.Put(ctx, collection, key, data)
}

// mergeJSON upserts v over the existing document: top-level keys
// present in v replace the stored ones, the rest are kept.
func mergeJSON(ctx context.Context, b Backend, collection, key string, v any) error {
	update, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}

	existing, err := b.Get(ctx, collection, key)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return b.Put(ctx, collection, key, update)
	case err != nil:
		return err
	}

	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(existing, &merged); err != nil {
		// A malformed stored document is replaced wholesale.
		return b.Put(ctx, collection, key, update)
	}
	overlay := map[string]json.RawMessage{}
	if err := json.Unmarshal(update, &overlay); err != nil {
		return fmt.Errorf("merge %s/%s: %w", collection, key, err)
	}
	for k, val := range overlay {
		merged[k] = val
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	return b.Put(ctx, collection, key, data)
}

// decodeError marks a stored document that exists but does not decode.
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func isDecodeError(err error) bool {
	var de *decodeError
	return errors.As(err, &de)
}
