// Package memory provides an in-process document backend for tests and
// single-instance development runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
)

// Backend stores documents in nested maps guarded by a RWMutex.
type Backend struct {
	mu   sync.RWMutex
	docs map[string]map[string][]byte
}

// New creates an empty Backend.
func New() *Backend {
	return &Backend{docs: make(map[string]map[string][]byte)}
}

func (b *Backend) Get(_ context.Context, collection, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	doc, ok := b.docs[collection][key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), doc...), nil
}

func (b *Backend) Put(_ context.Context, collection, key string, doc []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.docs[collection]
	if !ok {
		c = make(map[string][]byte)
		b.docs[collection] = c
	}
	c[key] = append([]byte(nil), doc...)
	return nil
}

func (b *Backend) List(_ context.Context, collection string) ([][]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c := b.docs[collection]
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, append([]byte(nil), c[k]...))
	}
	return out, nil
}

// Ping always succeeds.
func (b *Backend) Ping(context.Context) error { return nil }

// Close is a no-op.
func (b *Backend) Close() error { return nil }
