// Package redis provides a document backend on Redis hashes, one hash per
// collection, for deployments that share state across replicas.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/couchcryptid/field-readiness-service/internal/domain"
)

// Backend maps collection/key onto HGET/HSET of "<prefix>:<collection>".
type Backend struct {
	rdb    goredis.UniversalClient
	prefix string
}

// New dials addr and pings it before returning.
func New(ctx context.Context, addr, prefix string) (*Backend, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewFromClient(rdb, prefix), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(rdb goredis.UniversalClient, prefix string) *Backend {
	if prefix == "" {
		prefix = "readiness"
	}
	return &Backend{rdb: rdb, prefix: prefix}
}

func (b *Backend) hash(collection string) string {
	return b.prefix + ":" + collection
}

func (b *Backend) Get(ctx context.Context, collection, key string) ([]byte, error) {
	raw, err := b.rdb.HGet(ctx, b.hash(collection), key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis hget %s/%s: %w", collection, key, err)
	}
	return raw, nil
}

func (b *Backend) Put(ctx context.Context, collection, key string, doc []byte) error {
	if err := b.rdb.HSet(ctx, b.hash(collection), key, doc).Err(); err != nil {
		return fmt.Errorf("redis hset %s/%s: %w", collection, key, err)
	}
	return nil
}

func (b *Backend) List(ctx context.Context, collection string) ([][]byte, error) {
	all, err := b.rdb.HGetAll(ctx, b.hash(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", collection, err)
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, []byte(all[k]))
	}
	return out, nil
}

// Ping checks the connection.
func (b *Backend) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

// Close closes the underlying client.
func (b *Backend) Close() error {
	return b.rdb.Close()
}
