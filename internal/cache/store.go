// Package cache provides the read-through cache for portfolio summaries.
// Entries are invalidated after every committed ledger mutation, and readers
// check the cached version against the store before serving one.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a byte-oriented key/value cache with TTLs.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// New returns a Redis store when addr is set and an in-process store otherwise.
func New(addr, password string, db int) Store {
	if addr == "" {
		return NewMemoryStore()
	}
	return NewRedisStore(&redis.Options{Addr: addr, Password: password, DB: db})
}

// PortfolioKey is the cache key of a user's portfolio summary.
func PortfolioKey(userID string) string { return "portfolio:" + userID }

// GetJSON decodes a cached value into dst.
func GetJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	b, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		// A corrupt entry is a miss.
		_ = s.Delete(ctx, key)
		return false, nil
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, b, ttl)
}
