// Package store provides the ephemeral TTL-capable key/value client
// backing rate-limit counters and session presence.
package store

import (
	"context"
	"time"
)

// Store defines the per-key operations required by the abuse guard and
// session manager. Increment and SetWithTTL must be atomic at the store
// level; read-modify-write sequences are not acceptable implementations.
type Store interface {
	// Get returns the value at key; ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// SetWithTTL stores value at key, overwriting any prior value, and
	// arms the expiry.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	// Increment atomically bumps the integer at key, creating it with
	// the given ttl. The ttl is applied only when the increment creates
	// the key; later increments within the window never refresh it.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Delete removes key; deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Exists reports key presence without reading the value.
	Exists(ctx context.Context, key string) (bool, error)
	// Ping verifies connectivity for health reporting.
	Ping(ctx context.Context) error
	// Stats returns debug counters from the backend.
	Stats(ctx context.Context) (map[string]any, error)
	Close(ctx context.Context) error
}

// Config describes the high level store selection parameters.
type Config struct {
	Driver string
	Redis  *RedisConfig
	Memory *MemoryConfig
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// MemoryConfig holds in-memory tuning knobs.
type MemoryConfig struct {
	GCInterval time.Duration
}
