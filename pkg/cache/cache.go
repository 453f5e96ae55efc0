package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is the unified cache interface shared by the local and redis
// backends. Values are stored as-is by the local backend and as strings
// by the redis backend, so callers should stick to string payloads when
// they need backend portability.
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) bool
	Clear(ctx context.Context) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

// Config selects and configures the cache backend.
type Config struct {
	Type  string // "local" or "redis"
	Redis RedisConfig
	Local LocalConfig
}

// NewCache creates a cache instance for the configured backend.
func NewCache(config Config) (Cache, error) {
	switch config.Type {
	case "", "local":
		return NewLocalCache(config.Local), nil
	case "redis":
		return NewRedisCache(config.Redis)
	default:
		return nil, fmt.Errorf("unknown cache type: %s", config.Type)
	}
}
