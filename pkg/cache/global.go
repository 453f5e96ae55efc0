package cache

import (
	"context"
	"sync"
	"time"
)

var (
	globalCache Cache
	globalOnce  sync.Once
	globalMu    sync.RWMutex
)

// InitGlobalCache initializes the process-wide cache instance.
func InitGlobalCache(config Config) error {
	var err error
	globalOnce.Do(func() {
		globalMu.Lock()
		defer globalMu.Unlock()
		globalCache, err = NewCache(config)
	})
	return err
}

// GetGlobalCache returns the process-wide cache instance, lazily creating
// a default local cache when Init was never called.
func GetGlobalCache() Cache {
	globalMu.RLock()
	if globalCache != nil {
		globalMu.RUnlock()
		return globalCache
	}
	globalMu.RUnlock()

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCache == nil {
		globalCache = NewLocalCache(LocalConfig{
			MaxSize:           1000,
			DefaultExpiration: 5 * time.Minute,
			CleanupInterval:   10 * time.Minute,
		})
	}
	return globalCache
}

// SetGlobalCache replaces the process-wide cache instance (used in tests).
func SetGlobalCache(c Cache) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalCache = c
}

// CloseGlobalCache closes the process-wide cache connection.
func CloseGlobalCache() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCache != nil {
		err := globalCache.Close()
		globalCache = nil
		return err
	}
	return nil
}

// Convenience wrappers over the global instance.

func Get(ctx context.Context, key string) (interface{}, bool) {
	return GetGlobalCache().Get(ctx, key)
}

func Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return GetGlobalCache().Set(ctx, key, value, expiration)
}

func Delete(ctx context.Context, key string) error {
	return GetGlobalCache().Delete(ctx, key)
}

func Exists(ctx context.Context, key string) bool {
	return GetGlobalCache().Exists(ctx, key)
}

func Clear(ctx context.Context) error {
	return GetGlobalCache().Clear(ctx)
}
