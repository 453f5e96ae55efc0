package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// LocalConfig configures the in-process cache backend.
type LocalConfig struct {
	MaxSize           int
	DefaultExpiration time.Duration
	CleanupInterval   time.Duration
}

// localCache wraps patrickmn/go-cache behind the Cache interface.
type localCache struct {
	store *gocache.Cache
}

// NewLocalCache creates an in-process cache.
func NewLocalCache(config LocalConfig) Cache {
	if config.DefaultExpiration <= 0 {
		config.DefaultExpiration = 5 * time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 10 * time.Minute
	}
	return &localCache{
		store: gocache.New(config.DefaultExpiration, config.CleanupInterval),
	}
}

func (c *localCache) Get(ctx context.Context, key string) (interface{}, bool) {
	return c.store.Get(key)
}

func (c *localCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.store.Set(key, value, expiration)
	return nil
}

func (c *localCache) Delete(ctx context.Context, key string) error {
	c.store.Delete(key)
	return nil
}

func (c *localCache) Exists(ctx context.Context, key string) bool {
	_, found := c.store.Get(key)
	return found
}

func (c *localCache) Clear(ctx context.Context) error {
	c.store.Flush()
	return nil
}

func (c *localCache) DeletePrefix(ctx context.Context, prefix string) error {
	for key := range c.store.Items() {
		if strings.HasPrefix(key, prefix) {
			c.store.Delete(key)
		}
	}
	return nil
}

func (c *localCache) Close() error {
	c.store.Flush()
	return nil
}
