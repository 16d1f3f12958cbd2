package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dmcsvoices/creative-ai-agents/internal/log"
)

const DefaultExpiration = 10 * time.Minute
const DefaultCleanupInterval = 30 * time.Minute

// InMemory is the in-process implementation of Manager, backed by go-cache.
type InMemory[K ~string, V any] struct {
	useCase string
	cache   *gocache.Cache
}

// NewInMemory initializes an in-memory cache. useCase labels the cache in
// log lines when multiple caches coexist.
func NewInMemory[K ~string, V any](useCase string, defaultExpiration, cleanupInterval time.Duration) *InMemory[K, V] {
	return &InMemory[K, V]{
		useCase: useCase,
		cache:   gocache.New(defaultExpiration, cleanupInterval),
	}
}

// Get retrieves an item from the cache by its key.
func (c *InMemory[K, V]) Get(ctx context.Context, key K) (V, bool) {
	var zero V

	value, found := c.cache.Get(string(key))
	if !found {
		return zero, false
	}

	v, ok := value.(V)
	if !ok {
		log.Error(log.CatCache, "wrong type assertion when getting value", "use_case", c.useCase, "key", string(key))
		return zero, false
	}

	log.Debug(log.CatCache, "cache hit", "use_case", c.useCase, "key", string(key))
	return v, true
}

// GetWithRefresh retrieves an item and, on a hit, re-arms its TTL.
func (c *InMemory[K, V]) GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool) {
	value, found := c.Get(ctx, key)
	if !found {
		return value, found
	}

	c.Set(ctx, key, value, ttl)
	return value, found
}

// Set stores a value under key with the given TTL.
func (c *InMemory[K, V]) Set(ctx context.Context, key K, value V, ttl time.Duration) {
	c.cache.Set(string(key), value, ttl)
}

// Delete removes the given keys.
func (c *InMemory[K, V]) Delete(ctx context.Context, keys ...K) error {
	for _, key := range keys {
		c.cache.Delete(string(key))
	}
	return nil
}

// Flush empties the cache.
func (c *InMemory[K, V]) Flush(ctx context.Context) error {
	c.cache.Flush()
	return nil
}
