package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/swingfinder/festival-finder/internal/domain/providers"
)

// MemoryAdapter implements CacheProvider in process with go-cache. It
// stands in for Redis on single-instance deployments and when Redis is
// unreachable at startup.
type MemoryAdapter struct {
	cache *gocache.Cache
}

// NewMemoryAdapter creates an in-process cache. Entries stored with a
// non-positive expiration use defaultExpiration.
func NewMemoryAdapter(defaultExpiration, cleanupInterval time.Duration) *MemoryAdapter {
	return &MemoryAdapter{cache: gocache.New(defaultExpiration, cleanupInterval)}
}

var _ providers.CacheProvider = (*MemoryAdapter)(nil)

// Get retrieves a value from cache. A missing key returns ErrCacheMiss.
func (a *MemoryAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	val, found := a.cache.Get(key)
	if !found {
		return nil, providers.ErrCacheMiss
	}
	b, ok := val.([]byte)
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return b, nil
}

// Set stores a copy of value
func (a *MemoryAdapter) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	expiration := gocache.DefaultExpiration
	if expirationSeconds > 0 {
		expiration = time.Duration(expirationSeconds) * time.Second
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	a.cache.Set(key, stored, expiration)
	return nil
}

// Delete removes a value from cache
func (a *MemoryAdapter) Delete(ctx context.Context, key string) error {
	a.cache.Delete(key)
	return nil
}

// Exists checks if a key exists in cache
func (a *MemoryAdapter) Exists(ctx context.Context, key string) (bool, error) {
	_, found := a.cache.Get(key)
	return found, nil
}

// DeletePrefix removes every key starting with prefix
func (a *MemoryAdapter) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	deleted := 0
	for key := range a.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			a.cache.Delete(key)
			deleted++
		}
	}
	return deleted, nil
}

// Count returns the number of cached entries, including expired ones
// not yet cleaned up.
func (a *MemoryAdapter) Count() int {
	return a.cache.ItemCount()
}
