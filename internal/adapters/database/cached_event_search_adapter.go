package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/swingfinder/festival-finder/internal/domain/providers"
	"github.com/swingfinder/festival-finder/internal/domain/repositories"
	"github.com/swingfinder/festival-finder/internal/domain/search"
	"github.com/swingfinder/festival-finder/internal/infrastructure/observability"
)

// SearchCacheNamespace prefixes every cached search page
const SearchCacheNamespace = "events:search"

// CachedEventSearchAdapter wraps an EventSearchRepository with a page
// cache. Cache failures degrade to a direct search; they never fail the
// request.
type CachedEventSearchAdapter struct {
	adapter repositories.EventSearchRepository
	cache   providers.CacheProvider
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewCachedEventSearchAdapter creates a new cached event search adapter
func NewCachedEventSearchAdapter(adapter repositories.EventSearchRepository, cache providers.CacheProvider, ttl time.Duration, metrics *observability.Metrics) repositories.EventSearchRepository {
	return &CachedEventSearchAdapter{
		adapter: adapter,
		cache:   cache,
		ttl:     ttl,
		metrics: metrics,
	}
}

// SearchCacheKey returns the cache key of a query
func SearchCacheKey(q search.Query) string {
	sum := sha256.Sum256([]byte(q.Fingerprint()))
	return SearchCacheNamespace + ":" + hex.EncodeToString(sum[:])
}

// SearchWithCount returns a cached page when one exists, otherwise
// searches and caches the result asynchronously.
func (a *CachedEventSearchAdapter) SearchWithCount(ctx context.Context, q search.Query) (*search.Page, error) {
	cacheKey := SearchCacheKey(q)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var page search.Page
		decodeErr := json.Unmarshal(cached, &page)
		if decodeErr == nil {
			observability.RecordCacheHit(ctx, a.metrics, SearchCacheNamespace)
			return &page, nil
		}
		log.Warn().Err(decodeErr).Str("key", cacheKey).Msg("Failed to unmarshal cached search page")
	} else if !errors.Is(err, providers.ErrCacheMiss) {
		log.Warn().Err(err).Msg("Search cache read failed")
	}
	observability.RecordCacheMiss(ctx, a.metrics, SearchCacheNamespace)

	page, err := a.adapter.SearchWithCount(ctx, q)
	if err != nil {
		return nil, err
	}

	// Update cache asynchronously to avoid blocking the response
	data, err := json.Marshal(page)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to marshal search page for cache")
		return page, nil
	}
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.cache.Set(bgCtx, cacheKey, data, expirationSeconds(a.ttl)); err != nil {
			log.Warn().Err(err).Str("key", cacheKey).Msg("Failed to cache search page")
		}
	}()

	return page, nil
}

// expirationSeconds rounds ttl up to whole seconds. Providers read 0 as
// "never expires", so a positive sub-second ttl must not truncate to it.
func expirationSeconds(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	return int((ttl + time.Second - 1) / time.Second)
}

// Ping checks the underlying store; the cache is optional
func (a *CachedEventSearchAdapter) Ping(ctx context.Context) error {
	return a.adapter.Ping(ctx)
}
