package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/traceboard/traceboard/internal/models"
)

const (
	principalCacheTTL  = 5 * time.Minute
	negativeCacheTTL   = 30 * time.Second
	maxCacheEntries    = 10000
	cacheCleanupPeriod = 60 * time.Second
)

// errCachedNotFound is returned for negative cache hits.
var errCachedNotFound = errors.New("principal not found (cached)")

type cachedPrincipal struct {
	principal models.Principal
	negative  bool
	fetchedAt time.Time
}

// ttl returns the appropriate TTL for this entry.
func (cp cachedPrincipal) ttl() time.Duration {
	if cp.negative {
		return negativeCacheTTL
	}
	return principalCacheTTL
}

// hashKey returns a hex-encoded SHA-256 hash of the API key so raw keys
// are never stored in memory.
func hashKey(apiKey string) string {
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:])
}

// CachedPrincipalLookup wraps a PrincipalLookup with a bounded in-memory
// cache. Concurrent misses for the same key are collapsed into a single
// database lookup via singleflight.
type CachedPrincipalLookup struct {
	inner PrincipalLookup
	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]cachedPrincipal
}

// NewCachedPrincipalLookup creates a caching wrapper around the given lookup.
// The provided context controls the lifetime of the background eviction goroutine.
func NewCachedPrincipalLookup(ctx context.Context, inner PrincipalLookup) *CachedPrincipalLookup {
	c := &CachedPrincipalLookup{
		inner: inner,
		cache: make(map[string]cachedPrincipal),
	}
	go c.evictLoop(ctx)
	return c
}

// evictLoop periodically removes expired entries from the cache.
func (c *CachedPrincipalLookup) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(cacheCleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for k, v := range c.cache {
				if now.Sub(v.fetchedAt) >= v.ttl() {
					delete(c.cache, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

// GetPrincipalByAPIKey returns a cached principal or delegates to the inner
// lookup. Failed lookups are negatively cached for 30s to prevent
// brute-force DB hammering.
func (c *CachedPrincipalLookup) GetPrincipalByAPIKey(ctx context.Context, apiKey string) (models.Principal, error) {
	hk := hashKey(apiKey)

	c.mu.RLock()
	entry, ok := c.cache[hk]
	if ok && time.Since(entry.fetchedAt) < entry.ttl() {
		c.mu.RUnlock()
		if entry.negative {
			return models.Principal{}, errCachedNotFound
		}
		return entry.principal, nil
	}
	c.mu.RUnlock()

	// Cache miss or expired. Collapse concurrent lookups for this key.
	v, err, _ := c.group.Do(hk, func() (any, error) {
		principal, err := c.inner.GetPrincipalByAPIKey(ctx, apiKey)
		if err != nil {
			c.put(hk, cachedPrincipal{negative: true, fetchedAt: time.Now()})
			return nil, err
		}
		c.put(hk, cachedPrincipal{principal: principal, fetchedAt: time.Now()})
		return principal, nil
	})
	if err != nil {
		return models.Principal{}, err
	}

	return v.(models.Principal), nil
}

// put stores a cache entry, evicting expired and then arbitrary entries if
// the cache is at capacity.
func (c *CachedPrincipalLookup) put(key string, entry cachedPrincipal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cache) >= maxCacheEntries {
		now := time.Now()
		for k, v := range c.cache {
			if now.Sub(v.fetchedAt) >= v.ttl() {
				delete(c.cache, k)
			}
		}
		for k := range c.cache {
			if len(c.cache) < maxCacheEntries {
				break
			}
			delete(c.cache, k)
		}
	}
	c.cache[key] = entry
}
