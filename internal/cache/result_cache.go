// Package cache provides in-memory caching of deterministic simulation results.
package cache

import (
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/yourusername/scenario-risk/internal/metrics"
	"github.com/yourusername/scenario-risk/internal/simulation"
)

// ResultCache stores results keyed by their run fingerprint. A fingerprint
// fixes every input that affects the numbers, so a hit is exactly the result
// a fresh run would produce. Cached results are shared and must be treated as
// read-only.
type ResultCache struct {
	cache     *gocache.Cache
	ttl       time.Duration
	maxSize   int
	mu        sync.Mutex
	hitCount  uint64
	missCount uint64
}

// NewResultCache creates a result cache. A zero cleanup interval uses twice the TTL.
func NewResultCache(ttl, cleanupInterval time.Duration, maxSize int) *ResultCache {
	if cleanupInterval <= 0 {
		cleanupInterval = ttl * 2
	}
	return &ResultCache{
		cache:   gocache.New(ttl, cleanupInterval),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get retrieves a cached result by fingerprint
func (rc *ResultCache) Get(fingerprint string) (*simulation.Result, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if item, found := rc.cache.Get(fingerprint); found {
		if result, ok := item.(*simulation.Result); ok {
			rc.hitCount++
			metrics.RecordCacheLookup(true)
			return result, true
		}
	}

	rc.missCount++
	metrics.RecordCacheLookup(false)
	return nil, false
}

// Set stores a result under its fingerprint. When the cache is full, expired
// entries go first and then the entry closest to expiry.
func (rc *ResultCache) Set(result *simulation.Result) {
	if result == nil || result.Fingerprint == "" {
		return
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.maxSize > 0 && rc.cache.ItemCount() >= rc.maxSize {
		rc.cache.DeleteExpired()
		if rc.cache.ItemCount() >= rc.maxSize {
			rc.evictOldest()
		}
	}

	rc.cache.Set(result.Fingerprint, result, rc.ttl)
}

func (rc *ResultCache) evictOldest() {
	var (
		oldestKey string
		oldestExp int64
	)
	for k, item := range rc.cache.Items() {
		if oldestKey == "" || item.Expiration < oldestExp {
			oldestKey, oldestExp = k, item.Expiration
		}
	}
	if oldestKey != "" {
		rc.cache.Delete(oldestKey)
	}
}

// Invalidate removes every cached result of a scenario
func (rc *ResultCache) Invalidate(scenarioID uuid.UUID) int {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	removed := 0
	for k, item := range rc.cache.Items() {
		if result, ok := item.Object.(*simulation.Result); ok && result.ScenarioID == scenarioID {
			rc.cache.Delete(k)
			removed++
		}
	}
	return removed
}

// Clear flushes the entire cache
func (rc *ResultCache) Clear() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.cache.Flush()
	rc.hitCount = 0
	rc.missCount = 0
}

// Stats returns cache statistics
func (rc *ResultCache) Stats() (hits, misses uint64, ratio float64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	hits = rc.hitCount
	misses = rc.missCount
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

// ItemCount returns the number of items in cache
func (rc *ResultCache) ItemCount() int {
	return rc.cache.ItemCount()
}
