package cache

import (
	"context"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dpup/prefab/errors"
	"go.uber.org/zap"

	"github.com/dpup/info.ersn.net/routesim/internal/lib/geo"
)

// RouteCache holds decoded polylines keyed by a hash of the encoded string.
// Entries expire after the configured TTL; a zero TTL never expires.
type RouteCache struct {
	entries map[uint64]*RouteEntry
	mutex   sync.RWMutex
	ttl     time.Duration
	logger  *zap.Logger

	hits   uint64
	misses uint64
}

// RouteEntry is a cached decode result
type RouteEntry struct {
	Key       string      `json:"key"`
	Encoded   string      `json:"encoded"`
	Points    []geo.Point `json:"points"`
	Meters    float64     `json:"meters"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// CacheStats provides cache usage statistics
type CacheStats struct {
	TotalEntries int
	FreshEntries int
	StaleEntries int
	Hits         uint64
	Misses       uint64
	OldestEntry  time.Time
	NewestEntry  time.Time
}

// NewRouteCache creates a new route cache
func NewRouteCache(ttl time.Duration, logger *zap.Logger) *RouteCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouteCache{
		entries: make(map[uint64]*RouteEntry),
		ttl:     ttl,
		logger:  logger,
	}
}

// Key returns the cache key for an encoded polyline
func Key(encoded string) string {
	return strconv.FormatUint(xxhash.Sum64String(encoded), 16)
}

// Decode returns the decoded points for encoded, decoding and caching on a
// miss. Callers receive their own copy of the points. Decode errors are not
// cached.
func (c *RouteCache) Decode(encoded string) ([]geo.Point, error) {
	if points, ok := c.Get(encoded); ok {
		return points, nil
	}

	points, err := geo.DecodePolyline(encoded)
	if err != nil {
		return nil, err
	}
	c.Set(encoded, points)
	return clonePoints(points), nil
}

// Get returns cached points if present and fresh
func (c *RouteCache) Get(encoded string) ([]geo.Point, bool) {
	h := xxhash.Sum64String(encoded)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[h]
	// guard against hash collisions
	if !exists || entry.Encoded != encoded || c.stale(entry, time.Now()) {
		c.misses++
		return nil, false
	}
	c.hits++
	return clonePoints(entry.Points), true
}

// Set stores decoded points for encoded
func (c *RouteCache) Set(encoded string, points []geo.Point) {
	now := time.Now()
	entry := &RouteEntry{
		Key:       Key(encoded),
		Encoded:   encoded,
		Points:    clonePoints(points),
		Meters:    geo.PathLength(points),
		CreatedAt: now,
	}
	if c.ttl > 0 {
		entry.ExpiresAt = now.Add(c.ttl)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries[xxhash.Sum64String(encoded)] = entry
}

// Entry returns entry metadata, even if stale
func (c *RouteCache) Entry(encoded string) (RouteEntry, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.entries[xxhash.Sum64String(encoded)]
	if !exists || entry.Encoded != encoded {
		return RouteEntry{}, false
	}
	return *entry, true
}

// Delete removes an entry from cache. An entry stored under the same hash
// for a different polyline is left in place.
func (c *RouteCache) Delete(encoded string) {
	h := xxhash.Sum64String(encoded)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if entry, exists := c.entries[h]; exists && entry.Encoded == encoded {
		delete(c.entries, h)
	}
}

// Clear removes all entries from cache
func (c *RouteCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries = make(map[uint64]*RouteEntry)
}

// Stats returns cache statistics
func (c *RouteCache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := time.Now()
	stats := CacheStats{
		TotalEntries: len(c.entries),
		Hits:         c.hits,
		Misses:       c.misses,
	}

	for _, entry := range c.entries {
		if c.stale(entry, now) {
			stats.StaleEntries++
		} else {
			stats.FreshEntries++
		}

		if stats.OldestEntry.IsZero() || entry.CreatedAt.Before(stats.OldestEntry) {
			stats.OldestEntry = entry.CreatedAt
		}
		if entry.CreatedAt.After(stats.NewestEntry) {
			stats.NewestEntry = entry.CreatedAt
		}
	}

	return stats
}

// CleanupStale removes all stale entries from cache
func (c *RouteCache) CleanupStale() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	var removed int
	for key, entry := range c.entries {
		if c.stale(entry, now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// StartPeriodicCleanup removes stale entries every interval until ctx is done
func (c *RouteCache) StartPeriodicCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				fields := []zap.Field{zap.Any("error", r)}
				if stack, err := errors.ParseStack(debug.Stack()); err == nil {
					fields = append(fields, zap.Any("error.stack_trace", stack.MinimalStack(3, 5)))
				}
				c.logger.Error("Route cache cleanup: recovered from panic", fields...)
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := c.CleanupStale(); removed > 0 {
					c.logger.Debug("Route cache cleanup", zap.Int("removed", removed))
				}
			}
		}
	}()
}

func (c *RouteCache) stale(entry *RouteEntry, now time.Time) bool {
	return !entry.ExpiresAt.IsZero() && now.After(entry.ExpiresAt)
}

func clonePoints(points []geo.Point) []geo.Point {
	out := make([]geo.Point, len(points))
	copy(out, points)
	return out
}
