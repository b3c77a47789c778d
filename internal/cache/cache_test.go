package cache

import (
	"context"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dpup/info.ersn.net/routesim/internal/lib/geo"
)

const hwy4 = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"

func TestRouteCache_Decode(t *testing.T) {
	c := NewRouteCache(0, zaptest.NewLogger(t))

	points, err := c.Decode(hwy4)
	require.NoError(t, err)
	require.Len(t, points, 3)

	again, err := c.Decode(hwy4)
	require.NoError(t, err)
	assert.Equal(t, points, again)

	stats := c.Stats()
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)

	entry, ok := c.Entry(hwy4)
	require.True(t, ok)
	assert.Equal(t, Key(hwy4), entry.Key)
	assert.InDelta(t, geo.PathLength(points), entry.Meters, 1e-6)
}

func TestRouteCache_ReturnsCopies(t *testing.T) {
	c := NewRouteCache(0, nil)

	points, err := c.Decode(hwy4)
	require.NoError(t, err)
	points[0].Latitude = 0

	cached, ok := c.Get(hwy4)
	require.True(t, ok)
	assert.InDelta(t, 38.5, cached[0].Latitude, 1e-9)
}

func TestRouteCache_DecodeErrorNotCached(t *testing.T) {
	c := NewRouteCache(0, nil)

	_, err := c.Decode("_p~iF")
	var decodeErr *geo.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, 0, c.Stats().TotalEntries)
}

func TestRouteCache_TTL(t *testing.T) {
	c := NewRouteCache(10*time.Millisecond, nil)
	c.Set(hwy4, []geo.Point{{Latitude: 1, Longitude: 2}})

	_, ok := c.Get(hwy4)
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get(hwy4)
	assert.False(t, ok, "expired entries miss")
	assert.Equal(t, 1, c.Stats().StaleEntries)

	assert.Equal(t, 1, c.CleanupStale())
	assert.Equal(t, 0, c.Stats().TotalEntries)
}

func TestRouteCache_PeriodicCleanup(t *testing.T) {
	c := NewRouteCache(time.Millisecond, zaptest.NewLogger(t))
	c.Set(hwy4, []geo.Point{{Latitude: 1, Longitude: 2}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartPeriodicCleanup(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return c.Stats().TotalEntries == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRouteCache_DeleteAndClear(t *testing.T) {
	c := NewRouteCache(0, nil)
	c.Set("a", nil)
	c.Set("b", nil)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Stats().TotalEntries)
}

func TestRouteCache_DeleteKeepsCollidingEntry(t *testing.T) {
	c := NewRouteCache(0, nil)
	c.Set(hwy4, nil)

	// another polyline stored under the hash of "other"
	h := xxhash.Sum64String("other")
	c.entries[h] = &RouteEntry{Key: Key(hwy4), Encoded: hwy4}

	c.Delete("other")
	assert.Contains(t, c.entries, h, "entry for a different polyline survives")
	assert.Equal(t, 2, c.Stats().TotalEntries)

	c.Delete(hwy4)
	_, ok := c.Entry(hwy4)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Stats().TotalEntries)
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key(hwy4), Key(hwy4))
	assert.NotEqual(t, Key(hwy4), Key("??"))
}
