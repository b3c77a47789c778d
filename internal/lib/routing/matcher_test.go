package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/info.ersn.net/routesim/internal/lib/geo"
	"github.com/dpup/info.ersn.net/routesim/internal/lib/progress"
)

func hwy4Route() Route {
	return Route{
		ID:   "hwy4-angels-murphys",
		Name: "Hwy 4",
		Polyline: geo.Polyline{
			Points: []geo.Point{
				{Latitude: 38.0675, Longitude: -120.5436}, // Angels Camp
				{Latitude: 38.1391, Longitude: -120.4561}, // Murphys
			},
		},
		MaxDistance: 16093.4, // 10 miles in meters
	}
}

func TestRouteMatcher_Classify(t *testing.T) {
	matcher := NewRouteMatcher(0)
	ctx := context.Background()
	routes := []Route{hwy4Route()}

	// At Angels Camp
	loc, err := matcher.Classify(ctx, geo.Point{Latitude: 38.0675, Longitude: -120.5436}, routes)
	require.NoError(t, err)
	assert.Equal(t, OnRoute, loc.Classification)
	assert.Contains(t, loc.RouteIDs, "hwy4-angels-murphys")
	assert.Less(t, loc.DistanceMeters, 100.0)

	// Side road near Angels Camp
	loc, err = matcher.Classify(ctx, geo.Point{Latitude: 38.0800, Longitude: -120.5200}, routes)
	require.NoError(t, err)
	assert.Equal(t, Nearby, loc.Classification)
	assert.Contains(t, loc.RouteIDs, "hwy4-angels-murphys")
	assert.Greater(t, loc.DistanceMeters, 100.0)
	assert.Less(t, loc.DistanceMeters, 16093.4)

	// Far from the route
	loc, err = matcher.Classify(ctx, geo.Point{Latitude: 37.5000, Longitude: -121.0000}, routes)
	require.NoError(t, err)
	assert.Equal(t, Distant, loc.Classification)
	assert.Empty(t, loc.RouteIDs)
	assert.Greater(t, loc.DistanceMeters, 16093.4)
}

func TestRouteMatcher_MatchCursor(t *testing.T) {
	matcher := NewRouteMatcher(50)
	route := Route{
		ID: "equator",
		Polyline: geo.Polyline{Points: []geo.Point{
			{Latitude: 0, Longitude: 0},
			{Latitude: 0, Longitude: 1},
			{Latitude: 0, Longitude: 2},
		}},
	}

	m, err := matcher.Match(context.Background(), geo.Point{Latitude: 0.0001, Longitude: 1.5}, route)
	require.NoError(t, err)

	assert.Equal(t, OnRoute, m.Classification)
	assert.Equal(t, 1, m.SegmentIndex)
	assert.InDelta(t, 1.5, m.Cursor, 1e-9)
	assert.InDelta(t, 1.5, m.Projected.Longitude, 1e-9)
	assert.InDelta(t, 0, m.Projected.Latitude, 1e-9)
	assert.InDelta(t, 11.1, m.DistanceMeters, 0.1)
	assert.InDelta(t, 1.5*111195, m.TraveledMeters, 5)
}

func TestRouteMatcher_TraveledMatchesTracker(t *testing.T) {
	matcher := NewRouteMatcher(0)
	route := Route{
		ID: "sierra",
		Polyline: geo.Polyline{Points: []geo.Point{
			{Latitude: 38.0675, Longitude: -120.5436},
			{Latitude: 38.1391, Longitude: -120.4561},
			{Latitude: 38.2500, Longitude: -120.2000},
			{Latitude: 38.3000, Longitude: -120.0500},
		}},
		MaxDistance: 50000,
	}

	tracker := progress.NewTracker()
	require.NoError(t, tracker.Initialize(route.Polyline.Points))
	require.NoError(t, tracker.Start())

	for _, p := range []geo.Point{
		{Latitude: 38.1000, Longitude: -120.5200},
		{Latitude: 38.2000, Longitude: -120.3000},
		{Latitude: 38.2900, Longitude: -120.0600},
	} {
		m, err := matcher.Match(context.Background(), p, route)
		require.NoError(t, err)

		snap := tracker.Seek(m.Cursor)
		assert.InDelta(t, snap.TraveledMeters, m.TraveledMeters, 1e-6,
			"traveled distance agrees with the tracker at cursor %.4f", m.Cursor)
	}
}

func TestRouteMatcher_MultiRoute(t *testing.T) {
	matcher := NewRouteMatcher(0)

	hwy49 := Route{
		ID:   "hwy49-angels-camp",
		Name: "Hwy 49",
		Polyline: geo.Polyline{
			Points: []geo.Point{
				{Latitude: 38.0675, Longitude: -120.5436}, // Same start as Hwy 4 (Angels Camp)
				{Latitude: 38.0500, Longitude: -120.5600},
			},
		},
		MaxDistance: 16093.4,
	}

	loc, err := matcher.Classify(context.Background(), geo.Point{Latitude: 38.0675, Longitude: -120.5436}, []Route{hwy4Route(), hwy49})
	require.NoError(t, err)

	assert.Equal(t, OnRoute, loc.Classification)
	assert.Len(t, loc.RouteIDs, 2)
	assert.Contains(t, loc.RouteIDs, "hwy4-angels-murphys")
	assert.Contains(t, loc.RouteIDs, "hwy49-angels-camp")
}

func TestRouteMatcher_MatchOrdering(t *testing.T) {
	matcher := NewRouteMatcher(0)

	far := hwy4Route()
	far.ID = "far"
	far.MaxDistance = 0
	far.Polyline.Points = []geo.Point{
		{Latitude: 39.0, Longitude: -121.0},
		{Latitude: 39.1, Longitude: -121.1},
	}

	near := hwy4Route()
	near.ID = "near"

	loc, err := matcher.Classify(context.Background(), geo.Point{Latitude: 38.0800, Longitude: -120.5200}, []Route{far, near})
	require.NoError(t, err)

	require.Len(t, loc.Matches, 2)
	assert.Equal(t, "near", loc.Matches[0].RouteID)
	assert.Equal(t, Nearby, loc.Matches[0].Classification)
	assert.Equal(t, Distant, loc.Matches[1].Classification)
	assert.Equal(t, []string{"near"}, loc.RouteIDs)
}

func TestRouteMatcher_ClassifyPath(t *testing.T) {
	matcher := NewRouteMatcher(0)

	// A track that crosses the route between Angels Camp and Murphys
	path := []geo.Point{
		{Latitude: 38.0800, Longitude: -120.5300},
		{Latitude: 38.1200, Longitude: -120.4700},
	}

	loc, err := matcher.ClassifyPath(context.Background(), path, []Route{hwy4Route()})
	require.NoError(t, err)
	assert.NotEqual(t, Distant, loc.Classification)

	_, err = matcher.ClassifyPath(context.Background(), nil, []Route{hwy4Route()})
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestRouteMatcher_ConfigurableThresholds(t *testing.T) {
	matcher := NewRouteMatcher(0)

	customRoute := Route{
		ID:   "test-route",
		Name: "Test Route",
		Polyline: geo.Polyline{
			Points: []geo.Point{
				{Latitude: 38.0000, Longitude: -120.0000},
				{Latitude: 38.0100, Longitude: -120.0100},
			},
		},
		MaxDistance: 8046.7, // 5 miles
	}

	// ~12 km away: nearby at 10 miles, distant at 5
	loc, err := matcher.Classify(context.Background(), geo.Point{Latitude: 38.1000, Longitude: -120.1000}, []Route{customRoute})
	require.NoError(t, err)
	assert.Equal(t, Distant, loc.Classification)

	wide := NewRouteMatcher(20000)
	loc, err = wide.Classify(context.Background(), geo.Point{Latitude: 38.1000, Longitude: -120.1000}, []Route{customRoute})
	require.NoError(t, err)
	assert.Equal(t, OnRoute, loc.Classification)
}

func TestRouteMatcher_ErrorHandling(t *testing.T) {
	matcher := NewRouteMatcher(0)
	ctx := context.Background()
	point := geo.Point{Latitude: 38.0000, Longitude: -120.0000}

	loc, err := matcher.Classify(ctx, point, []Route{})
	require.NoError(t, err)
	assert.Equal(t, Distant, loc.Classification, "no routes is distant")

	invalidRoute := Route{
		ID:          "invalid-route",
		Polyline:    geo.Polyline{Points: []geo.Point{}},
		MaxDistance: 16093.4,
	}
	_, err = matcher.Classify(ctx, point, []Route{invalidRoute})
	assert.ErrorIs(t, err, ErrInvalidRoute)

	_, err = matcher.Match(ctx, geo.Point{Latitude: 91, Longitude: 0}, hwy4Route())
	assert.Error(t, err)
}

func BenchmarkRouteMatcher_Classify(b *testing.B) {
	matcher := NewRouteMatcher(0)
	ctx := context.Background()
	routes := []Route{hwy4Route()}
	point := geo.Point{Latitude: 38.1000, Longitude: -120.5000}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = matcher.Classify(ctx, point, routes)
	}
}
