package progress

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dpup/info.ersn.net/routesim/internal/lib/geo"
	"github.com/dpup/info.ersn.net/routesim/internal/lib/instructions"
)

var equatorRoute = []geo.Point{
	{Latitude: 0, Longitude: 0},
	{Latitude: 0, Longitude: 1},
	{Latitude: 0, Longitude: 2},
}

// Highway 4: Angels Camp to Murphys with an intermediate point
var hwy4Route = []geo.Point{
	{Latitude: 38.0675, Longitude: -120.5436},
	{Latitude: 38.0925, Longitude: -120.5186},
	{Latitude: 38.1175, Longitude: -120.4936},
	{Latitude: 38.1391, Longitude: -120.4561},
}

func newActiveTracker(t *testing.T, route []geo.Point, opts ...Option) *Tracker {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	tracker := NewTracker(opts...)
	require.NoError(t, tracker.Initialize(route))
	require.NoError(t, tracker.Start())
	return tracker
}

func TestTracker_InitializeInsufficientPoints(t *testing.T) {
	for _, route := range [][]geo.Point{nil, {}, {{Latitude: 1, Longitude: 1}}} {
		err := NewTracker().Initialize(route)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInsufficientPoints))

		var ipe *InsufficientPointsError
		require.True(t, errors.As(err, &ipe))
		assert.Equal(t, len(route), ipe.Count)
	}
}

func TestTracker_StartWithoutRoute(t *testing.T) {
	assert.ErrorIs(t, NewTracker().Start(), ErrNotInitialized)
}

func TestTracker_TotalMatchesSegmentSum(t *testing.T) {
	for _, route := range [][]geo.Point{equatorRoute, hwy4Route} {
		tracker := NewTracker()
		require.NoError(t, tracker.Initialize(route))

		sum := 0.0
		for i := 0; i+1 < len(route); i++ {
			sum += geo.Distance(route[i], route[i+1])
		}
		assert.InDelta(t, sum, tracker.Total(), 1e-6)
	}
}

func TestTracker_ScenarioA(t *testing.T) {
	tracker := newActiveTracker(t, equatorRoute)

	assert.InDelta(t, 222390, tracker.Total(), 2)

	snap := tracker.Seek(0.5)
	assert.InDelta(t, 55597, snap.TraveledMeters, 1)
	assert.InDelta(t, 25, snap.Percentage, 0.01)
	assert.InDelta(t, tracker.Total()-snap.TraveledMeters, snap.RemainingMeters, 1e-6)
	assert.InDelta(t, 0.5, snap.Position.Longitude, 1e-12)
	assert.InDelta(t, 90, snap.BearingDegrees, 1e-9)
	assert.Equal(t, 0, snap.SegmentIndex)
}

func TestTracker_SeekEndpoints(t *testing.T) {
	for _, route := range [][]geo.Point{equatorRoute, hwy4Route} {
		tracker := newActiveTracker(t, route)

		tracker.Seek(0)
		assert.Equal(t, 0.0, tracker.CurrentProgress().Percentage)

		last := float64(len(route) - 1)
		tracker.Seek(last)
		progress := tracker.CurrentProgress()
		assert.InDelta(t, 100, progress.Percentage, 1e-9)
		assert.InDelta(t, 0, progress.RemainingMeters, 1e-6)
		assert.InDelta(t, route[len(route)-1].Latitude, progress.Position.Latitude, 1e-12)
		assert.InDelta(t, route[len(route)-1].Longitude, progress.Position.Longitude, 1e-12)
		assert.Equal(t, instructions.ArrivedText, progress.Instruction)
	}
}

func TestTracker_SeekClamps(t *testing.T) {
	tracker := newActiveTracker(t, equatorRoute)

	assert.Equal(t, 2.0, tracker.Seek(99).Cursor)
	assert.Equal(t, 0.0, tracker.Seek(-5).Cursor)
	assert.Equal(t, 0.0, tracker.Seek(math.NaN()).Cursor)
	assert.Equal(t, 2.0, tracker.Seek(math.Inf(1)).Cursor)
}

func TestTracker_AdvanceMatchesSeek(t *testing.T) {
	steps := []float64{DefaultStep, 0.25, 1.75, 5, -3}

	for _, start := range []float64{0, 0.5, 1.2, 3} {
		for _, step := range steps {
			a := newActiveTracker(t, hwy4Route)
			b := newActiveTracker(t, hwy4Route)

			a.Seek(start)
			b.Seek(start)
			from := a.Cursor()

			got := a.Advance(step)
			want := b.Seek(math.Max(0, math.Min(float64(len(hwy4Route)-1), from+step)))
			assert.Equal(t, want, got, "start=%v step=%v", start, step)
		}
	}
}

func TestTracker_Retreat(t *testing.T) {
	tracker := newActiveTracker(t, hwy4Route)

	tracker.Seek(2.5)
	assert.InDelta(t, 1.5, tracker.Retreat(DefaultStep).Cursor, 1e-12)
	assert.Equal(t, 0.0, tracker.Retreat(10).Cursor)
}

func TestTracker_SeekIgnoredWhileIdle(t *testing.T) {
	var events []Event
	tracker := NewTracker(WithListener(func(e Event) { events = append(events, e) }))
	require.NoError(t, tracker.Initialize(equatorRoute))

	tracker.Seek(1)
	tracker.Advance(1)
	assert.Equal(t, 0.0, tracker.Cursor())
	assert.Empty(t, events)

	_, ok := tracker.SnapToClosest(geo.Point{Latitude: 0, Longitude: 1}, 0)
	assert.False(t, ok)
}

func TestTracker_Events(t *testing.T) {
	var events []Event
	tracker := newActiveTracker(t, equatorRoute, WithListener(func(e Event) { events = append(events, e) }))

	tracker.Seek(1.5)
	tracker.Stop()
	tracker.Stop() // no second stopped event

	require.Len(t, events, 3)
	assert.Equal(t, EventStarted, events[0].Type)
	assert.Equal(t, 0.0, events[0].Snapshot.Percentage)
	assert.Equal(t, EventPositionChanged, events[1].Type)
	assert.InDelta(t, 75, events[1].Snapshot.Percentage, 0.01)
	assert.Equal(t, EventStopped, events[2].Type)
	assert.InDelta(t, 75, events[2].Snapshot.Percentage, 0.01, "stopped event carries the last position")

	assert.Equal(t, StateIdle, tracker.State())
	assert.Equal(t, 0.0, tracker.Cursor())
	assert.Equal(t, "position_changed", EventPositionChanged.String())
}

func TestTracker_SnapToClosest(t *testing.T) {
	tracker := newActiveTracker(t, equatorRoute)

	result, ok := tracker.SnapToClosest(geo.Point{Latitude: 0, Longitude: 0.5}, DefaultSnapThreshold)
	require.True(t, ok)
	assert.InDelta(t, 0.5, result.Projection.T, 1e-12)
	assert.InDelta(t, 0, result.Projection.DistanceMeters, 1e-6)
	assert.Equal(t, 0, result.SegmentIndex)
	assert.InDelta(t, 0.5, tracker.Cursor(), 1e-12)

	result, ok = tracker.SnapToClosest(geo.Point{Latitude: 0.0005, Longitude: 1.5}, 0)
	require.True(t, ok, "55 m off the route is within the default threshold")
	assert.Equal(t, 1, result.SegmentIndex)
	assert.InDelta(t, 1.5, tracker.Cursor(), 1e-12)
}

func TestTracker_SnapBeyondThreshold(t *testing.T) {
	tracker := newActiveTracker(t, equatorRoute)
	tracker.Seek(1.25)

	result, ok := tracker.SnapToClosest(geo.Point{Latitude: 0.01, Longitude: 0.5}, DefaultSnapThreshold)
	assert.False(t, ok)
	assert.Greater(t, result.Projection.DistanceMeters, DefaultSnapThreshold)
	assert.Equal(t, 1.25, tracker.Cursor(), "cursor untouched on failed snap")
}

func TestTracker_CursorAt(t *testing.T) {
	tracker := newActiveTracker(t, equatorRoute)
	segment := geo.Distance(equatorRoute[0], equatorRoute[1])

	assert.Equal(t, 0.0, tracker.CursorAt(-10))
	assert.Equal(t, 2.0, tracker.CursorAt(tracker.Total()*2))
	assert.InDelta(t, 0.5, tracker.CursorAt(segment/2), 1e-9)
	assert.InDelta(t, 1.0, tracker.CursorAt(segment), 1e-9)
	assert.InDelta(t, 1.25, tracker.CursorAt(segment*1.25), 1e-9)

	snap := tracker.SeekDistance(segment * 1.5)
	assert.InDelta(t, segment*1.5, snap.TraveledMeters, 1e-6)
}

func TestTracker_ZeroLengthRoute(t *testing.T) {
	same := geo.Point{Latitude: 10, Longitude: 10}
	tracker := newActiveTracker(t, []geo.Point{same, same})

	snap := tracker.Seek(1)
	assert.Equal(t, 0.0, snap.Percentage, "percentage is 0 when total distance is 0")
	assert.Equal(t, 0.0, tracker.Total())
}

func TestTracker_InitializeCopiesRoute(t *testing.T) {
	route := append([]geo.Point(nil), equatorRoute...)
	tracker := newActiveTracker(t, route)

	route[2] = geo.Point{Latitude: 50, Longitude: 50}
	tracker.Seek(2)
	assert.Equal(t, equatorRoute[2], tracker.CurrentProgress().Position)
}

func TestTracker_CustomSynthesizer(t *testing.T) {
	synth := instructions.SynthesizerFunc(func(ctx instructions.Context) string {
		if ctx.SegmentIndex == 1 {
			return "second leg"
		}
		return "first leg"
	})
	tracker := newActiveTracker(t, equatorRoute, WithSynthesizer(synth))

	assert.Equal(t, "first leg", tracker.Seek(0.5).Instruction)
	assert.Equal(t, "second leg", tracker.Seek(1.5).Instruction)
}
