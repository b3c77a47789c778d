package progress

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/dpup/info.ersn.net/routesim/internal/lib/geo"
	"github.com/dpup/info.ersn.net/routesim/internal/lib/instructions"
)

// Tracker owns a route and a cursor along it. A Tracker is not safe for
// concurrent use; it is driven by a single owner and hands out Snapshot
// values.
type Tracker struct {
	logger   *zap.Logger
	listener func(Event)
	synth    instructions.Synthesizer

	points     []geo.Point
	segments   []float64 // segments[i] = length of points[i] -> points[i+1]
	cumulative []float64 // cumulative[i] = distance from points[0] to points[i]
	total      float64

	cursor float64
	state  State
}

// Option configures a Tracker
type Option func(*Tracker)

// WithLogger sets the tracker logger
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithListener registers a function called synchronously for every event
func WithListener(fn func(Event)) Option {
	return func(t *Tracker) { t.listener = fn }
}

// WithSynthesizer replaces the instruction synthesizer used for snapshots
func WithSynthesizer(s instructions.Synthesizer) Option {
	return func(t *Tracker) {
		if s != nil {
			t.synth = s
		}
	}
}

// NewTracker creates an idle tracker with no route
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		logger: zap.NewNop(),
		synth:  instructions.NewTemplateSynthesizer(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Initialize loads a route and builds the prefix-sum distance table. An
// active tracker is stopped first. The route is copied.
func (t *Tracker) Initialize(route []geo.Point) error {
	if len(route) < 2 {
		return &InsufficientPointsError{Count: len(route)}
	}

	t.Stop()

	points := make([]geo.Point, len(route))
	copy(points, route)

	segments := make([]float64, len(points)-1)
	cumulative := make([]float64, len(points))
	for i := range segments {
		segments[i] = geo.Distance(points[i], points[i+1])
		cumulative[i+1] = cumulative[i] + segments[i]
	}

	t.points = points
	t.segments = segments
	t.cumulative = cumulative
	t.total = cumulative[len(cumulative)-1]
	t.cursor = 0

	t.logger.Debug("Route initialized",
		zap.Int("points", len(points)),
		zap.Float64("total_meters", t.total))
	return nil
}

// Start moves the tracker to Active with the cursor at the route start.
// Starting an active tracker is a no-op.
func (t *Tracker) Start() error {
	if len(t.points) < 2 {
		return ErrNotInitialized
	}
	if t.state == StateActive {
		return nil
	}

	t.state = StateActive
	t.cursor = 0
	t.emit(EventStarted)
	t.logger.Debug("Route tracking started")
	return nil
}

// Stop returns the tracker to Idle and clears the cursor. The stopped event
// carries the position at the moment of stopping.
func (t *Tracker) Stop() {
	if t.state != StateActive {
		return
	}

	snapshot := t.CurrentProgress()
	t.state = StateIdle
	t.cursor = 0
	t.notify(Event{Type: EventStopped, Snapshot: snapshot})
	t.logger.Debug("Route tracking stopped", zap.Float64("percentage", snapshot.Percentage))
}

// Seek moves the cursor to index, clamped to [0, pointCount-1]. Seeks while
// idle are ignored. The returned snapshot reflects the cursor after the call.
func (t *Tracker) Seek(index float64) Snapshot {
	if t.state != StateActive {
		return t.CurrentProgress()
	}

	t.cursor = t.clamp(index)
	snapshot := t.CurrentProgress()
	t.notify(Event{Type: EventPositionChanged, Snapshot: snapshot})
	return snapshot
}

// Advance moves the cursor forward by steps points
func (t *Tracker) Advance(steps float64) Snapshot {
	return t.Seek(t.cursor + steps)
}

// Retreat moves the cursor backward by steps points
func (t *Tracker) Retreat(steps float64) Snapshot {
	return t.Seek(t.cursor - steps)
}

// SeekDistance moves the cursor to the point meters along the route
func (t *Tracker) SeekDistance(meters float64) Snapshot {
	return t.Seek(t.CursorAt(meters))
}

// CursorAt converts a distance along the route into a cursor position using
// the prefix-sum table.
func (t *Tracker) CursorAt(meters float64) float64 {
	if len(t.points) < 2 || meters <= 0 || math.IsNaN(meters) {
		return 0
	}
	if meters >= t.total {
		return float64(len(t.points) - 1)
	}

	// first point at or beyond meters; otherwise the segment starts one before it
	next := sort.SearchFloat64s(t.cumulative, meters)
	if next < len(t.cumulative) && t.cumulative[next] == meters {
		return float64(next)
	}
	i := next - 1
	if t.segments[i] == 0 {
		return float64(i)
	}
	return float64(i) + (meters-t.cumulative[i])/t.segments[i]
}

// SnapToClosest projects p onto every segment and moves the cursor to the
// nearest projection when it lies within thresholdMeters. A non-positive
// threshold uses DefaultSnapThreshold. The cursor is untouched on failure.
func (t *Tracker) SnapToClosest(p geo.Point, thresholdMeters float64) (SnapResult, bool) {
	if t.state != StateActive || len(t.points) < 2 {
		return SnapResult{}, false
	}
	if thresholdMeters <= 0 {
		thresholdMeters = DefaultSnapThreshold
	}

	best := SnapResult{Projection: geo.Projection{DistanceMeters: math.Inf(1)}}
	for i := 0; i < len(t.points)-1; i++ {
		proj := geo.ProjectPointOnSegment(p, t.points[i], t.points[i+1])
		if proj.DistanceMeters < best.Projection.DistanceMeters {
			best = SnapResult{
				Cursor:       float64(i) + proj.T,
				SegmentIndex: i,
				Projection:   proj,
			}
		}
	}

	if best.Projection.DistanceMeters > thresholdMeters {
		t.logger.Debug("Snap rejected",
			zap.Float64("distance_meters", best.Projection.DistanceMeters),
			zap.Float64("threshold_meters", thresholdMeters))
		return best, false
	}

	t.Seek(best.Cursor)
	return best, true
}

// CurrentProgress computes a snapshot at the current cursor
func (t *Tracker) CurrentProgress() Snapshot {
	if len(t.points) < 2 {
		return Snapshot{Instruction: instructions.ReadyText}
	}

	i, frac := t.segmentAt(t.cursor)
	start, end := t.points[i], t.points[i+1]

	traveled := t.cumulative[i] + t.segments[i]*frac
	remaining := math.Max(0, t.total-traveled)

	percentage := 0.0
	if t.total > 0 {
		percentage = traveled / t.total * 100
	}

	return Snapshot{
		Percentage:      percentage,
		TraveledMeters:  traveled,
		RemainingMeters: remaining,
		TotalMeters:     t.total,
		BearingDegrees:  geo.Bearing(start, end),
		Position:        geo.Lerp(start, end, frac),
		Cursor:          t.cursor,
		SegmentIndex:    i,
		Instruction: t.synth.Instruction(instructions.Context{
			Ratio:           percentage / 100,
			SegmentIndex:    i,
			TraveledMeters:  traveled,
			RemainingMeters: remaining,
		}),
	}
}

// Cursor returns the current cursor position
func (t *Tracker) Cursor() float64 { return t.cursor }

// State returns the run state
func (t *Tracker) State() State { return t.state }

// Total returns the cached route length in meters
func (t *Tracker) Total() float64 { return t.total }

// PointCount returns the number of points in the loaded route
func (t *Tracker) PointCount() int { return len(t.points) }

// Points returns a copy of the loaded route
func (t *Tracker) Points() []geo.Point {
	points := make([]geo.Point, len(t.points))
	copy(points, t.points)
	return points
}

// segmentAt splits a cursor into a segment index and fraction. The last
// point maps to the end of the final segment.
func (t *Tracker) segmentAt(cursor float64) (int, float64) {
	last := len(t.points) - 2
	i := int(math.Floor(cursor))
	if i >= last+1 {
		return last, 1
	}
	if i < 0 {
		return 0, 0
	}
	return i, cursor - float64(i)
}

func (t *Tracker) clamp(index float64) float64 {
	if math.IsNaN(index) {
		return 0
	}
	return math.Max(0, math.Min(float64(len(t.points)-1), index))
}

func (t *Tracker) emit(eventType EventType) {
	t.notify(Event{Type: eventType, Snapshot: t.CurrentProgress()})
}

func (t *Tracker) notify(event Event) {
	if t.listener != nil {
		t.listener(event)
	}
}
