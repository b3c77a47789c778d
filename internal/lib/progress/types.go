// Package progress tracks a continuous position cursor along a decoded route
// and reports distance-based progress.
package progress

import (
	"errors"
	"fmt"

	"github.com/dpup/info.ersn.net/routesim/internal/lib/geo"
)

// DefaultStep is the cursor delta used by callers stepping one point at a time.
const DefaultStep = 1.0

// DefaultSnapThreshold is the maximum distance in meters for SnapToClosest.
const DefaultSnapThreshold = 100.0

var (
	// ErrInsufficientPoints is matched by InsufficientPointsError.
	ErrInsufficientPoints = errors.New("route must have at least 2 points")
	// ErrNotInitialized is returned by Start before a route is loaded.
	ErrNotInitialized = errors.New("tracker has no route")
)

// InsufficientPointsError is returned by Initialize for routes that cannot
// be traversed.
type InsufficientPointsError struct {
	Count int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("%v: got %d", ErrInsufficientPoints, e.Count)
}

func (e *InsufficientPointsError) Unwrap() error {
	return ErrInsufficientPoints
}

// State is the tracker run state
type State int

const (
	StateIdle State = iota
	StateActive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// EventType identifies tracker events
type EventType int

const (
	EventStarted EventType = iota
	EventPositionChanged
	EventStopped
)

func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventPositionChanged:
		return "position_changed"
	case EventStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of progress at one cursor position.
type Snapshot struct {
	Percentage      float64   `json:"percentage"`
	TraveledMeters  float64   `json:"traveled_meters"`
	RemainingMeters float64   `json:"remaining_meters"`
	TotalMeters     float64   `json:"total_meters"`
	BearingDegrees  float64   `json:"bearing_degrees"`
	Position        geo.Point `json:"position"`
	Cursor          float64   `json:"cursor"`
	SegmentIndex    int       `json:"segment_index"`
	Instruction     string    `json:"instruction"`
}

// Ratio returns traveled distance as a fraction of the route in [0, 1]
func (s Snapshot) Ratio() float64 {
	return s.Percentage / 100
}

// Event is delivered to the tracker listener on every state or cursor change
type Event struct {
	Type     EventType `json:"type"`
	Snapshot Snapshot  `json:"snapshot"`
}

// SnapResult describes the projection chosen by SnapToClosest
type SnapResult struct {
	Cursor       float64        `json:"cursor"`
	SegmentIndex int            `json:"segment_index"`
	Projection   geo.Projection `json:"projection"`
}
