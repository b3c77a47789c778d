package routing

import (
	"context"

	"github.com/dpup/info.ersn.net/routesim/internal/lib/geo"
	"github.com/dpup/info.ersn.net/routesim/internal/lib/instructions"
)

// Classification represents the relationship between a position and a route
type Classification string

const (
	OnRoute Classification = "on_route" // within the on-route threshold of the polyline
	Nearby  Classification = "nearby"   // within the route's MaxDistance
	Distant Classification = "distant"
)

// Route is a named route with decoded geometry and optional maneuver steps
type Route struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Polyline       geo.Polyline        `json:"polyline"`
	Steps          []instructions.Step `json:"steps,omitempty"`
	DistanceMeters float64             `json:"distance_meters"`
	MaxDistance    float64             `json:"max_distance"` // Distance threshold for "nearby" classification (meters)
}

// Points returns the decoded route geometry
func (r Route) Points() []geo.Point {
	return r.Polyline.Points
}

// Match is a position located against one route. Cursor is the fractional
// point index of the projection, usable with progress.Tracker.Seek.
type Match struct {
	RouteID        string         `json:"route_id"`
	Classification Classification `json:"classification"`
	DistanceMeters float64        `json:"distance_meters"`
	Projected      geo.Point      `json:"projected"`
	Cursor         float64        `json:"cursor"`
	SegmentIndex   int            `json:"segment_index"`
	TraveledMeters float64        `json:"traveled_meters"`
}

// Location is a position classified against a set of routes. Matches are
// ordered on-route first, then by distance.
type Location struct {
	Point          geo.Point      `json:"point"`
	Classification Classification `json:"classification"`
	RouteIDs       []string       `json:"route_ids"`
	DistanceMeters float64        `json:"distance_meters"`
	Matches        []Match        `json:"matches"`
}

// RouteMatcher locates positions and paths against route geometry
type RouteMatcher interface {
	// Locate a single position against a route
	Match(ctx context.Context, point geo.Point, route Route) (Match, error)

	// Classify a position against all routes
	Classify(ctx context.Context, point geo.Point, routes []Route) (Location, error)

	// Classify a path (e.g. a recorded GPX track) by its closest point to each route
	ClassifyPath(ctx context.Context, path []geo.Point, routes []Route) (Location, error)
}
