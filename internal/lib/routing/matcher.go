package routing

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/dpup/info.ersn.net/routesim/internal/lib/geo"
)

// DefaultOnRouteThreshold is the on-route distance used when none is configured
const DefaultOnRouteThreshold = 100.0

// noRouteDistance is reported when there are no routes to measure against
const noRouteDistance = 999999

var (
	ErrInvalidRoute = errors.New("route must have at least 2 points")
	ErrEmptyPath    = errors.New("path has no points")
)

// routeMatcher implements the RouteMatcher interface
type routeMatcher struct {
	onRouteThreshold float64
}

// NewRouteMatcher creates a RouteMatcher. A non-positive threshold uses
// DefaultOnRouteThreshold.
func NewRouteMatcher(onRouteThreshold float64) RouteMatcher {
	if onRouteThreshold <= 0 {
		onRouteThreshold = DefaultOnRouteThreshold
	}
	return &routeMatcher{onRouteThreshold: onRouteThreshold}
}

// Match projects point onto every segment of the route and keeps the closest
func (r *routeMatcher) Match(ctx context.Context, point geo.Point, route Route) (Match, error) {
	points := route.Points()
	if len(points) < 2 {
		return Match{}, ErrInvalidRoute
	}
	if !point.IsValid() {
		return Match{}, errors.New("invalid point coordinates")
	}

	best := geo.Projection{DistanceMeters: math.Inf(1)}
	bestSegment := 0
	for i := 0; i < len(points)-1; i++ {
		proj := geo.ProjectPointOnSegment(point, points[i], points[i+1])
		if proj.DistanceMeters < best.DistanceMeters {
			best = proj
			bestSegment = i
		}
	}

	return Match{
		RouteID:        route.ID,
		Classification: r.classify(best.DistanceMeters, route),
		DistanceMeters: best.DistanceMeters,
		Projected:      best.Point,
		Cursor:         float64(bestSegment) + best.T,
		SegmentIndex:   bestSegment,
		TraveledMeters: geo.PathLength(points[:bestSegment+1]) + geo.Distance(points[bestSegment], points[bestSegment+1])*best.T,
	}, nil
}

// Classify classifies a single position against all provided routes
func (r *routeMatcher) Classify(ctx context.Context, point geo.Point, routes []Route) (Location, error) {
	loc := Location{Point: point}

	matches := make([]Match, 0, len(routes))
	for _, route := range routes {
		m, err := r.Match(ctx, point, route)
		if err != nil {
			return Location{}, err
		}
		matches = append(matches, m)
	}

	return r.summarize(loc, matches), nil
}

// ClassifyPath checks every point of the path against each route and keeps,
// per route, the match of the closest point
func (r *routeMatcher) ClassifyPath(ctx context.Context, path []geo.Point, routes []Route) (Location, error) {
	if len(path) == 0 {
		return Location{}, ErrEmptyPath
	}
	loc := Location{Point: path[0]}

	matches := make([]Match, 0, len(routes))
	for _, route := range routes {
		best := Match{DistanceMeters: math.Inf(1)}
		for _, p := range path {
			m, err := r.Match(ctx, p, route)
			if err != nil {
				if errors.Is(err, ErrInvalidRoute) {
					return Location{}, err
				}
				continue // skip invalid points
			}
			if m.DistanceMeters < best.DistanceMeters {
				best = m
			}
		}
		if math.IsInf(best.DistanceMeters, 1) {
			return Location{}, errors.New("no valid points found in path")
		}
		matches = append(matches, best)
	}

	return r.summarize(loc, matches), nil
}

func (r *routeMatcher) classify(distance float64, route Route) Classification {
	switch {
	case distance <= r.onRouteThreshold:
		return OnRoute
	case distance <= route.MaxDistance:
		return Nearby
	default:
		return Distant
	}
}

// summarize orders matches on-route first, then nearby, then by distance,
// and derives the overall classification from the best match
func (r *routeMatcher) summarize(loc Location, matches []Match) Location {
	sort.SliceStable(matches, func(i, j int) bool {
		ri, rj := rank(matches[i].Classification), rank(matches[j].Classification)
		if ri != rj {
			return ri < rj
		}
		return matches[i].DistanceMeters < matches[j].DistanceMeters
	})

	loc.Matches = matches
	loc.RouteIDs = []string{}
	loc.Classification = Distant
	loc.DistanceMeters = noRouteDistance

	for i, m := range matches {
		if i == 0 || m.DistanceMeters < loc.DistanceMeters {
			loc.DistanceMeters = m.DistanceMeters
		}
		if m.Classification != Distant {
			loc.RouteIDs = append(loc.RouteIDs, m.RouteID)
		}
	}
	if len(matches) > 0 {
		loc.Classification = matches[0].Classification
	}
	return loc
}

func rank(c Classification) int {
	switch c {
	case OnRoute:
		return 0
	case Nearby:
		return 1
	default:
		return 2
	}
}
