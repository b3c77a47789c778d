package geo

import (
	"errors"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used by all distance math.
const EarthRadiusMeters = 6371000

// Distance returns the haversine great-circle distance between two points in meters
func Distance(a, b Point) float64 {
	if a == b {
		return 0
	}

	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dlat := (b.Latitude - a.Latitude) * math.Pi / 180
	dlon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Bearing returns the heading from a to b in degrees, normalized to [0, 360).
//
// The heading is computed with atan2 over raw latitude/longitude deltas, a
// planar approximation. It drifts from the true initial great-circle bearing
// as segments get longer or move away from the equator; decoded route
// segments are short enough that this is acceptable.
func Bearing(a, b Point) float64 {
	dlon := b.Longitude - a.Longitude
	dlat := b.Latitude - a.Latitude
	if dlon == 0 && dlat == 0 {
		return 0
	}

	deg := math.Atan2(dlon, dlat) * 180 / math.Pi
	deg = math.Mod(deg+360, 360)
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// Lerp interpolates latitude and longitude independently.
// t=0 returns a, t=1 returns b. Valid for short segments only.
func Lerp(a, b Point, t float64) Point {
	return Point{
		Latitude:  a.Latitude + t*(b.Latitude-a.Latitude),
		Longitude: a.Longitude + t*(b.Longitude-a.Longitude),
	}
}

// ProjectPointOnSegment projects p onto the segment [start, end] using planar
// vector projection in lat/lon space. T is clamped to [0, 1]; a degenerate
// segment projects to its start.
func ProjectPointOnSegment(p, start, end Point) Projection {
	abLat := end.Latitude - start.Latitude
	abLon := end.Longitude - start.Longitude
	apLat := p.Latitude - start.Latitude
	apLon := p.Longitude - start.Longitude

	abab := abLat*abLat + abLon*abLon
	t := 0.0
	if abab != 0 {
		t = (apLat*abLat + apLon*abLon) / abab
		t = math.Max(0, math.Min(1, t))
	}

	projected := Lerp(start, end, t)
	return Projection{
		Point:          projected,
		T:              t,
		DistanceMeters: Distance(p, projected),
	}
}

// IsValid reports whether the point lies within WGS84 bounds
func (p Point) IsValid() bool {
	return isValidCoordinate(p)
}

// geoUtils implements the GeoUtils interface
type geoUtils struct{}

// NewGeoUtils creates a new GeoUtils implementation
func NewGeoUtils() GeoUtils {
	return &geoUtils{}
}

// PointToPoint calculates great-circle distance between two points using Haversine formula
func (g *geoUtils) PointToPoint(p1, p2 Point) (float64, error) {
	if !isValidCoordinate(p1) || !isValidCoordinate(p2) {
		return 0, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}
	return Distance(p1, p2), nil
}

// PointToPolyline calculates minimum distance from point to polyline
func (g *geoUtils) PointToPolyline(point Point, polyline Polyline) (float64, error) {
	closest, err := g.ClosestPointOnPolyline(point, polyline)
	if err != nil {
		return 0, err
	}
	return Distance(point, closest), nil
}

// DecodePolyline decodes Google polyline string to point sequence
func (g *geoUtils) DecodePolyline(encoded string) ([]Point, error) {
	return DecodePolyline(encoded)
}

// ClosestPointOnPolyline finds closest point on polyline to given point
func (g *geoUtils) ClosestPointOnPolyline(point Point, polyline Polyline) (Point, error) {
	if !isValidCoordinate(point) {
		return Point{}, errors.New("invalid point coordinates")
	}

	if len(polyline.Points) == 0 {
		return Point{}, errors.New("polyline has no points")
	}

	if len(polyline.Points) == 1 {
		return polyline.Points[0], nil
	}

	best := Projection{DistanceMeters: math.Inf(1)}
	for i := 0; i < len(polyline.Points)-1; i++ {
		proj := ProjectPointOnSegment(point, polyline.Points[i], polyline.Points[i+1])
		if proj.DistanceMeters < best.DistanceMeters {
			best = proj
		}
	}

	return best.Point, nil
}

// NewPoint creates a Point from latitude and longitude values with validation
func NewPoint(latitude, longitude float64) (Point, error) {
	point := Point{Latitude: latitude, Longitude: longitude}
	if !isValidCoordinate(point) {
		return Point{}, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}
	return point, nil
}

// FilterPointsByDistance filters points to those within specified distance of center point
func (g *geoUtils) FilterPointsByDistance(points []Point, center Point, maxDistanceMeters float64) ([]Point, error) {
	if !isValidCoordinate(center) {
		return nil, errors.New("invalid center point coordinates")
	}

	var filteredPoints []Point
	for _, point := range points {
		if !isValidCoordinate(point) {
			continue
		}
		if Distance(center, point) <= maxDistanceMeters {
			filteredPoints = append(filteredPoints, point)
		}
	}

	return filteredPoints, nil
}

// DistanceFromCoords calculates distance between two coordinate pairs
func (g *geoUtils) DistanceFromCoords(lat1, lon1, lat2, lon2 float64) (float64, error) {
	return g.PointToPoint(Point{Latitude: lat1, Longitude: lon1}, Point{Latitude: lat2, Longitude: lon2})
}

// PathLength sums the haversine distance over consecutive point pairs
func PathLength(points []Point) float64 {
	total := 0.0
	for i := 0; i+1 < len(points); i++ {
		total += Distance(points[i], points[i+1])
	}
	return total
}

// isValidCoordinate validates latitude and longitude values
func isValidCoordinate(point Point) bool {
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180
}
