package geo

import (
	"errors"
	"fmt"

	"github.com/twpayne/go-polyline"
)

// ErrCoordinateOutOfRange is wrapped by DecodeError when a decoded point
// falls outside WGS84 bounds.
var ErrCoordinateOutOfRange = errors.New("decoded coordinate out of range")

// DecodeError reports a malformed or truncated encoded polyline.
type DecodeError struct {
	Length int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode polyline (%d bytes): %v", e.Length, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DecodePolyline decodes a 5-digit precision encoded polyline into points.
// An empty string decodes to an empty route. Input that ends in the middle
// of a value, or contains bytes outside the encoding alphabet, fails with a
// *DecodeError.
func DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return []Point{}, nil
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, &DecodeError{Length: len(encoded), Err: err}
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{Latitude: coord[0], Longitude: coord[1]}
		if !isValidCoordinate(points[i]) {
			return nil, &DecodeError{
				Length: len(encoded),
				Err:    fmt.Errorf("%w: point %d (%f, %f)", ErrCoordinateOutOfRange, i, coord[0], coord[1]),
			}
		}
	}

	return points, nil
}

// EncodePolyline encodes points with 5-digit precision.
func EncodePolyline(points []Point) string {
	if len(points) == 0 {
		return ""
	}

	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Latitude, p.Longitude}
	}
	return string(polyline.EncodeCoords(coords))
}
