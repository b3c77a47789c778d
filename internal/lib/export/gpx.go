package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/dpup/info.ersn.net/routesim/internal/lib/geo"
)

// ErrNoGPXPoints is returned when a GPX file holds no route or track points
var ErrNoGPXPoints = errors.New("gpx contains no points")

// WriteGPX writes the route as a GPX route and the trace as a timestamped track
func WriteGPX(w io.Writer, doc Document) error {
	g := &gpx.GPX{
		Name:    doc.Name,
		Creator: "navsim",
	}

	rte := gpx.GPXRoute{Name: doc.Name}
	for _, p := range doc.Route {
		rte.Points = append(rte.Points, gpx.GPXPoint{
			Point: gpx.Point{Latitude: p.Latitude, Longitude: p.Longitude},
		})
	}
	g.Routes = append(g.Routes, rte)

	if len(doc.Trace) > 0 {
		seg := gpx.GPXTrackSegment{}
		for _, tp := range doc.Trace {
			seg.Points = append(seg.Points, gpx.GPXPoint{
				Point:       gpx.Point{Latitude: tp.Point.Latitude, Longitude: tp.Point.Longitude},
				Timestamp:   tp.Time.UTC(),
				Description: tp.Instruction,
			})
		}
		g.Tracks = append(g.Tracks, gpx.GPXTrack{
			Name:     doc.Name + " playback",
			Segments: []gpx.GPXTrackSegment{seg},
		})
	}

	data, err := g.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return fmt.Errorf("failed to encode GPX: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write GPX: %w", err)
	}
	return nil
}

// ReadGPXRoute reads a route from GPX. Route points are preferred; otherwise
// all track segments are concatenated.
func ReadGPXRoute(r io.Reader) ([]geo.Point, error) {
	g, err := gpx.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GPX: %w", err)
	}

	var points []geo.Point
	for _, rte := range g.Routes {
		for _, p := range rte.Points {
			points = append(points, geo.Point{Latitude: p.Latitude, Longitude: p.Longitude})
		}
	}
	if len(points) == 0 {
		for _, trk := range g.Tracks {
			for _, seg := range trk.Segments {
				for _, p := range seg.Points {
					points = append(points, geo.Point{Latitude: p.Latitude, Longitude: p.Longitude})
				}
			}
		}
	}

	if len(points) == 0 {
		return nil, ErrNoGPXPoints
	}
	return points, nil
}
