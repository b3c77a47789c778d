package export

import (
	"fmt"
	"io"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection builds a collection with the route LineString followed
// by one Point feature per trace point
func FeatureCollection(doc Document) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	line := make(orb.LineString, len(doc.Route))
	for i, p := range doc.Route {
		line[i] = orb.Point{p.Longitude, p.Latitude}
	}
	route := geojson.NewFeature(line)
	route.Properties["name"] = doc.Name
	route.Properties["kind"] = "route"
	fc.Append(route)

	for i, tp := range doc.Trace {
		f := geojson.NewFeature(orb.Point{tp.Point.Longitude, tp.Point.Latitude})
		f.Properties["kind"] = "trace"
		f.Properties["index"] = i
		f.Properties["time"] = tp.Time.UTC().Format(time.RFC3339)
		f.Properties["percentage"] = tp.Percentage
		f.Properties["bearing"] = tp.Bearing
		f.Properties["instruction"] = tp.Instruction
		fc.Append(f)
	}
	return fc
}

// WriteGeoJSON writes FeatureCollection(doc) as JSON
func WriteGeoJSON(w io.Writer, doc Document) error {
	data, err := FeatureCollection(doc).MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode GeoJSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write GeoJSON: %w", err)
	}
	return nil
}
