package export

import (
	"fmt"
	"io"
	"time"

	"github.com/twpayne/go-kml"
)

// WriteKML writes the route as a LineString placemark and each trace point
// as a Point placemark in a "Playback" folder
func WriteKML(w io.Writer, doc Document) error {
	coords := make([]kml.Coordinate, len(doc.Route))
	for i, p := range doc.Route {
		coords[i] = kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude}
	}

	children := []kml.Element{
		kml.Name(doc.Name),
		kml.Placemark(
			kml.Name(doc.Name),
			kml.LineString(kml.Coordinates(coords...)),
		),
	}

	if len(doc.Trace) > 0 {
		folder := []kml.Element{kml.Name("Playback")}
		for i, tp := range doc.Trace {
			folder = append(folder, kml.Placemark(
				kml.Name(fmt.Sprintf("%d", i)),
				kml.Description(describe(tp)),
				kml.Point(kml.Coordinates(kml.Coordinate{Lon: tp.Point.Longitude, Lat: tp.Point.Latitude})),
			))
		}
		children = append(children, kml.Folder(folder...))
	}

	if err := kml.KML(kml.Document(children...)).WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("failed to write KML: %w", err)
	}
	return nil
}

func describe(tp TracePoint) string {
	return fmt.Sprintf("%s (%.1f%%, %.0f°) at %s", tp.Instruction, tp.Percentage, tp.Bearing, tp.Time.UTC().Format(time.RFC3339))
}
