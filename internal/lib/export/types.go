// Package export renders routes and recorded playback traces as KML, GPX
// and GeoJSON, and reads routes back from GPX files.
package export

import (
	"time"

	"github.com/dpup/info.ersn.net/routesim/internal/lib/geo"
)

// TracePoint is one recorded playback position
type TracePoint struct {
	Point       geo.Point `json:"point"`
	Time        time.Time `json:"time"`
	Percentage  float64   `json:"percentage"`
	Bearing     float64   `json:"bearing"`
	Instruction string    `json:"instruction"`
}

// Document is the input to every exporter
type Document struct {
	Name  string
	Route []geo.Point
	Trace []TracePoint
}
