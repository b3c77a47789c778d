package export

import (
	"fmt"
	"io"
	"strings"
)

// Format is an export file format
type Format string

const (
	FormatKML     Format = "kml"
	FormatGPX     Format = "gpx"
	FormatGeoJSON Format = "geojson"
)

// ParseFormat accepts a format name case-insensitively; "json" is an alias
// for geojson
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kml":
		return FormatKML, nil
	case "gpx":
		return FormatGPX, nil
	case "geojson", "json":
		return FormatGeoJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// Write renders doc in the given format
func Write(w io.Writer, format Format, doc Document) error {
	switch format {
	case FormatKML:
		return WriteKML(w, doc)
	case FormatGPX:
		return WriteGPX(w, doc)
	case FormatGeoJSON:
		return WriteGeoJSON(w, doc)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
