package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dpup/info.ersn.net/routesim/internal/lib/geo"
)

const metersPerMile = 1609.344

type command struct {
	name    string
	summary string
	run     func(w io.Writer, args []string) error
}

var commands = []command{
	{"point-distance", "Great-circle distance and planar bearing between two points", pointDistance},
	{"polyline-distance", "Project a point onto a route: segment, fraction, cursor and distance", polylineDistance},
	{"bearing", "Planar bearing and interpolated points between two points", bearing},
	{"decode-polyline", "Decode a polyline and list its segments", decodePolyline},
	{"encode-polyline", "Encode \"lat,lng\" pairs as a polyline", encodePolyline},
}

func main() {
	if len(os.Args) < 2 || os.Args[1] == "help" {
		printUsage(os.Stdout)
		return
	}

	for _, c := range commands {
		if c.name == os.Args[1] {
			if err := c.run(os.Stdout, os.Args[2:]); err != nil {
				log.Fatalf("%s: %v", c.name, err)
			}
			return
		}
	}

	fmt.Printf("Unknown command: %s\n\n", os.Args[1])
	printUsage(os.Stdout)
	os.Exit(1)
}

// pointFlags registers --lat<suffix> and --lng<suffix> flags
func pointFlags(fs *flag.FlagSet, suffix, label string) *geo.Point {
	p := &geo.Point{}
	fs.Float64Var(&p.Latitude, "lat"+suffix, 0, "Latitude of "+label)
	fs.Float64Var(&p.Longitude, "lng"+suffix, 0, "Longitude of "+label)
	return p
}

func validPoints(points ...*geo.Point) error {
	for _, p := range points {
		if !p.IsValid() {
			return fmt.Errorf("coordinate out of range: (%f, %f)", p.Latitude, p.Longitude)
		}
	}
	return nil
}

func pointDistance(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("point-distance", flag.ContinueOnError)
	from := pointFlags(fs, "1", "the first point")
	to := pointFlags(fs, "2", "the second point")
	if err := fs.Parse(args); err != nil {
		return err
	}
	d, err := geo.NewGeoUtils().PointToPoint(*from, *to)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "From:     (%.6f, %.6f)\n", from.Latitude, from.Longitude)
	fmt.Fprintf(w, "To:       (%.6f, %.6f)\n", to.Latitude, to.Longitude)
	fmt.Fprintf(w, "Distance: %.2f m (%.3f km, %.3f mi)\n", d, d/1000, d/metersPerMile)
	fmt.Fprintf(w, "Bearing:  %.1f°\n", geo.Bearing(*from, *to))
	return nil
}

func polylineDistance(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("polyline-distance", flag.ContinueOnError)
	p := pointFlags(fs, "", "the point")
	encoded := fs.String("polyline", "", "Encoded polyline")
	all := fs.Bool("all", false, "Print the projection onto every segment")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := validPoints(p); err != nil {
		return err
	}

	points, err := decode(w, *encoded)
	if err != nil {
		return err
	}
	if len(points) < 2 {
		return fmt.Errorf("route needs at least 2 points, got %d", len(points))
	}

	best, bestSegment := geo.Projection{}, -1
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if *all {
		fmt.Fprintln(tw, "SEGMENT\tT\tPROJECTED\tDISTANCE")
	}
	for i := 0; i < len(points)-1; i++ {
		proj := geo.ProjectPointOnSegment(*p, points[i], points[i+1])
		if *all {
			fmt.Fprintf(tw, "%d\t%.4f\t(%.6f, %.6f)\t%.1f m\n",
				i, proj.T, proj.Point.Latitude, proj.Point.Longitude, proj.DistanceMeters)
		}
		if bestSegment < 0 || proj.DistanceMeters < best.DistanceMeters {
			best, bestSegment = proj, i
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	traveled := geo.PathLength(points[:bestSegment+1]) +
		geo.Distance(points[bestSegment], points[bestSegment+1])*best.T
	total := geo.PathLength(points)

	fmt.Fprintf(w, "Point:     (%.6f, %.6f)\n", p.Latitude, p.Longitude)
	fmt.Fprintf(w, "Segment:   %d of %d\n", bestSegment, len(points)-1)
	fmt.Fprintf(w, "T:         %.4f\n", best.T)
	fmt.Fprintf(w, "Cursor:    %.4f\n", float64(bestSegment)+best.T)
	fmt.Fprintf(w, "Projected: (%.6f, %.6f)\n", best.Point.Latitude, best.Point.Longitude)
	fmt.Fprintf(w, "Distance:  %.2f m\n", best.DistanceMeters)
	fmt.Fprintf(w, "Traveled:  %.2f of %.2f m (%.1f%%)\n", traveled, total, traveled/total*100)
	return nil
}

func bearing(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("bearing", flag.ContinueOnError)
	from := pointFlags(fs, "1", "the first point")
	to := pointFlags(fs, "2", "the second point")
	steps := fs.Int("steps", 4, "Number of interpolation intervals")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := validPoints(from, to); err != nil {
		return err
	}
	if *steps < 1 {
		return errors.New("steps must be at least 1")
	}

	fmt.Fprintf(w, "Bearing: %.1f°\n", geo.Bearing(*from, *to))
	for i := 0; i <= *steps; i++ {
		t := float64(i) / float64(*steps)
		q := geo.Lerp(*from, *to, t)
		fmt.Fprintf(w, "  t=%.2f (%.6f, %.6f)\n", t, q.Latitude, q.Longitude)
	}
	return nil
}

func decodePolyline(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("decode-polyline", flag.ContinueOnError)
	encoded := fs.String("polyline", "", "Encoded polyline")
	if err := fs.Parse(args); err != nil {
		return err
	}

	points, err := decode(w, *encoded)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Points: %d\n", len(points))
	if len(points) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tLAT\tLNG\tSEGMENT\tCUMULATIVE\tBEARING")
	var cumulative float64
	for i, p := range points {
		if i == 0 {
			fmt.Fprintf(tw, "%d\t%.5f\t%.5f\t-\t0.0 m\t-\n", i, p.Latitude, p.Longitude)
			continue
		}
		segment := geo.Distance(points[i-1], p)
		cumulative += segment
		fmt.Fprintf(tw, "%d\t%.5f\t%.5f\t%.1f m\t%.1f m\t%.1f°\n",
			i, p.Latitude, p.Longitude, segment, cumulative, geo.Bearing(points[i-1], p))
	}
	return tw.Flush()
}

func encodePolyline(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("encode-polyline", flag.ContinueOnError)
	raw := fs.String("points", "", "Coordinate pairs as \"lat,lng;lat,lng\"")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var points []geo.Point
	for _, pair := range strings.FieldsFunc(*raw, func(r rune) bool { return r == ';' }) {
		var p geo.Point
		if _, err := fmt.Sscanf(strings.ReplaceAll(pair, " ", ""), "%f,%f", &p.Latitude, &p.Longitude); err != nil {
			return fmt.Errorf("invalid coordinate pair %q: %w", pair, err)
		}
		if err := validPoints(&p); err != nil {
			return err
		}
		points = append(points, p)
	}
	if len(points) == 0 {
		return errors.New("no points given")
	}

	fmt.Fprintf(w, "Points:  %d\n", len(points))
	fmt.Fprintf(w, "Length:  %.2f m\n", geo.PathLength(points))
	fmt.Fprintf(w, "Encoded: %s\n", geo.EncodePolyline(points))
	return nil
}

// decode reports decode failures with the input length and cause
func decode(w io.Writer, encoded string) ([]geo.Point, error) {
	if encoded == "" {
		return nil, errors.New("--polyline is required")
	}

	points, err := geo.DecodePolyline(encoded)
	var decodeErr *geo.DecodeError
	if errors.As(err, &decodeErr) {
		fmt.Fprintf(w, "Decode failed\n")
		fmt.Fprintf(w, "  Input length: %d bytes\n", decodeErr.Length)
		fmt.Fprintf(w, "  Cause:        %v\n", decodeErr.Err)
		if errors.Is(err, geo.ErrCoordinateOutOfRange) {
			fmt.Fprintf(w, "  Hint:         polyline is not 5-digit precision or is corrupt\n")
		}
	}
	return points, err
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "test-geo-utils - route geometry inspection\n\nUSAGE:\n    test-geo-utils <command> [options]\n\nCOMMANDS:\n")
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	for _, c := range commands {
		fmt.Fprintf(tw, "    %s\t%s\n", c.name, c.summary)
	}
	tw.Flush()
	fmt.Fprint(w, "\nEXAMPLES:\n"+
		"    test-geo-utils decode-polyline --polyline '_p~iF~ps|U_ulLnnqC_mqNvxq`@'\n"+
		"    test-geo-utils polyline-distance --lat 40.7 --lng -121.0 --polyline '_p~iF~ps|U_ulLnnqC_mqNvxq`@' --all\n"+
		"    test-geo-utils encode-polyline --points '38.5,-120.2;40.7,-120.95;43.252,-126.453'\n")
}
