package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/dpup/info.ersn.net/routesim/internal/config"
	"github.com/dpup/info.ersn.net/routesim/internal/lib/export"
	"github.com/dpup/info.ersn.net/routesim/internal/lib/geo"
	"github.com/dpup/info.ersn.net/routesim/internal/lib/instructions"
	"github.com/dpup/info.ersn.net/routesim/internal/lib/progress"
	"github.com/dpup/info.ersn.net/routesim/internal/lib/routing"
	"github.com/dpup/info.ersn.net/routesim/internal/logging"
	"github.com/dpup/info.ersn.net/routesim/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env: %v", err)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "run":
		err = handleRun(args)
	case "progress":
		err = handleProgress(args)
	case "export":
		err = handleExport(args)
	case "routes":
		err = handleRoutes(args)
	case "locate":
		err = handleLocate(args)
	case "config":
		err = handleConfig(args)
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("%s: %v", command, err)
	}
}

func handleRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	src := addRouteFlags(fs)
	interval := fs.Duration("interval", 0, "Tick interval (overrides simulation.tick_interval)")
	exportPath := fs.String("export", "", "Write the route and playback trace to this file")
	format := fs.String("format", "geojson", "Export format: kml, gpx or geojson")
	quiet := fs.Bool("quiet", false, "Print events instead of a progress bar")
	fs.Parse(args)

	env, err := src.load()
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	exportFormat, err := export.ParseFormat(*format)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := services.NewSimulationService(env.cfg.Simulation, env.logger)
	defer svc.StopAll(shutdownTimeout)
	recorder := services.NewRecorder()

	opts := []services.SessionOption{
		services.WithCallback(recorder.Record),
		services.WithInterval(*interval),
	}
	if len(env.route.Steps) > 0 {
		opts = append(opts, services.WithSteps(env.route.Steps))
	}

	session, err := svc.Start(ctx, env.route.Points(), opts...)
	if err != nil {
		return err
	}

	fmt.Printf("Simulating %s: %d points, %s, %d cues every %v\n",
		env.route.Name, len(env.route.Points()),
		instructions.FormatDistance(geo.PathLength(env.route.Points())),
		len(session.Cues()), session.Interval())

	var bar *progressbar.ProgressBar
	if !*quiet {
		bar = progressbar.Default(100, "Playback")
	}

	for ev := range session.Events() {
		if bar != nil {
			bar.Describe(ev.Instruction)
			_ = bar.Set(int(ev.Snapshot.Percentage))
			continue
		}
		fmt.Printf("[%2d/%d] %-8s %5.1f%% %7s left  %3.0f°  %s\n",
			ev.Step+1, ev.Steps, ev.Kind, ev.Snapshot.Percentage,
			instructions.FormatDistance(ev.Snapshot.RemainingMeters),
			ev.Snapshot.BearingDegrees, ev.Instruction)
	}
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	if ctx.Err() != nil {
		fmt.Println("Simulation interrupted")
	}

	if *exportPath == "" {
		return nil
	}
	return writeExport(*exportPath, exportFormat, export.Document{
		Name:  env.route.Name,
		Route: env.route.Points(),
		Trace: recorder.Trace(),
	})
}

func handleProgress(args []string) error {
	fs := flag.NewFlagSet("progress", flag.ExitOnError)
	src := addRouteFlags(fs)
	cursor := fs.Float64("cursor", 0, "Fractional point index to seek to")
	meters := fs.Float64("meters", -1, "Distance along the route to seek to (overrides --cursor)")
	snapLat := fs.Float64("snap-lat", 0, "Latitude of a position to snap onto the route")
	snapLng := fs.Float64("snap-lng", 0, "Longitude of a position to snap onto the route")
	fs.Parse(args)

	env, err := src.load()
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	var synth instructions.Synthesizer = instructions.NewTemplateSynthesizer()
	if len(env.route.Steps) > 0 {
		synth = instructions.NewStepSynthesizer(env.route.Steps, synth)
	}

	tracker := progress.NewTracker(progress.WithLogger(env.logger), progress.WithSynthesizer(synth))
	if err := tracker.Initialize(env.route.Points()); err != nil {
		return err
	}
	if err := tracker.Start(); err != nil {
		return err
	}
	defer tracker.Stop()

	var snapshot progress.Snapshot
	switch {
	case *snapLat != 0 || *snapLng != 0:
		p := geo.Point{Latitude: *snapLat, Longitude: *snapLng}
		result, ok := tracker.SnapToClosest(p, env.cfg.Simulation.SnapThresholdMeters)
		if !ok {
			return fmt.Errorf("position is %.1fm from the route, beyond the %.0fm snap threshold",
				result.Projection.DistanceMeters, env.cfg.Simulation.SnapThresholdMeters)
		}
		snapshot = tracker.CurrentProgress()
	case *meters >= 0:
		snapshot = tracker.SeekDistance(*meters)
	default:
		snapshot = tracker.Seek(*cursor)
	}

	return printJSON(snapshot)
}

func handleExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	src := addRouteFlags(fs)
	output := fs.String("output", "", "Output file (default stdout)")
	format := fs.String("format", "geojson", "Export format: kml, gpx or geojson")
	fs.Parse(args)

	env, err := src.load()
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	exportFormat, err := export.ParseFormat(*format)
	if err != nil {
		return err
	}

	doc := export.Document{Name: env.route.Name, Route: env.route.Points()}
	if *output == "" {
		return export.Write(os.Stdout, exportFormat, doc)
	}
	return writeExport(*output, exportFormat, doc)
}

func handleRoutes(args []string) error {
	fs := flag.NewFlagSet("routes", flag.ExitOnError)
	src := addRouteFlags(fs)
	fs.Parse(args)

	env, err := src.loadCatalog()
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	for _, r := range env.catalog.List() {
		fmt.Printf("%-24s %4d points  %9s  %d steps  %s\n",
			r.ID, len(r.Points()), instructions.FormatDistance(r.DistanceMeters), len(r.Steps), r.Name)
	}
	return nil
}

func handleLocate(args []string) error {
	fs := flag.NewFlagSet("locate", flag.ExitOnError)
	src := addRouteFlags(fs)
	lat := fs.Float64("lat", 0, "Latitude of position")
	lng := fs.Float64("lng", 0, "Longitude of position")
	gpxPath := fs.String("track", "", "Classify a GPX track instead of a single position")
	fs.Parse(args)

	env, err := src.loadCatalog()
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	matcher := routing.NewRouteMatcher(env.cfg.Simulation.SnapThresholdMeters)
	ctx := context.Background()

	var loc routing.Location
	if *gpxPath != "" {
		f, err := os.Open(*gpxPath)
		if err != nil {
			return err
		}
		defer f.Close()

		path, err := export.ReadGPXRoute(f)
		if err != nil {
			return err
		}
		loc, err = matcher.ClassifyPath(ctx, path, env.catalog.List())
		if err != nil {
			return err
		}
	} else {
		if *lat == 0 && *lng == 0 {
			fmt.Println("Example usage:")
			fmt.Println("  navsim locate --lat 40.7 --lng -120.95")
			fmt.Println("  navsim locate --track drive.gpx")
			os.Exit(1)
		}
		loc, err = matcher.Classify(ctx, geo.Point{Latitude: *lat, Longitude: *lng}, env.catalog.List())
		if err != nil {
			return err
		}
	}

	return printJSON(loc)
}

func handleConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	path := fs.String("config", os.Getenv("ROUTESIM_CONFIG"), "Path to YAML config file")
	fs.Parse(args)

	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}
	out, err := config.Dump(cfg)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func writeExport(path string, format export.Format, doc export.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := export.Write(f, format, doc); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%s, %d trace points)\n", path, format, len(doc.Trace))
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLogger(cfg *config.Config) *zap.Logger {
	return logging.Must(cfg.Logging)
}

// shutdownTimeout bounds how long StopAll waits for sessions on exit
const shutdownTimeout = 5 * time.Second

func printUsage() {
	fmt.Printf(`navsim - Route playback simulator

USAGE:
    navsim <command> [options]

COMMANDS:
    run        Play a route back tick by tick
    progress   Seek or snap on a route and print the progress snapshot
    export     Export a route as KML, GPX or GeoJSON
    routes     List configured routes
    locate     Classify a position or GPX track against configured routes
    config     Print the effective configuration
    help       Show this help message

ROUTE SOURCES (run, progress, export):
    --route <id>          Route from the catalog (default: first configured route)
    --polyline <encoded>  Encoded polyline
    --gpx <file>          GPX route or track
    --response <file>     Routing response JSON, with --vehicle to pick a route

EXAMPLES:
    # Play the sample route with a one second tick
    navsim run --interval 1s

    # Play a polyline and export the trace
    navsim run --polyline "_p~iF~ps|U_ulLnnqC_mqNvxq`+"`"+`@" --export trace.gpx --format gpx

    # Snapshot halfway along the route
    navsim progress --cursor 1

    # Classify a position against configured routes
    navsim locate --lat 40.7 --lng -120.95

Configuration is read from --config (or ROUTESIM_CONFIG) and overridden by
ROUTESIM_* environment variables, e.g. ROUTESIM_SIMULATION__TICK_INTERVAL=1s.
`)
}
