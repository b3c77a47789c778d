package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/dpup/info.ersn.net/routesim/internal/cache"
	"github.com/dpup/info.ersn.net/routesim/internal/config"
	"github.com/dpup/info.ersn.net/routesim/internal/lib/export"
	"github.com/dpup/info.ersn.net/routesim/internal/lib/geo"
	"github.com/dpup/info.ersn.net/routesim/internal/lib/routing"
)

// routeFlags are the route source flags shared by subcommands
type routeFlags struct {
	config   *string
	route    *string
	polyline *string
	gpx      *string
	response *string
	vehicle  *string
}

// environment is the loaded config, logger, catalog and selected route
type environment struct {
	cfg     *config.Config
	logger  *zap.Logger
	catalog *routing.Catalog
	route   routing.Route

	// routes added from --response, in response order
	responseRoutes []routing.Route
}

func addRouteFlags(fs *flag.FlagSet) *routeFlags {
	return &routeFlags{
		config:   fs.String("config", os.Getenv("ROUTESIM_CONFIG"), "Path to YAML config file"),
		route:    fs.String("route", "", "Route ID from the catalog"),
		polyline: fs.String("polyline", "", "Encoded polyline"),
		gpx:      fs.String("gpx", "", "GPX file with a route or track"),
		response: fs.String("response", "", "Routing response JSON file"),
		vehicle:  fs.String("vehicle", "", "Vehicle route to use from --response"),
	}
}

// loadCatalog loads configuration and builds the catalog, including routes
// from --response
func (f *routeFlags) loadCatalog() (*environment, error) {
	cfg, err := config.Load(*f.config)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	routeCache := cache.NewRouteCache(cfg.Cache.RouteTTL, logger)
	if cfg.Cache.RouteTTL > 0 && cfg.Cache.CleanupInterval > 0 {
		routeCache.StartPeriodicCleanup(context.Background(), cfg.Cache.CleanupInterval)
	}

	catalog, err := routing.NewCatalog(cfg.Routes, routeCache)
	if err != nil {
		return nil, err
	}
	env := &environment{cfg: cfg, logger: logger, catalog: catalog}

	if *f.response != "" {
		file, err := os.Open(*f.response)
		if err != nil {
			return nil, err
		}
		defer file.Close()

		resp, err := routing.ParseResponse(file)
		if err != nil {
			return nil, err
		}
		env.responseRoutes, err = catalog.AddResponse(resp)
		if err != nil {
			return nil, err
		}
		logger.Debug("Loaded routing response", zap.String("file", *f.response), zap.Int("routes", len(env.responseRoutes)))
	}

	return env, nil
}

// load resolves a single route: --polyline, then --gpx, then --response
// (optionally with --vehicle), then --route, then the first catalog route
func (f *routeFlags) load() (*environment, error) {
	env, err := f.loadCatalog()
	if err != nil {
		return nil, err
	}

	switch {
	case *f.polyline != "":
		env.route, err = env.catalog.AddEncoded("polyline", "Polyline", *f.polyline, 0)
	case *f.gpx != "":
		env.route, err = loadGPX(*f.gpx)
	case len(env.responseRoutes) > 0 && *f.vehicle != "":
		env.route, err = env.catalog.Get(*f.vehicle)
	case len(env.responseRoutes) > 0:
		env.route = env.responseRoutes[0]
	case *f.route != "":
		env.route, err = env.catalog.Get(*f.route)
	default:
		if len(env.cfg.Routes) == 0 {
			err = errors.New("no route given and none configured")
			break
		}
		env.route, err = env.catalog.Get(env.cfg.Routes[0].ID)
	}
	if err != nil {
		return nil, err
	}

	env.logger.Debug("Route selected",
		zap.String("route_id", env.route.ID),
		zap.Int("points", len(env.route.Points())),
		zap.Int("steps", len(env.route.Steps)))
	return env, nil
}

func loadGPX(path string) (routing.Route, error) {
	file, err := os.Open(path)
	if err != nil {
		return routing.Route{}, err
	}
	defer file.Close()

	points, err := export.ReadGPXRoute(file)
	if err != nil {
		return routing.Route{}, fmt.Errorf("%s: %w", path, err)
	}
	return routing.Route{
		ID:             path,
		Name:           path,
		Polyline:       geo.Polyline{EncodedPolyline: geo.EncodePolyline(points), Points: points},
		DistanceMeters: geo.PathLength(points),
	}, nil
}
