package routing

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dpup/info.ersn.net/routesim/internal/config"
	"github.com/dpup/info.ersn.net/routesim/internal/lib/geo"
)

// ErrRouteNotFound is returned for unknown route IDs
var ErrRouteNotFound = errors.New("route not found")

// Decoder decodes encoded polylines; *cache.RouteCache satisfies it
type Decoder interface {
	Decode(encoded string) ([]geo.Point, error)
}

// Catalog holds named routes, decoded once through a Decoder
type Catalog struct {
	decoder Decoder
	mu      sync.RWMutex
	routes  map[string]Route
}

// NewCatalog builds a catalog from configured routes
func NewCatalog(routes []config.RouteConfig, decoder Decoder) (*Catalog, error) {
	c := &Catalog{
		decoder: decoder,
		routes:  make(map[string]Route, len(routes)),
	}
	for _, rc := range routes {
		if _, err := c.AddEncoded(rc.ID, rc.Name, rc.Geometry, rc.MaxDistanceMeters); err != nil {
			return nil, err
		}
		if steps := rc.InstructionSteps(); len(steps) > 0 {
			r := c.routes[rc.ID]
			r.Steps = steps
			c.routes[rc.ID] = r
		}
	}
	return c, nil
}

// AddEncoded decodes and registers a route, replacing any route with the
// same ID
func (c *Catalog) AddEncoded(id, name, encoded string, maxDistance float64) (Route, error) {
	points, err := c.decode(encoded)
	if err != nil {
		return Route{}, fmt.Errorf("route %s: %w", id, err)
	}
	if len(points) < 2 {
		return Route{}, fmt.Errorf("route %s: %w", id, ErrInvalidRoute)
	}
	if name == "" {
		name = id
	}

	route := Route{
		ID:             id,
		Name:           name,
		Polyline:       geo.Polyline{EncodedPolyline: encoded, Points: points},
		DistanceMeters: geo.PathLength(points),
		MaxDistance:    maxDistance,
	}
	c.Add(route)
	return route, nil
}

// AddResponse registers every route of a routing response
func (c *Catalog) AddResponse(resp *Response) ([]Route, error) {
	routes, err := resp.Routes(c.decode)
	if err != nil {
		return nil, err
	}
	for _, r := range routes {
		c.Add(r)
	}
	return routes, nil
}

// Add registers a decoded route
func (c *Catalog) Add(route Route) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[route.ID] = route
}

// Get returns a route by ID
func (c *Catalog) Get(id string) (Route, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	route, ok := c.routes[id]
	if !ok {
		return Route{}, fmt.Errorf("%w: %s", ErrRouteNotFound, id)
	}
	return route, nil
}

// List returns all routes ordered by ID
func (c *Catalog) List() []Route {
	c.mu.RLock()
	defer c.mu.RUnlock()

	routes := make([]Route, 0, len(c.routes))
	for _, r := range c.routes {
		routes = append(routes, r)
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].ID < routes[j].ID })
	return routes
}

func (c *Catalog) decode(encoded string) ([]geo.Point, error) {
	if c.decoder == nil {
		return geo.DecodePolyline(encoded)
	}
	return c.decoder.Decode(encoded)
}
