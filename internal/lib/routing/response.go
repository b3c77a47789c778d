package routing

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/dpup/info.ersn.net/routesim/internal/lib/geo"
	"github.com/dpup/info.ersn.net/routesim/internal/lib/instructions"
)

// ErrNoRoutes is returned when a routing response carries no routes
var ErrNoRoutes = errors.New("routing response contains no routes")

// Response is an optimization-style routing response (NextBillion shape)
type Response struct {
	Description string `json:"description"`
	Result      struct {
		Code    int             `json:"code"`
		Summary ResponseSummary `json:"summary"`
		Routes  []ResponseRoute `json:"routes"`
	} `json:"result"`
}

// ResponseSummary aggregates all routes in a response
type ResponseSummary struct {
	Cost       int `json:"cost"`
	Routes     int `json:"routes"`
	Unassigned int `json:"unassigned"`
	Duration   int `json:"duration"`
	Distance   int `json:"distance"`
}

// ResponseRoute is one vehicle route
type ResponseRoute struct {
	Vehicle     string         `json:"vehicle"`
	Cost        int            `json:"cost"`
	Distance    float64        `json:"distance"`
	Duration    int            `json:"duration"`
	Geometry    string         `json:"geometry"`
	Description string         `json:"description"`
	Steps       []ResponseStep `json:"steps"`
}

// ResponseStep is a stop along a route. Location is [latitude, longitude]
// and Distance the cumulative meters from the route start.
type ResponseStep struct {
	Type     string    `json:"type"` // "start", "job", "end"
	Arrival  int64     `json:"arrival"`
	Duration int       `json:"duration"`
	Location []float64 `json:"location"`
	Distance float64   `json:"distance"`
	ID       string    `json:"id,omitempty"`
	Job      string    `json:"job,omitempty"`
	Depot    string    `json:"depot,omitempty"`
}

// ParseResponse decodes a routing response
func ParseResponse(r io.Reader) (*Response, error) {
	var resp Response
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to parse routing response: %w", err)
	}
	if len(resp.Result.Routes) == 0 {
		return nil, ErrNoRoutes
	}
	return &resp, nil
}

// Routes decodes every route geometry. Route IDs are the vehicle name, or
// "route-<n>" when absent.
func (r *Response) Routes(decode func(string) ([]geo.Point, error)) ([]Route, error) {
	if decode == nil {
		decode = geo.DecodePolyline
	}

	routes := make([]Route, 0, len(r.Result.Routes))
	for i, rr := range r.Result.Routes {
		id := rr.Vehicle
		if id == "" {
			id = "route-" + strconv.Itoa(i+1)
		}

		points, err := decode(rr.Geometry)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", id, err)
		}

		name := rr.Description
		if name == "" {
			name = id
		}

		routes = append(routes, Route{
			ID:             id,
			Name:           name,
			Polyline:       geo.Polyline{EncodedPolyline: rr.Geometry, Points: points},
			Steps:          rr.InstructionSteps(),
			DistanceMeters: rr.Distance,
		})
	}
	return routes, nil
}

// InstructionSteps turns route steps into spoken maneuvers ordered by distance
func (rr ResponseRoute) InstructionSteps() []instructions.Step {
	steps := make([]instructions.Step, 0, len(rr.Steps))
	for _, s := range rr.Steps {
		text := strings.TrimSpace(s.text())
		if text == "" {
			continue
		}
		steps = append(steps, instructions.Step{Text: text, AtMeters: s.Distance})
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].AtMeters < steps[j].AtMeters })
	return steps
}

func (s ResponseStep) text() string {
	switch s.Type {
	case "start":
		return "Depart from " + firstNonEmpty(s.Depot, s.ID, "start")
	case "job":
		return "Arrive at stop " + firstNonEmpty(s.Job, s.ID, "")
	case "pickup", "delivery":
		return "Arrive at " + s.Type + " " + firstNonEmpty(s.Job, s.ID, "")
	case "break":
		return "Take a break"
	default:
		// "end" is covered by the arrival cue
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
