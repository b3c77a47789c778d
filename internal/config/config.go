package config

import (
	"time"

	"github.com/dpup/info.ersn.net/routesim/internal/lib/instructions"
)

// Config represents the complete engine configuration
type Config struct {
	Simulation SimulationConfig `koanf:"simulation" yaml:"simulation"`
	Logging    LoggingConfig    `koanf:"logging" yaml:"logging"`
	Cache      CacheConfig      `koanf:"cache" yaml:"cache"`
	Routes     []RouteConfig    `koanf:"routes" yaml:"routes" validate:"dive"`
}

// SimulationConfig holds playback settings
type SimulationConfig struct {
	TickInterval        time.Duration `koanf:"tick_interval" yaml:"tick_interval" validate:"gt=0"`
	SnapThresholdMeters float64       `koanf:"snap_threshold_meters" yaml:"snap_threshold_meters" validate:"gt=0"`
	EventBuffer         int           `koanf:"event_buffer" yaml:"event_buffer" validate:"gte=0"`
	MaxSessions         int           `koanf:"max_sessions" yaml:"max_sessions" validate:"gte=0"` // 0 = unlimited
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level       string `koanf:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Encoding    string `koanf:"encoding" yaml:"encoding" validate:"omitempty,oneof=json console"`
	Development bool   `koanf:"development" yaml:"development"`
}

// CacheConfig controls the decoded-route cache
type CacheConfig struct {
	RouteTTL        time.Duration `koanf:"route_ttl" yaml:"route_ttl" validate:"gte=0"` // 0 = never expire
	CleanupInterval time.Duration `koanf:"cleanup_interval" yaml:"cleanup_interval" validate:"gte=0"`
}

// RouteConfig is a named route available to the catalog
type RouteConfig struct {
	ID                string       `koanf:"id" yaml:"id" validate:"required"`
	Name              string       `koanf:"name" yaml:"name"`
	Geometry          string       `koanf:"geometry" yaml:"geometry" validate:"required"`
	MaxDistanceMeters float64      `koanf:"max_distance_meters" yaml:"max_distance_meters" validate:"gte=0"`
	Steps             []StepConfig `koanf:"steps" yaml:"steps" validate:"dive"`
}

// StepConfig is a real maneuver attached to a configured route
type StepConfig struct {
	Text     string  `koanf:"text" yaml:"text" validate:"required"`
	AtMeters float64 `koanf:"at_meters" yaml:"at_meters" validate:"gte=0"`
}

// InstructionSteps converts configured steps for the step synthesizer
func (r RouteConfig) InstructionSteps() []instructions.Step {
	if len(r.Steps) == 0 {
		return nil
	}
	steps := make([]instructions.Step, len(r.Steps))
	for i, s := range r.Steps {
		steps[i] = instructions.Step{Text: s.Text, AtMeters: s.AtMeters}
	}
	return steps
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Simulation: SimulationConfig{
			TickInterval:        3 * time.Second,
			SnapThresholdMeters: 100,
			EventBuffer:         64,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
		Cache: CacheConfig{
			RouteTTL:        time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Routes: []RouteConfig{
			{
				ID:                "hwy4-sample",
				Name:              "Sample route (38.5,-120.2) to (43.252,-126.453)",
				Geometry:          "_p~iF~ps|U_ulLnnqC_mqNvxq`@",
				MaxDistanceMeters: 16093.4, // 10 miles
			},
		},
	}
}
