package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides. Nested keys are separated by a
// double underscore, e.g. ROUTESIM_SIMULATION__TICK_INTERVAL=1s.
const EnvPrefix = "ROUTESIM_"

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence, then validates it.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultValues(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if !k.Exists("routes") {
		cfg.Routes = DefaultConfig().Routes
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints and route ID uniqueness
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	seen := make(map[string]bool, len(cfg.Routes))
	for _, r := range cfg.Routes {
		if seen[r.ID] {
			return fmt.Errorf("invalid config: duplicate route id %q", r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}

// Dump renders the configuration as YAML
func Dump(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func defaultValues() map[string]interface{} {
	d := DefaultConfig()
	return map[string]interface{}{
		"simulation.tick_interval":         d.Simulation.TickInterval.String(),
		"simulation.snap_threshold_meters": d.Simulation.SnapThresholdMeters,
		"simulation.event_buffer":          d.Simulation.EventBuffer,
		"simulation.max_sessions":          d.Simulation.MaxSessions,
		"logging.level":                    d.Logging.Level,
		"logging.encoding":                 d.Logging.Encoding,
		"logging.development":              d.Logging.Development,
		"cache.route_ttl":                  d.Cache.RouteTTL.String(),
		"cache.cleanup_interval":           d.Cache.CleanupInterval.String(),
	}
}
