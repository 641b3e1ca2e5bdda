// Package config loads the server configuration: defaults, then an optional
// YAML file, then WALK_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"waypoint-walk/server/internal/sim"
	"waypoint-walk/server/logging"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvConfig       = "WALK_CONFIG"
	EnvAddr         = "WALK_ADDR"
	EnvTickRate     = "WALK_TICK_RATE"
	EnvScenesDir    = "WALK_SCENES_DIR"
	EnvDefaultScene = "WALK_DEFAULT_SCENE"
	EnvClientDir    = "WALK_CLIENT_DIR"
	EnvLogSinks     = "WALK_LOG_SINKS"
	EnvLogLevel     = "WALK_LOG_LEVEL"
	EnvMetrics      = "WALK_METRICS"
	EnvPprof        = "WALK_PPROF"
)

type Config struct {
	Addr         string         `yaml:"addr"`
	ScenesDir    string         `yaml:"scenes_dir"`
	DefaultScene string         `yaml:"default_scene"`
	ClientDir    string         `yaml:"client_dir"`
	ActorHeight  float64        `yaml:"actor_height"`
	Loop         sim.LoopConfig `yaml:"loop"`
	Logging      logging.Config `yaml:"logging"`
	Metrics      MetricsConfig  `yaml:"metrics"`
	Debug        DebugConfig    `yaml:"debug"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// DebugConfig holds opt-in diagnostics toggles.
type DebugConfig struct {
	// Pprof mounts the runtime profiler under /debug.
	Pprof bool `yaml:"pprof"`
}

func Default() Config {
	return Config{
		Addr:         ":8080",
		ScenesDir:    "scenes",
		DefaultScene: "home",
		Loop:         sim.DefaultLoopConfig(),
		Logging:      logging.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "waypoint_walk",
		},
	}
}

// Load reads path over the defaults and applies the process environment. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from lookup, typically os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	if v, ok := lookup(EnvAddr); ok && v != "" {
		c.Addr = v
	}
	if v, ok := lookup(EnvTickRate); ok && v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", EnvTickRate, v, err)
		}
		c.Loop.TickRate = rate
	}
	if v, ok := lookup(EnvScenesDir); ok && v != "" {
		c.ScenesDir = v
	}
	if v, ok := lookup(EnvDefaultScene); ok && v != "" {
		c.DefaultScene = v
	}
	if v, ok := lookup(EnvClientDir); ok {
		c.ClientDir = v
	}
	if v, ok := lookup(EnvLogSinks); ok {
		c.Logging.EnabledSinks = splitList(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.SeverityName = v
	}
	if v, ok := lookup(EnvMetrics); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", EnvMetrics, v, err)
		}
		c.Metrics.Enabled = enabled
	}
	if v, ok := lookup(EnvPprof); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", EnvPprof, v, err)
		}
		c.Debug.Pprof = enabled
	}
	return nil
}

// Validate rejects settings the server cannot start with and resolves the
// logging severity.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("config: addr is required")
	}
	if c.ScenesDir == "" {
		return errors.New("config: scenes_dir is required")
	}
	if c.DefaultScene == "" {
		return errors.New("config: default_scene is required")
	}
	if c.Loop.TickRate <= 0 {
		return fmt.Errorf("config: loop.tick_rate must be positive, got %d", c.Loop.TickRate)
	}
	if c.Loop.TickRate > sim.MaxTickRate {
		return fmt.Errorf("config: loop.tick_rate must be at most %d, got %d", sim.MaxTickRate, c.Loop.TickRate)
	}
	if c.Loop.CatchupMaxTicks < 0 || c.Loop.CommandCapacity < 0 || c.Loop.PerActorLimit < 0 {
		return errors.New("config: loop limits must not be negative")
	}
	resolved, err := c.Logging.ResolveSeverity()
	if err != nil {
		return fmt.Errorf("config: logging: %w", err)
	}
	c.Logging = resolved
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
