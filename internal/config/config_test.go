package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waypoint-walk/server/internal/sim"
	"waypoint-walk/server/logging"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 30, cfg.Loop.TickRate)
	assert.True(t, cfg.Logging.HasSink("console"))
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9090"
default_scene: city
loop:
  tick_rate: 20
logging:
  sinks: [console, json]
  min_severity: debug
  json:
    file: events.jsonl
    flush_interval: 500ms
metrics:
  enabled: false
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "city", cfg.DefaultScene)
	assert.Equal(t, "scenes", cfg.ScenesDir)
	assert.Equal(t, 20, cfg.Loop.TickRate)
	assert.Equal(t, 3, cfg.Loop.CatchupMaxTicks)
	assert.Equal(t, logging.SeverityDebug, cfg.Logging.MinimumSeverity)
	assert.Equal(t, 500*time.Millisecond, cfg.Logging.JSON.FlushInterval)
	assert.True(t, cfg.Logging.HasSink("json"))
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("adress: \":1\"\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walk.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Addr, cfg.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		EnvAddr:         "127.0.0.1:7000",
		EnvTickRate:     "60",
		EnvScenesDir:    "/srv/scenes",
		EnvDefaultScene: "city",
		EnvLogSinks:     " console , json ,",
		EnvLogLevel:     "warn",
		EnvMetrics:      "false",
		EnvPprof:        "1",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
	assert.Equal(t, 60, cfg.Loop.TickRate)
	assert.Equal(t, "/srv/scenes", cfg.ScenesDir)
	assert.Equal(t, "city", cfg.DefaultScene)
	assert.Equal(t, []string{"console", "json"}, cfg.Logging.EnabledSinks)
	assert.Equal(t, logging.SeverityWarn, cfg.Logging.MinimumSeverity)
	assert.False(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Debug.Pprof)
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	for key, value := range map[string]string{EnvTickRate: "fast", EnvMetrics: "maybe", EnvPprof: "sometimes"} {
		cfg := Default()
		require.Error(t, cfg.ApplyEnv(envMap(map[string]string{key: value})), key)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"addr":      func(c *Config) { c.Addr = "" },
		"scenes":    func(c *Config) { c.ScenesDir = "" },
		"default":   func(c *Config) { c.DefaultScene = "" },
		"tick-rate": func(c *Config) { c.Loop.TickRate = 0 },
		"tick-fast": func(c *Config) { c.Loop.TickRate = 2_000_000_000 },
		"negative":  func(c *Config) { c.Loop.PerActorLimit = -1 },
		"severity":  func(c *Config) { c.Logging.SeverityName = "loud" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAcceptsMaxTickRate(t *testing.T) {
	cfg := Default()
	cfg.Loop.TickRate = sim.MaxTickRate
	require.NoError(t, cfg.Validate())
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "walk.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "home", cfg.DefaultScene)
	assert.Equal(t, 16, cfg.Loop.PerActorLimit)
}
