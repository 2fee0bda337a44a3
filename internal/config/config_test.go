package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/tcocalc/internal/config"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv(config.EnvHome, t.TempDir())

	cfg := config.New()

	assert.Equal(t, config.DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, config.DefaultRequestTimeout, cfg.API.RequestTimeout)
	assert.Equal(t, config.DefaultCalculationTimeout, cfg.Calculation.Timeout)
	assert.False(t, cfg.Calculation.IncludeITCost)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "1.53", cfg.Tables.Derivation.Values["40"]["UK"])
	require.NoError(t, cfg.Validate())
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv(config.EnvHome, t.TempDir())
	t.Setenv(config.EnvAPIURL, "https://calc.example.com")
	t.Setenv(config.EnvCalcTimeout, "5s")
	t.Setenv(config.EnvCacheEnabled, "false")
	t.Setenv(config.EnvCacheTTL, "60")
	t.Setenv(config.EnvLogLevel, "debug")
	t.Setenv(config.EnvStrictCompatibility, "true")

	cfg := config.New()

	assert.Equal(t, "https://calc.example.com", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Calculation.Timeout)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 60, cfg.Cache.TTLSeconds)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.API.StrictCompatibility)
}

func TestNew_BadEnvIgnored(t *testing.T) {
	t.Setenv(config.EnvHome, t.TempDir())
	t.Setenv(config.EnvCalcTimeout, "soon")
	t.Setenv(config.EnvCacheTTL, "-4")

	cfg := config.New()

	assert.Equal(t, config.DefaultCalculationTimeout, cfg.Calculation.Timeout)
	assert.Equal(t, config.DefaultCacheTTLSeconds, cfg.Cache.TTLSeconds)
}

func TestLoad(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		t.Setenv(config.EnvHome, t.TempDir())
		cfg, err := config.Load("")
		require.NoError(t, err)
		assert.Equal(t, config.DefaultBaseURL, cfg.API.BaseURL)
	})

	t.Run("file then env", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv(config.EnvHome, dir)
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://from-file.example.com
  request_timeout: 3s
logging:
  level: warn
`), 0o600))
		t.Setenv(config.EnvLogLevel, "error")

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "https://from-file.example.com", cfg.API.BaseURL)
		assert.Equal(t, 3*time.Second, cfg.API.RequestTimeout)
		assert.Equal(t, "error", cfg.Logging.Level)
		assert.Equal(t, path, cfg.ConfigPath())
	})

	t.Run("invalid file rejected", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv(config.EnvHome, dir)
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("api:\n  base_url: not-a-url\n"), 0o600))

		_, err := config.Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api.base_url")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"ok", func(*config.Config) {}, ""},
		{"relative url", func(c *config.Config) { c.API.BaseURL = "/api" }, "api.base_url"},
		{"zero request timeout", func(c *config.Config) { c.API.RequestTimeout = 0 }, "api.request_timeout"},
		{"zero calc timeout", func(c *config.Config) { c.Calculation.Timeout = 0 }, "calculation.timeout"},
		{"negative ttl", func(c *config.Config) { c.Cache.TTLSeconds = -1 }, "cache.ttl_seconds"},
		{"cache without dir", func(c *config.Config) { c.Cache.Directory = "" }, "cache.directory"},
		{"tracing without endpoint", func(c *config.Config) { c.Tracing.Enabled = true }, "tracing.endpoint"},
		{"derivation without target", func(c *config.Config) { c.Tables.Derivation.Target = "" }, "tables.derivation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(config.EnvHome, t.TempDir())
			cfg := config.New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvHome, dir)

	cfg := config.New()
	cfg.API.BaseURL = "https://saved.example.com"
	cfg.Calculation.IncludeITCost = true
	path := filepath.Join(dir, "nested", "config.yaml")
	cfg.SetConfigPath(path)
	require.NoError(t, cfg.Save())

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://saved.example.com", loaded.API.BaseURL)
	assert.True(t, loaded.Calculation.IncludeITCost)
	assert.Equal(t, cfg.Tables.Derivation.Values, loaded.Tables.Derivation.Values)
}

func TestGlobalConfig(t *testing.T) {
	t.Setenv(config.EnvHome, t.TempDir())
	config.ResetGlobalConfigForTest()
	t.Cleanup(config.ResetGlobalConfigForTest)

	assert.NotNil(t, config.GetGlobalConfig())

	custom := config.New()
	custom.Logging.Level = "trace"
	config.InitGlobalConfig(custom)
	assert.Equal(t, "trace", config.GetLoggingConfig().Level)
}

func TestToLoggingConfig(t *testing.T) {
	lc := config.LoggingConfig{Level: "debug", Format: "json"}
	assert.Equal(t, "stderr", lc.ToLoggingConfig().Output)

	lc.File = "/tmp/tcocalc.log"
	out := lc.ToLoggingConfig()
	assert.Equal(t, "file", out.Output)
	assert.Equal(t, "/tmp/tcocalc.log", out.File)
}

func TestParseTables(t *testing.T) {
	tables := config.DefaultTables()
	assert.Equal(t, "air_annualised_ppue", tables.Derivation.Target)
	assert.Equal(t, "UK", tables.Derivation.LocationAliases["United Kingdom"])
	assert.Equal(t, "percentage_of_utilisation", tables.Calculation.Fields["utilisation_percentage"].Key)
	assert.Equal(t, config.CoercePercent, tables.Calculation.Fields["utilisation_percentage"].Coerce)
	assert.Equal(t, "air_cooling", tables.Calculation.SolutionTypes["Air Cooling"])
	assert.Contains(t, tables.ITCostKeys, "tco_including_it")

	_, err := config.ParseTables([]byte("derivation: {target: x}"))
	require.Error(t, err)
}
