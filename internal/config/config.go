// Package config loads tcocalc configuration from ~/.tcocalc/config.yaml,
// applies TCOCALC_* environment overrides, and carries the lookup tables the
// calculator components are built from.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values used by New.
const (
	DefaultBaseURL            = "http://localhost:3000"
	DefaultRequestTimeout     = 15 * time.Second
	DefaultCalculationTimeout = 30 * time.Second
	DefaultCacheTTLSeconds    = 3600
	DefaultCacheMaxSizeMB     = 50
	DefaultVersionConstraint  = ">= 1.0.0, < 2.0.0"
	DefaultServiceName        = "tcocalc"
	DefaultOutputFormat       = "table"
	DefaultPrecision          = 2
)

// Config is the full tcocalc configuration.
type Config struct {
	API         APIConfig         `yaml:"api"`
	Calculation CalculationConfig `yaml:"calculation"`
	Cache       CacheConfig       `yaml:"cache"`
	Logging     LoggingConfig     `yaml:"logging"`
	Output      OutputConfig      `yaml:"output"`
	Tracing     TracingConfig     `yaml:"tracing"`
	Tables      Tables            `yaml:"tables"`

	configPath string
}

// APIConfig describes the remote catalog and calculation service.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// VersionConstraint is checked against the X-API-Version response header.
	VersionConstraint string `yaml:"version_constraint"`

	// StrictCompatibility turns a version mismatch into an error instead of a warning.
	StrictCompatibility bool `yaml:"strict_compatibility"`
}

// CalculationConfig controls calculation invocation.
type CalculationConfig struct {
	// Timeout bounds a single calculation call.
	Timeout time.Duration `yaml:"timeout"`

	// IncludeITCost keeps IT-cost metrics in comparison diffs.
	IncludeITCost bool `yaml:"include_it_cost"`
}

// CacheConfig controls the on-disk catalog cache.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	TTLSeconds int    `yaml:"ttl_seconds"`
	Directory  string `yaml:"directory"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string      `yaml:"level"`
	Format string      `yaml:"format"`
	File   string      `yaml:"file"`
	Audit  AuditConfig `yaml:"audit"`
}

// AuditConfig controls the calculation audit trail.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	File    string `yaml:"file"`
}

// OutputConfig controls rendering.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Precision     int    `yaml:"precision"`
}

// TracingConfig controls OTLP span export.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// New returns a Config populated with defaults and environment overrides.
// It does not read any file.
func New() *Config {
	dir, err := GetConfigDir()
	if err != nil {
		dir = filepath.Join(os.TempDir(), ".tcocalc")
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL:           DefaultBaseURL,
			RequestTimeout:    DefaultRequestTimeout,
			VersionConstraint: DefaultVersionConstraint,
		},
		Calculation: CalculationConfig{
			Timeout: DefaultCalculationTimeout,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: DefaultCacheTTLSeconds,
			Directory:  filepath.Join(dir, "cache"),
			MaxSizeMB:  DefaultCacheMaxSizeMB,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Audit: AuditConfig{
				File: filepath.Join(dir, "logs", "audit.log"),
			},
		},
		Output: OutputConfig{
			DefaultFormat: DefaultOutputFormat,
			Precision:     DefaultPrecision,
		},
		Tracing: TracingConfig{
			ServiceName: DefaultServiceName,
		},
		Tables:     DefaultTables(),
		configPath: filepath.Join(dir, "config.yaml"),
	}

	cfg.applyEnvOverrides()
	return cfg
}

// Load builds a Config from defaults, the YAML file at path (if it exists),
// and environment overrides, in that order. An empty path means the default
// location.
func Load(path string) (*Config, error) {
	cfg := New()
	if path != "" {
		cfg.configPath = path
	}

	if _, err := os.Stat(cfg.configPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("checking config file %s: %w", cfg.configPath, err)
	}

	if err := ShallowMergeYAML(cfg, cfg.configPath); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfg.configPath, err)
	}
	return cfg, nil
}

// ConfigPath returns the file this config reads from and saves to.
func (c *Config) ConfigPath() string {
	return c.configPath
}

// SetConfigPath changes the file Save writes to.
func (c *Config) SetConfigPath(path string) {
	c.configPath = path
}

// Save writes the config as YAML, creating parent directories as needed.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.New("config path not set")
	}
	if err := os.MkdirAll(filepath.Dir(c.configPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	tmp := c.configPath + ".tmp"
	if err = os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err = os.Rename(tmp, c.configPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming config: %w", err)
	}
	return nil
}

// Validate reports the first structural problem in the config.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("api.request_timeout must be positive, got %s", c.API.RequestTimeout)
	}
	if c.Calculation.Timeout <= 0 {
		return fmt.Errorf("calculation.timeout must be positive, got %s", c.Calculation.Timeout)
	}
	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache.ttl_seconds must be >= 0, got %d", c.Cache.TTLSeconds)
	}
	if c.Cache.Enabled && c.Cache.Directory == "" {
		return errors.New("cache.directory is required when the cache is enabled")
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return errors.New("tracing.endpoint is required when tracing is enabled")
	}
	return c.Tables.Validate()
}
