package config

import (
	"os"
	"strconv"
	"time"
)

// Environment variables recognised by New and Load.
const (
	EnvHome                = "TCOCALC_HOME"
	EnvAPIURL              = "TCOCALC_API_URL"
	EnvCalcTimeout         = "TCOCALC_CALC_TIMEOUT"
	EnvLogLevel            = "TCOCALC_LOG_LEVEL"
	EnvLogFormat           = "TCOCALC_LOG_FORMAT"
	EnvCacheEnabled        = "TCOCALC_CACHE_ENABLED"
	EnvCacheTTL            = "TCOCALC_CACHE_TTL"
	EnvCacheDir            = "TCOCALC_CACHE_DIR"
	EnvStrictCompatibility = "TCOCALC_STRICT_COMPATIBILITY"
)

// applyEnvOverrides overwrites fields whose environment variable is set and
// parses. Unparseable values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvCalcTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Calculation.Timeout = d
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(EnvCacheEnabled); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Cache.Enabled = b
		}
	}
	if v := os.Getenv(EnvCacheTTL); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Cache.TTLSeconds = n
		}
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		c.Cache.Directory = v
	}
	if v := os.Getenv(EnvStrictCompatibility); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.API.StrictCompatibility = b
		}
	}
}
