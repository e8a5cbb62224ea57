package config

import (
	"fmt"
	"time"
)

// DefaultTimeoutSeconds bounds a request when neither the config file nor
// COEX_TIMEOUT sets a timeout.
const DefaultTimeoutSeconds = 1800

// Config is the top-level coex configuration.
type Config struct {
	// Service endpoint
	URL          string            `toml:"url"`
	Timeout      string            `toml:"timeout,omitempty"`
	CheckVersion bool              `toml:"check_version,omitempty"`
	Headers      map[string]string `toml:"headers,omitempty"`

	// Credentials; the token itself never lives in config.toml
	TokenFile string `toml:"token_file,omitempty"`

	Log LogConfig `toml:"log"`
}

// LogConfig selects the CLI logger's level and encoding.
type LogConfig struct {
	Level  string `toml:"level,omitempty"`  // debug, info, warn, error
	Format string `toml:"format,omitempty"` // console, logfmt, json
}

// RequestTimeout returns the effective per-call timeout.
func (c *Config) RequestTimeout() (time.Duration, error) {
	if c == nil || c.Timeout == "" {
		return DefaultTimeoutSeconds * time.Second, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be > 0, got %q", c.Timeout)
	}
	return d, nil
}
