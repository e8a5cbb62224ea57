package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate checks configuration invariants and returns actionable errors.
func Validate(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var errs []error
	if raw := strings.TrimSpace(cfg.URL); raw != "" {
		u, err := url.ParseRequestURI(raw)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("url: invalid URL %q: %w", raw, err))
		case u.Scheme != "http" && u.Scheme != "https":
			errs = append(errs, fmt.Errorf("url: scheme must be http or https, got %q", u.Scheme))
		case u.Host == "":
			errs = append(errs, fmt.Errorf("url: missing host in %q", raw))
		}
	}

	if _, err := cfg.RequestTimeout(); err != nil {
		errs = append(errs, fmt.Errorf("timeout: %w", err))
	}

	names := make([]string, 0, len(cfg.Headers))
	for name := range cfg.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Errorf("headers: empty header name"))
		} else if strings.ContainsAny(name, " \t:") {
			errs = append(errs, fmt.Errorf("headers.%s: invalid header name", name))
		}
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: must be debug, info, warn or error, got %q", cfg.Log.Level))
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "console", "logfmt", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: must be console, logfmt or json, got %q", cfg.Log.Format))
	}

	return errors.Join(errs...)
}

// RequireURL reports a usage error when no service URL is configured.
func RequireURL(cfg *Config) error {
	if cfg == nil || strings.TrimSpace(cfg.URL) == "" {
		return fmt.Errorf("no service URL configured: pass --url, set %s, or add url to %s", EnvURL, ExampleConfigPath())
	}
	return nil
}
