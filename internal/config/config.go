package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/lydakis/coex/internal/paths"
)

// Environment overrides applied after the config file is read.
const (
	EnvURL          = "COEX_URL"
	EnvTimeout      = "COEX_TIMEOUT" // seconds
	EnvCheckVersion = "COEX_CHECK_VERSION"
	EnvLogLevel     = "COEX_LOG_LEVEL"
	EnvLogFormat    = "COEX_LOG_FORMAT"
)

var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadFrom reads the config file at path, the optional .env next to the
// default config, and the environment overrides. A missing config file is
// not an error.
func LoadFrom(path string) (*Config, error) {
	if err := loadDotEnv(paths.DotEnvFile()); err != nil {
		return nil, err
	}

	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	expandConfigEnvVars(cfg)
	applyEnv(cfg, os.LookupEnv)
	return cfg, nil
}

// LoadForEditFrom parses path without env expansion or overrides, so a
// subsequent SaveTo does not bake secrets into the file.
func LoadForEditFrom(path string) (*Config, error) {
	return loadFile(path)
}

// ExampleConfigPath returns the default config file path (for help messages).
func ExampleConfigPath() string {
	return paths.ConfigFile()
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// loadDotEnv fills unset variables from path. Variables already present in
// the process environment win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("checking %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvURL); ok && strings.TrimSpace(v) != "" {
		cfg.URL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvTimeout); ok && strings.TrimSpace(v) != "" {
		v = strings.TrimSpace(v)
		if _, err := strconv.Atoi(v); err == nil {
			v += "s"
		}
		cfg.Timeout = v
	}
	if v, ok := lookup(EnvCheckVersion); ok && strings.TrimSpace(v) != "" {
		cfg.CheckVersion = parseBool(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		cfg.Log.Level = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogFormat); ok && strings.TrimSpace(v) != "" {
		cfg.Log.Format = strings.TrimSpace(v)
	}
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func expandConfigEnvVars(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.URL = expandEnvVars(cfg.URL)
	cfg.Timeout = expandEnvVars(cfg.Timeout)
	cfg.TokenFile = expandEnvVars(cfg.TokenFile)
	for k, v := range cfg.Headers {
		cfg.Headers[k] = expandEnvVars(v)
	}
}

// expandEnvVars replaces ${VAR_NAME} with the value of the environment variable.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarRe.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match // leave unresolved vars as-is
	})
}
