package config

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/lydakis/coex/internal/paths"
)

// Save writes the config to the default config path atomically.
func Save(cfg *Config) error {
	return SaveTo(paths.ConfigFile(), cfg)
}

// SaveTo writes cfg to path atomically with owner-only permissions.
func SaveTo(path string, cfg *Config) error {
	if cfg == nil {
		cfg = &Config{}
	}

	var payload bytes.Buffer
	if err := toml.NewEncoder(&payload).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := paths.WriteFileAtomic(path, payload.Bytes(), 0o600); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}
