package paths

import (
	"os"
	"path/filepath"
)

const appName = "coex"

func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	h, _ := os.UserHomeDir()
	return h
}

func xdgDir(envVar, fallbackSuffix string) string {
	if v := os.Getenv(envVar); v != "" {
		return filepath.Join(v, appName)
	}
	return filepath.Join(homeDir(), fallbackSuffix, appName)
}

// ConfigDir returns the coex config directory ($XDG_CONFIG_HOME/coex).
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns the coex state directory ($XDG_STATE_HOME/coex).
func StateDir() string {
	return xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

// ConfigFile returns the path to config.toml.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DotEnvFile returns the path to the optional .env file next to config.toml.
func DotEnvFile() string {
	return filepath.Join(ConfigDir(), ".env")
}

// TokenFile returns the default location of the stored auth token.
func TokenFile() string {
	return filepath.Join(ConfigDir(), "token")
}

// JobsDir returns the directory holding the submitted-job ledger.
func JobsDir() string {
	return filepath.Join(StateDir(), "jobs")
}

// EnsureDir creates a directory and parents if needed.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0700)
}
