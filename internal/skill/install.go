// Package skill installs an agent skill document that teaches coding agents
// how to drive the coex CLI.
package skill

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lydakis/coex/internal/paths"
)

// Name is the skill folder name.
const Name = "coex"

// InstallOptions controls where the skill is written. Empty directories
// fall back to the defaults.
type InstallOptions struct {
	DataAgentDir string
	ClaudeDir    string
	SkipClaude   bool
}

// InstallResult lists the written SKILL.md files.
type InstallResult struct {
	Files []string
}

// DefaultDataAgentDir returns the shared agent skills directory.
func DefaultDataAgentDir() string {
	return filepath.Join(homeDir(), ".agents", "skills")
}

// DefaultClaudeDir returns the Claude Code skills directory.
func DefaultClaudeDir() string {
	return filepath.Join(homeDir(), ".claude", "skills")
}

// Install renders the skill and writes it into every target directory.
func Install(opts InstallOptions) (*InstallResult, error) {
	content, err := Render()
	if err != nil {
		return nil, err
	}

	dirs := []string{orDefault(opts.DataAgentDir, DefaultDataAgentDir)}
	if !opts.SkipClaude {
		dirs = append(dirs, orDefault(opts.ClaudeDir, DefaultClaudeDir))
	}

	result := &InstallResult{}
	for _, dir := range dirs {
		file := filepath.Join(dir, Name, "SKILL.md")
		if err := paths.WriteFileAtomic(file, content, 0o644); err != nil {
			return nil, fmt.Errorf("writing skill file: %w", err)
		}
		result.Files = append(result.Files, file)
	}
	return result, nil
}

func orDefault(dir string, fallback func() string) string {
	if dir = strings.TrimSpace(dir); dir != "" {
		return dir
	}
	return fallback()
}

func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	h, _ := os.UserHomeDir()
	return h
}
