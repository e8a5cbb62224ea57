// Package display reads the workbench display metadata of service methods:
// labels, hints, icons, and method suggestions. It carries no behavior.
package display

import (
	"embed"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed methods/*.yaml
var builtin embed.FS

// Spec is the display document of one method.
type Spec struct {
	Name        string               `yaml:"name" json:"name,omitempty"`
	Tooltip     string               `yaml:"tooltip" json:"tooltip,omitempty"`
	Screenshots []string             `yaml:"screenshots" json:"screenshots,omitempty"`
	Icon        string               `yaml:"icon" json:"icon,omitempty"`
	Suggestions Suggestions          `yaml:"suggestions" json:"suggestions,omitempty"`
	Parameters  map[string]Parameter `yaml:"parameters" json:"parameters,omitempty"`
	Description string               `yaml:"description" json:"description,omitempty"`
}

// Suggestions links a method to related and follow-up apps and methods.
type Suggestions struct {
	Apps    Links `yaml:"apps" json:"apps,omitempty"`
	Methods Links `yaml:"methods" json:"methods,omitempty"`
}

// Links lists related and next-step identifiers.
type Links struct {
	Related []string `yaml:"related" json:"related,omitempty"`
	Next    []string `yaml:"next" json:"next,omitempty"`
}

// Parameter is the display text of one input field.
type Parameter struct {
	UIName    string `yaml:"ui-name" json:"ui_name,omitempty"`
	ShortHint string `yaml:"short-hint" json:"short_hint,omitempty"`
	LongHint  string `yaml:"long-hint" json:"long_hint,omitempty"`
}

// Parse decodes a display document. Block scalars are trimmed.
func Parse(data []byte) (*Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing display spec: %w", err)
	}
	s.normalize()
	if s.Name == "" {
		return nil, fmt.Errorf("parsing display spec: missing name")
	}
	return &s, nil
}

// LoadFile reads a display document from disk.
func LoadFile(p string) (*Spec, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading display spec: %w", err)
	}
	return Parse(data)
}

// Lookup returns the built-in display document for method.
func Lookup(method string) (*Spec, error) {
	data, err := builtin.ReadFile(path.Join("methods", method+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("no display spec for method %q", method)
	}
	return Parse(data)
}

// Methods lists the methods with built-in display documents.
func Methods() []string {
	entries, err := builtin.ReadDir("methods")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".yaml"); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Label returns the UI name of field, or field itself.
func (s *Spec) Label(field string) string {
	if s != nil {
		if p, ok := s.Parameters[field]; ok && p.UIName != "" {
			return p.UIName
		}
	}
	return field
}

// Hint returns the short hint of field, or field itself.
func (s *Spec) Hint(field string) string {
	if s != nil {
		if p, ok := s.Parameters[field]; ok && p.ShortHint != "" {
			return p.ShortHint
		}
	}
	return field
}

func (s *Spec) normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.Tooltip = strings.TrimSpace(s.Tooltip)
	s.Icon = strings.TrimSpace(s.Icon)
	s.Description = strings.TrimSpace(s.Description)
	for name, p := range s.Parameters {
		s.Parameters[name] = Parameter{
			UIName:    strings.TrimSpace(p.UIName),
			ShortHint: strings.TrimSpace(p.ShortHint),
			LongHint:  strings.TrimSpace(p.LongHint),
		}
	}
}
