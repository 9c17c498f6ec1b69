// Package layout suggests report sections for gallery images and reorders
// the gallery in manual mode.
package layout

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/deliverable-studio/backend/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// SectionRule maps caption keywords to a section.
type SectionRule struct {
	Name     models.Section `yaml:"name" json:"name"`
	Keywords []string       `yaml:"keywords" json:"keywords"`
}

// Rules is the ordered keyword table used by Classify.
type Rules struct {
	Default  models.Section `yaml:"default" json:"default"`
	Sections []SectionRule  `yaml:"sections" json:"sections"`
}

var defaultRules = mustParse(defaultRulesYAML)

// DefaultRules returns the built-in rules.
func DefaultRules() *Rules {
	return defaultRules
}

// LoadRules reads rules from a YAML file.
func LoadRules(path string) (*Rules, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseRules(f)
}

// ParseRules parses rules from an io.Reader.
func ParseRules(r io.Reader) (*Rules, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse layout rules: %w", err)
	}
	if err := rules.validate(); err != nil {
		return nil, err
	}
	return &rules, nil
}

func (r *Rules) validate() error {
	if !knownSection(r.Default) {
		return fmt.Errorf("layout rules: unknown default section %q", r.Default)
	}
	for i, s := range r.Sections {
		if !knownSection(s.Name) {
			return fmt.Errorf("layout rules: unknown section %q at index %d", s.Name, i)
		}
		for j, k := range s.Keywords {
			r.Sections[i].Keywords[j] = strings.ToLower(strings.TrimSpace(k))
		}
	}
	return nil
}

func knownSection(s models.Section) bool {
	switch s {
	case models.SectionIntroduction, models.SectionMethodology, models.SectionResults:
		return true
	}
	return false
}

func mustParse(data []byte) *Rules {
	rules, err := ParseRules(strings.NewReader(string(data)))
	if err != nil {
		panic(err)
	}
	return rules
}
