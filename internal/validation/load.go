package validation

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/starford/chainval/internal/apperr"
)

//go:embed default_rules.json
var defaultRules []byte

type ruleFile struct {
	Rules []Descriptor `yaml:"rules"`
}

// DefaultRules returns the built-in rule set.
func DefaultRules() ([]Descriptor, error) {
	return ParseRules(defaultRules)
}

// LoadRules reads a rule file. An empty path loads the built-in rule set.
func LoadRules(path string) ([]Descriptor, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("rules: %s: %w", path, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("rules: %s: %w", path, err)
	}
	return rules, nil
}

// ParseRules decodes rule descriptors from JSON or YAML. Both
// {"rules": [...]} and a bare list are accepted.
func ParseRules(data []byte) ([]Descriptor, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rules: %v: %w", err, apperr.ErrInvalidInput)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]

	if root.Kind == yaml.SequenceNode {
		var rules []Descriptor
		if err := root.Decode(&rules); err != nil {
			return nil, fmt.Errorf("decode rules: %v: %w", err, apperr.ErrInvalidInput)
		}
		return rules, nil
	}

	var f ruleFile
	if err := root.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode rules: %v: %w", err, apperr.ErrInvalidInput)
	}
	return f.Rules, nil
}
