package safety

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Policy extends the builtin rules. It is loaded from YAML:
//
//	blocked_patterns:
//	  - pattern: 'curl .*\|\s*(ba)?sh'
//	    category: pipe_to_shell
//	    description: piping a download into a shell
//	protected_paths:
//	  - /srv
type Policy struct {
	BlockedPatterns []PolicyRule `yaml:"blocked_patterns"`
	ProtectedPaths  []string     `yaml:"protected_paths"`
}

// PolicyRule is one extra blocked pattern.
type PolicyRule struct {
	Pattern     string `yaml:"pattern"`
	Category    string `yaml:"category"`
	Description string `yaml:"description"`
}

// ParsePolicy decodes a YAML policy document.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	for i, rule := range p.BlockedPatterns {
		if rule.Pattern == "" {
			return nil, fmt.Errorf("policy rule %d: empty pattern", i)
		}
	}
	return &p, nil
}

// LoadPolicy reads a policy file. An empty path returns a nil policy.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}
	return ParsePolicy(data)
}
