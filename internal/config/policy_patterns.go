package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PolicyPatternsFile is the on-disk shape of operator-supplied redaction
// patterns:
//
//	patterns:
//	  - '\b\d{3}-\d{2}-\d{4}\b'
//	  - '(?i)api[_-]?key\s*[:=]\s*\S+'
type policyPatternsFile struct {
	Patterns []string `yaml:"patterns"`
}

// LoadPolicyPatterns reads extra redaction patterns from a YAML file. An
// empty path means no extra patterns; a missing or malformed file is an
// error, silently dropping policy rules is not acceptable.
func LoadPolicyPatterns(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy patterns file: %w", err)
	}

	var parsed policyPatternsFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse policy patterns file: %w", err)
	}
	return parsed.Patterns, nil
}
