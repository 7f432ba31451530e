package eval

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadSuite reads and parses an eval suite file.
func LoadSuite(path string) (Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Suite{}, fmt.Errorf("read suite: %w", err)
	}
	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return Suite{}, fmt.Errorf("parse suite: %w", err)
	}
	if err := suite.Validate(); err != nil {
		return Suite{}, fmt.Errorf("suite %s: %w", path, err)
	}
	return suite, nil
}

// Validate checks that every case can actually be scored.
func (s Suite) Validate() error {
	if len(s.Cases) == 0 {
		return fmt.Errorf("no cases defined")
	}
	seen := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("case %d: missing id", i+1)
		}
		if seen[c.ID] {
			return fmt.Errorf("case %s: duplicate id", c.ID)
		}
		seen[c.ID] = true
		if strings.TrimSpace(c.Query) == "" {
			return fmt.Errorf("case %s: missing query", c.ID)
		}
		if len(c.Docs)+len(c.DocIDs) == 0 {
			return fmt.Errorf("case %s: no documents", c.ID)
		}
		for j, d := range c.Docs {
			if strings.TrimSpace(d.Content) == "" {
				return fmt.Errorf("case %s: doc %d has no content", c.ID, j+1)
			}
		}
	}
	return nil
}

// WriteFileIfMissing writes content to path if it doesn't exist (or force is true).
func WriteFileIfMissing(path string, content string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ParseModel splits a model string into provider and model name.
// Input: "openai:gpt-4o-mini" -> ("openai", "gpt-4o-mini")
// Input: "gpt-4o-mini" -> ("", "gpt-4o-mini")
func ParseModel(input string) (provider, model string) {
	if strings.Contains(input, ":") {
		parts := strings.SplitN(input, ":", 2)
		return parts[0], parts[1]
	}
	return "", input
}
