// FILE: crashwatch/src/internal/config/filter.go
package config

import (
	"fmt"
	"regexp"
)

// Filter types
const (
	FilterTypeInclude = "include"
	FilterTypeExclude = "exclude"
)

// Filter pattern logic
const (
	FilterLogicOr  = "or"
	FilterLogicAnd = "and"
)

// FilterConfig selects which device log lines reach the classifier.
// Patterns match case-insensitively. Filtered lines are still archived by
// the capture sink.
type FilterConfig struct {
	Type     string   `toml:"type"`  // "include" or "exclude"
	Logic    string   `toml:"logic"` // "or" or "and"
	Patterns []string `toml:"patterns"`
}

func validateFilter(index int, cfg *FilterConfig) error {
	switch cfg.Type {
	case "", FilterTypeInclude, FilterTypeExclude:
	default:
		return fmt.Errorf("classifier filter[%d]: invalid type '%s'", index, cfg.Type)
	}

	switch cfg.Logic {
	case "", FilterLogicOr, FilterLogicAnd:
	default:
		return fmt.Errorf("classifier filter[%d]: invalid logic '%s'", index, cfg.Logic)
	}

	if len(cfg.Patterns) == 0 {
		return fmt.Errorf("classifier filter[%d]: no patterns", index)
	}
	for i, pattern := range cfg.Patterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("classifier filter[%d] pattern[%d] '%s': %w", index, i, pattern, err)
		}
	}
	return nil
}
