// FILE: crashwatch/src/internal/config/rules.go
package config

import (
	"fmt"
	"regexp"

	"crashwatch/src/internal/core"

	lconfig "github.com/lixenwraith/config"
)

func validateClassifier(cfg *ClassifierConfig) error {
	if cfg.ContextLines < 2 || cfg.ContextLines > 1000 {
		return fmt.Errorf("classifier: context_lines must be between 2 and 1000, got %d", cfg.ContextLines)
	}
	if cfg.ReplaceDefaults && len(cfg.Rules) == 0 {
		return fmt.Errorf("classifier: replace_defaults set but no rules configured")
	}

	for i, rule := range cfg.Rules {
		if err := validateRule(i, &rule); err != nil {
			return err
		}
	}
	for i, filter := range cfg.Filters {
		if err := validateFilter(i, &filter); err != nil {
			return err
		}
	}
	return nil
}

func validateRule(index int, rule *RuleConfig) error {
	if err := lconfig.NonEmpty(rule.Pattern); err != nil {
		return fmt.Errorf("classifier rule[%d]: missing pattern", index)
	}
	if _, err := regexp.Compile(rule.Pattern); err != nil {
		return fmt.Errorf("classifier rule[%d] '%s': invalid regex: %w", index, rule.Pattern, err)
	}
	if _, err := core.ParseCategory(rule.Category); err != nil {
		return fmt.Errorf("classifier rule[%d]: %w", index, err)
	}
	if _, err := core.ParseSeverity(rule.Severity); err != nil {
		return fmt.Errorf("classifier rule[%d]: %w", index, err)
	}
	return nil
}
