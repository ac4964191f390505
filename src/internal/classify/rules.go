// FILE: crashwatch/src/internal/classify/rules.go
package classify

import (
	"fmt"
	"regexp"

	"crashwatch/src/internal/config"
	"crashwatch/src/internal/core"
)

// RuleSpec is an uncompiled classification rule
type RuleSpec struct {
	Pattern     string
	Category    core.Category
	Severity    core.Severity
	Description string
}

// Rule is a compiled, case-insensitive classification rule
type Rule struct {
	RuleSpec
	re *regexp.Regexp
}

// Matches reports whether the rule fires on text
func (r *Rule) Matches(text string) bool {
	return r.re.MatchString(text)
}

// DefaultRules returns the built-in rule table. Order is significant:
// crash signatures come before the generic error and failure catch-alls.
func DefaultRules() []RuleSpec {
	return []RuleSpec{
		{`Guru Meditation Error|Core.*panicked|PANIC|panic at`, core.CategoryPanic, core.SeverityCritical, "System panic detected"},
		{`StoreProhibited|LoadProhibited|IllegalInstruction|InstrFetchProhibited`, core.CategoryCPUException, core.SeverityCritical, "CPU exception occurred"},
		{`abort\(\) was called|assert failed|assertion.*failed`, core.CategoryAssertion, core.SeverityCritical, "Assertion failure"},
		{`heap_caps_malloc.*failed|MALLOC_CAP.*failed|allocation failed`, core.CategoryMemoryAlloc, core.SeverityHigh, "Memory allocation failed"},
		{`stack overflow|Stack canary.*corrupted|stack smashing`, core.CategoryStackOverflow, core.SeverityCritical, "Stack overflow detected"},
		{`CORRUPT HEAP|heap corruption|bad heap`, core.CategoryHeapCorruption, core.SeverityCritical, "Heap corruption detected"},
		{`Task watchdog.*triggered|watchdog timeout|WDT timeout`, core.CategoryWatchdog, core.SeverityHigh, "Watchdog timeout"},
		{`Failed to create task|vTaskCreate.*failed`, core.CategoryTaskCreate, core.SeverityHigh, "Task creation failed"},
		{`WiFi: Failed|wifi.*disconnect|WIFI_REASON_|Connection lost`, core.CategoryWiFi, core.SeverityMedium, "WiFi connection issue"},
		{`httpd.*failed|HTTP server error|Failed to start.*server`, core.CategoryHTTPServer, core.SeverityHigh, "HTTP server error"},
		{`socket.*failed|bind.*failed|listen.*failed`, core.CategorySocket, core.SeverityMedium, "Socket operation failed"},
		{`Brownout detector|voltage.*low|power.*fail`, core.CategoryPower, core.SeverityHigh, "Power issue detected"},
		{`NVS.*error|nvs.*failed|partition.*error`, core.CategoryStorage, core.SeverityMedium, "Storage/NVS error"},
		{`E \(\d+\).*:`, core.CategoryLogError, core.SeverityMedium, "Device error log"},
		{`ERROR|Error:|error:`, core.CategoryAppError, core.SeverityLow, "Application error"},
		{`FAIL|Failed|failed`, core.CategoryGenericFailure, core.SeverityLow, "Operation failed"},
	}
}

// RuleSet is an ordered rule list; the first matching rule wins
type RuleSet struct {
	rules []*Rule
}

// NewRuleSet compiles specs in order
func NewRuleSet(specs []RuleSpec) (*RuleSet, error) {
	rs := &RuleSet{rules: make([]*Rule, 0, len(specs))}
	for i, spec := range specs {
		re, err := regexp.Compile("(?i)" + spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern[%d] '%s': %w", i, spec.Pattern, err)
		}
		if spec.Severity.Rank() > core.SeverityLow.Rank() {
			return nil, fmt.Errorf("rule[%d]: invalid severity '%s'", i, spec.Severity)
		}
		rs.rules = append(rs.rules, &Rule{RuleSpec: spec, re: re})
	}
	return rs, nil
}

// FromConfig builds the rule set: configured rules first, then the defaults
// unless replace_defaults is set
func FromConfig(cfg config.ClassifierConfig) (*RuleSet, error) {
	var specs []RuleSpec
	for i, rc := range cfg.Rules {
		category, err := core.ParseCategory(rc.Category)
		if err != nil {
			return nil, fmt.Errorf("rule[%d]: %w", i, err)
		}
		severity, err := core.ParseSeverity(rc.Severity)
		if err != nil {
			return nil, fmt.Errorf("rule[%d]: %w", i, err)
		}
		desc := rc.Description
		if desc == "" {
			desc = "Custom rule: " + string(category)
		}
		specs = append(specs, RuleSpec{Pattern: rc.Pattern, Category: category, Severity: severity, Description: desc})
	}
	if !cfg.ReplaceDefaults {
		specs = append(specs, DefaultRules()...)
	}
	return NewRuleSet(specs)
}

// Match returns the first rule that fires on text
func (rs *RuleSet) Match(text string) (*Rule, bool) {
	for _, r := range rs.rules {
		if r.re.MatchString(text) {
			return r, true
		}
	}
	return nil, false
}

// Rules returns the rules in priority order
func (rs *RuleSet) Rules() []*Rule {
	out := make([]*Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

func (rs *RuleSet) Len() int {
	return len(rs.rules)
}
