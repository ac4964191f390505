// FILE: crashwatch/src/internal/filter/filter.go
// Package filter screens device log lines before classification.
package filter

import (
	"fmt"
	"regexp"

	"crashwatch/src/internal/config"
	"crashwatch/src/internal/core"

	"github.com/lixenwraith/log"
)

// Screen is one compiled include or exclude filter. Patterns match
// case-insensitively, like classifier rules.
type Screen struct {
	Label    string
	exclude  bool
	all      bool
	patterns []*regexp.Regexp
}

func compile(index int, cfg config.FilterConfig) (*Screen, error) {
	kind := cfg.Type
	if kind == "" {
		kind = config.FilterTypeInclude
	}
	s := &Screen{
		Label:    fmt.Sprintf("%s[%d]", kind, index),
		exclude:  kind == config.FilterTypeExclude,
		all:      cfg.Logic == config.FilterLogicAnd,
		patterns: make([]*regexp.Regexp, 0, len(cfg.Patterns)),
	}
	for i, pattern := range cfg.Patterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("filter[%d] pattern[%d] '%s': %w", index, i, pattern, err)
		}
		s.patterns = append(s.patterns, re)
	}
	return s, nil
}

// Admits reports whether text survives the screen. A screen without
// patterns admits everything.
func (s *Screen) Admits(text string) bool {
	if len(s.patterns) == 0 {
		return true
	}
	return s.matches(text) != s.exclude
}

func (s *Screen) matches(text string) bool {
	for _, re := range s.patterns {
		if re.MatchString(text) != s.all {
			return !s.all
		}
	}
	return s.all
}

// Set applies screens in configuration order; the first one to reject a
// line names it. Stateless, so Reject may be called from any goroutine.
type Set struct {
	screens []*Screen
}

// NewSet compiles the configured filters
func NewSet(cfgs []config.FilterConfig, logger *log.Logger) (*Set, error) {
	set := &Set{screens: make([]*Screen, 0, len(cfgs))}
	for i, cfg := range cfgs {
		s, err := compile(i, cfg)
		if err != nil {
			return nil, err
		}
		set.screens = append(set.screens, s)
	}

	logger.Info("msg", "Line filters compiled",
		"component", "filter",
		"filters", set.Labels())
	return set, nil
}

// Reject returns the label of the first screen that rejects line
func (s *Set) Reject(line core.LogLine) (string, bool) {
	for _, screen := range s.screens {
		if !screen.Admits(line.Text) {
			return screen.Label, true
		}
	}
	return "", false
}

// Labels lists the screens in order
func (s *Set) Labels() []string {
	labels := make([]string, len(s.screens))
	for i, screen := range s.screens {
		labels[i] = screen.Label
	}
	return labels
}
