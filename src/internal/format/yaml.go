// FILE: crashwatch/src/internal/format/yaml.go
package format

import (
	"bytes"
	"fmt"

	"crashwatch/src/internal/correlate"

	"github.com/lixenwraith/log"
	"gopkg.in/yaml.v3"
)

// YAMLEncoder produces a YAML report. Durations render as Go duration strings.
type YAMLEncoder struct {
	logger *log.Logger
}

func NewYAMLEncoder(logger *log.Logger) *YAMLEncoder {
	return &YAMLEncoder{logger: logger}
}

func (e *YAMLEncoder) Encode(r *correlate.Report) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush YAML: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *YAMLEncoder) Name() string {
	return "yaml"
}
