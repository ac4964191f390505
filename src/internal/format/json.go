// FILE: crashwatch/src/internal/format/json.go
package format

import (
	"encoding/json"
	"fmt"

	"crashwatch/src/internal/correlate"

	"github.com/lixenwraith/log"
)

// JSONEncoder produces an indented JSON report.
type JSONEncoder struct {
	logger *log.Logger
}

// NewJSONEncoder creates a new JSON encoder.
func NewJSONEncoder(logger *log.Logger) *JSONEncoder {
	return &JSONEncoder{logger: logger}
}

// Encode marshals the report with two-space indentation and a trailing newline.
func (e *JSONEncoder) Encode(r *correlate.Report) ([]byte, error) {
	result, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(result, '\n'), nil
}

// Name returns the encoder's type name.
func (e *JSONEncoder) Name() string {
	return "json"
}
