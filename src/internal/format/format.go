// FILE: crashwatch/src/internal/format/format.go
package format

import (
	"fmt"
	"sort"

	"crashwatch/src/internal/correlate"

	"github.com/lixenwraith/log"
)

// Encoder defines the interface for serializing a run report.
type Encoder interface {
	// Encode renders the report as bytes. It must not modify the report.
	Encode(r *correlate.Report) ([]byte, error)

	// Name returns the encoder type name
	Name() string
}

var encoders = map[string]func(logger *log.Logger) (Encoder, error){
	"json": func(logger *log.Logger) (Encoder, error) { return NewJSONEncoder(logger), nil },
	"yaml": func(logger *log.Logger) (Encoder, error) { return NewYAMLEncoder(logger), nil },
	"cbor": func(logger *log.Logger) (Encoder, error) { return NewCBOREncoder(logger) },
	"text": func(logger *log.Logger) (Encoder, error) { return NewTextEncoder(logger) },
}

// New creates an Encoder by name.
func New(name string, logger *log.Logger) (Encoder, error) {
	// Default to json if no format specified
	if name == "" {
		name = "json"
	}

	ctor, ok := encoders[name]
	if !ok {
		return nil, fmt.Errorf("unknown report format: %s", name)
	}
	return ctor(logger)
}

// Names lists the registered report formats
func Names() []string {
	names := make([]string, 0, len(encoders))
	for name := range encoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
