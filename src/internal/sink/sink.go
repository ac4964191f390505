// FILE: crashwatch/src/internal/sink/sink.go
package sink

import (
	"context"
	"time"
)

// Sink represents a live output of a run
type Sink interface {
	// Start begins consuming the sink's inputs
	Start(ctx context.Context) error

	// Stop drains pending input and shuts the sink down
	Stop()

	// GetStats returns sink statistics
	GetStats() SinkStats
}

// SinkStats contains statistics about a sink
type SinkStats struct {
	Type           string
	TotalProcessed uint64
	StartTime      time.Time
	LastProcessed  time.Time
	Details        map[string]any
}

// drainTimeout bounds how long Stop waits for a sink to consume what is already queued
const drainTimeout = 2 * time.Second
