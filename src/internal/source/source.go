// FILE: crashwatch/src/internal/source/source.go
package source

import (
	"errors"
	"time"
)

// ErrClosed marks a stream that was stopped locally rather than dropped by the device
var ErrClosed = errors.New("log stream closed")

// SourceStats holds log stream statistics
type SourceStats struct {
	Type         string
	TotalLines   uint64
	DroppedLines uint64
	StartTime    time.Time
	LastLineTime time.Time
	Details      map[string]any
}
