// FILE: crashwatch/src/internal/sink/file.go
package sink

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"crashwatch/src/internal/core"

	"github.com/lixenwraith/log"
)

// CaptureConfig configures the raw device log archive
type CaptureConfig struct {
	Directory      string
	Name           string
	MaxSizeMB      int64
	MaxTotalSizeMB int64
}

// CaptureSink archives every device log line, stamped with its run offset,
// into rotating files
type CaptureSink struct {
	input     <-chan core.LogLine
	writer    *log.Logger // Internal logger instance for file writing
	done      chan struct{}
	finished  chan struct{}
	stopOnce  sync.Once
	startTime time.Time
	logger    *log.Logger // Application logger

	// Statistics
	totalProcessed atomic.Uint64
	lastProcessed  atomic.Value // time.Time
}

// NewCaptureSink creates a capture sink reading from input
func NewCaptureSink(cfg CaptureConfig, input <-chan core.LogLine, logger *log.Logger) (*CaptureSink, error) {
	if cfg.Directory == "" {
		cfg.Directory = "./"
		logger.Warn("msg", "No capture directory provided, current directory will be used",
			"component", "capture_sink")
	}
	if cfg.Name == "" {
		cfg.Name = "device"
	}

	// Create configuration for the internal log writer
	writerConfig := log.DefaultConfig()
	writerConfig.Directory = cfg.Directory
	writerConfig.Name = cfg.Name
	writerConfig.EnableConsole = false // File only
	writerConfig.ShowTimestamp = false // Lines carry their run offset
	writerConfig.ShowLevel = false

	if cfg.MaxSizeMB > 0 {
		writerConfig.MaxSizeKB = cfg.MaxSizeMB * 1000
	}
	if cfg.MaxTotalSizeMB >= 0 {
		writerConfig.MaxTotalSizeKB = cfg.MaxTotalSizeMB * 1000
	}

	writer := log.NewLogger()
	if err := writer.ApplyConfig(writerConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize capture writer: %w", err)
	}
	if err := writer.Start(); err != nil {
		return nil, fmt.Errorf("failed to start capture writer: %w", err)
	}

	cs := &CaptureSink{
		input:     input,
		writer:    writer,
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		startTime: time.Now(),
		logger:    logger,
	}
	cs.lastProcessed.Store(time.Time{})
	return cs, nil
}

func (cs *CaptureSink) Start(ctx context.Context) error {
	go cs.processLoop(ctx)
	cs.logger.Info("msg", "Capture sink started", "component", "capture_sink")
	return nil
}

// Stop drains the input queue, then flushes and closes the archive
func (cs *CaptureSink) Stop() {
	select {
	case <-cs.finished:
	case <-time.After(drainTimeout):
	}
	cs.stopOnce.Do(func() { close(cs.done) })
	<-cs.finished

	// Shutdown the writer with timeout
	if err := cs.writer.Shutdown(2 * time.Second); err != nil {
		cs.logger.Error("msg", "Error shutting down capture writer",
			"component", "capture_sink",
			"error", err)
	}

	cs.logger.Info("msg", "Capture sink stopped",
		"component", "capture_sink",
		"lines", cs.totalProcessed.Load())
}

func (cs *CaptureSink) GetStats() SinkStats {
	lastProc, _ := cs.lastProcessed.Load().(time.Time)

	return SinkStats{
		Type:           "capture",
		TotalProcessed: cs.totalProcessed.Load(),
		StartTime:      cs.startTime,
		LastProcessed:  lastProc,
		Details:        map[string]any{},
	}
}

func (cs *CaptureSink) processLoop(ctx context.Context) {
	defer close(cs.finished)

	for {
		select {
		case line, ok := <-cs.input:
			if !ok {
				return
			}

			cs.totalProcessed.Add(1)
			cs.lastProcessed.Store(time.Now())
			cs.writer.Message(FormatCaptureLine(line))

		case <-ctx.Done():
			return
		case <-cs.done:
			return
		}
	}
}

// FormatCaptureLine renders a line as it is archived: "[+12.345s] #seq text"
func FormatCaptureLine(line core.LogLine) string {
	return fmt.Sprintf("[%s] #%d %s", formatAt(line.At), line.Seq, line.Text)
}
