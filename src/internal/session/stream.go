// FILE: crashwatch/src/internal/session/stream.go
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"crashwatch/src/internal/config"
	"crashwatch/src/internal/source"

	"github.com/lixenwraith/log"
)

// logStream owns the device log connection for a run. A Reader never
// reconnects on its own; logStream applies the configured reconnect policy:
// a bounded number of attempts with a fixed backoff, counted per outage.
type logStream struct {
	opts      source.ReaderOptions
	reconnect config.ReconnectConfig
	stamper   *source.Stamper
	queues    []*source.Queue
	logger    *log.Logger

	mu      sync.Mutex
	current *source.Reader
	// Counters of readers that already ended
	pastDropped uint64

	done        chan struct{}
	connected   atomic.Bool
	connects    atomic.Int64
	disconnects atomic.Int64
}

func newLogStream(opts source.ReaderOptions, reconnect config.ReconnectConfig, stamper *source.Stamper, logger *log.Logger, queues ...*source.Queue) *logStream {
	return &logStream{
		opts:      opts,
		reconnect: reconnect,
		stamper:   stamper,
		queues:    queues,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Run connects and reconnects until ctx ends or the policy gives up, then
// closes every queue so consumers drain and exit
func (s *logStream) Run(ctx context.Context) {
	defer close(s.done)
	defer func() {
		for _, q := range s.queues {
			q.Close()
		}
	}()

	attempts := 0
	for {
		if s.session(ctx) {
			attempts = 0
		}
		if ctx.Err() != nil {
			return
		}

		if !s.reconnect.Enabled || int64(attempts) >= s.reconnect.MaxAttempts {
			s.logger.Warn("msg", "Log stream ended, not reconnecting",
				"component", "log_stream",
				"address", s.opts.Address,
				"attempts", attempts)
			return
		}
		attempts++

		backoff := config.Millis(s.reconnect.BackoffMS)
		s.logger.Info("msg", "Reconnecting to log stream",
			"component", "log_stream",
			"address", s.opts.Address,
			"attempt", attempts,
			"max_attempts", s.reconnect.MaxAttempts,
			"backoff", backoff)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session runs one connection to its end. It reports whether the connection
// was established.
func (s *logStream) session(ctx context.Context) bool {
	r, err := source.NewReader(s.opts, s.stamper, s.logger, s.queues...)
	if err != nil {
		s.logger.Error("msg", "Failed to create log stream reader",
			"component", "log_stream",
			"error", err)
		return false
	}

	if err := r.Start(ctx); err != nil {
		s.logger.Warn("msg", "Log stream unavailable",
			"component", "log_stream",
			"address", s.opts.Address,
			"error", err)
		return false
	}

	s.mu.Lock()
	s.current = r
	s.mu.Unlock()
	s.connected.Store(true)
	s.connects.Add(1)

	select {
	case <-r.Done():
	case <-ctx.Done():
	}
	// Releases the event loop; the first recorded cause is kept
	r.Stop()
	s.connected.Store(false)

	s.mu.Lock()
	s.current = nil
	s.pastDropped += r.GetStats().DroppedLines
	s.mu.Unlock()

	if err := r.Err(); err != nil && !errors.Is(err, source.ErrClosed) {
		s.disconnects.Add(1)
		s.logger.Warn("msg", "Log stream disconnected",
			"component", "log_stream",
			"address", s.opts.Address,
			"at", r.EndedAt(),
			"error", err)
	}
	return true
}

// Done is closed after Run returned and the queues are closed
func (s *logStream) Done() <-chan struct{} {
	return s.done
}

// Lines returns the number of lines read across all connections
func (s *logStream) Lines() uint64 {
	return s.stamper.Last()
}

// Disconnects returns how many established connections were lost
func (s *logStream) Disconnects() int {
	return int(s.disconnects.Load())
}

// Dropped returns the number of line deliveries lost to full or closed queues
func (s *logStream) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := s.pastDropped
	if s.current != nil {
		dropped += s.current.GetStats().DroppedLines
	}
	return dropped
}

func (s *logStream) GetStats() map[string]any {
	return map[string]any{
		"address":     s.opts.Address,
		"connected":   s.connected.Load(),
		"connects":    s.connects.Load(),
		"disconnects": s.disconnects.Load(),
		"lines":       s.Lines(),
		"dropped":     s.Dropped(),
	}
}
