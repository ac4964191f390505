// FILE: crashwatch/src/internal/supervisor/supervisor.go
package supervisor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"crashwatch/src/internal/core"
	"crashwatch/src/internal/device"

	"github.com/lixenwraith/log"
)

// Prober issues a single liveness probe
type Prober interface {
	Probe(path string, timeout time.Duration) device.Result
}

// Options configures the probe cadence and crash thresholds
type Options struct {
	Path     string
	Interval time.Duration
	Timeout  time.Duration
	Policy   Policy
}

// Supervisor polls the liveness probe on a fixed cadence, independent of
// workload activity, and owns the liveness Gate.
type Supervisor struct {
	opts   Options
	prober Prober
	clock  core.Clock
	logger *log.Logger
	gate   *Gate

	observer func(core.LivenessSample)

	mu      sync.Mutex
	tracker *Tracker
	samples core.Journal[core.LivenessSample]

	subMu       sync.RWMutex
	subscribers []chan Transition
	closed      bool

	// Statistics
	totalProbes  atomic.Uint64
	failedProbes atomic.Uint64
	startTime    time.Time
}

// New creates a supervisor
func New(opts Options, prober Prober, clock core.Clock, logger *log.Logger) *Supervisor {
	if opts.Path == "" {
		opts.Path = "/health"
	}
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Timeout <= 0 || opts.Timeout > opts.Interval {
		opts.Timeout = opts.Interval
	}
	return &Supervisor{
		opts:      opts,
		prober:    prober,
		clock:     clock,
		logger:    logger,
		gate:      NewGate(),
		tracker:   NewTracker(opts.Policy),
		startTime: time.Now(),
	}
}

// Gate returns the liveness gate read by workload drivers
func (s *Supervisor) Gate() *Gate {
	return s.gate
}

// OnSample registers a callback invoked for every recorded probe sample.
// Must be set before Initial.
func (s *Supervisor) OnSample(fn func(core.LivenessSample)) {
	s.observer = fn
}

// Subscribe returns a channel receiving every UP/DOWN transition.
// It is closed when Run returns.
func (s *Supervisor) Subscribe(size int) <-chan Transition {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	ch := make(chan Transition, size)
	if s.closed {
		close(ch)
		return ch
	}
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// Initial performs the first probe. The run must not start unless it succeeds.
func (s *Supervisor) Initial() error {
	res := s.probe()

	s.mu.Lock()
	sample, err := s.tracker.Start(res.IssuedAt, res.OK())
	s.mu.Unlock()
	s.record(sample, res)

	if err != nil {
		s.logger.Error("msg", "Initial liveness probe failed",
			"component", "supervisor",
			"path", s.opts.Path,
			"result", res.Kind,
			"error", res.Err)
		return err
	}

	s.logger.Info("msg", "Device is up",
		"component", "supervisor",
		"path", s.opts.Path,
		"latency", res.Duration)
	return nil
}

// Run probes until ctx is cancelled or a DOWN period exceeds the recovery
// bound, in which case it returns ErrRecoveryExceeded. The cadence is the
// same whether the device is UP or DOWN.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.closeSubscribers()

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		res := s.probe()

		s.mu.Lock()
		sample, transition, err := s.tracker.Observe(res.IssuedAt, res.OK())
		s.mu.Unlock()
		s.record(sample, res)

		if err != nil {
			crash, _ := s.OpenCrash()
			s.logger.Error("msg", "Device did not recover, giving up",
				"component", "supervisor",
				"crash_id", crash.ID,
				"down_for", res.IssuedAt-crash.DeclaredAt,
				"max_wait", s.opts.Policy.MaxRecoveryWait)
			s.gate.fail(err)
			return err
		}
		if transition != nil {
			s.apply(*transition)
		}
	}
}

func (s *Supervisor) probe() device.Result {
	s.totalProbes.Add(1)
	res := s.prober.Probe(s.opts.Path, s.opts.Timeout)
	if !res.OK() {
		s.failedProbes.Add(1)
	}
	return res
}

func (s *Supervisor) record(sample core.LivenessSample, res device.Result) {
	sample.Kind = res.Kind
	sample.Latency = res.Duration
	sample.Stats = res.Stats
	s.samples.Append(sample)
	if s.observer != nil {
		s.observer(sample)
	}

	if !sample.OK {
		s.logger.Debug("msg", "Liveness probe failed",
			"component", "supervisor",
			"result", res.Kind,
			"consecutive_failures", sample.ConsecutiveFailures,
			"error", res.Err)
	}
}

func (s *Supervisor) apply(t Transition) {
	s.gate.set(t.To)

	if t.To == core.StateDown {
		s.logger.Warn("msg", "Crash declared, device is down",
			"component", "supervisor",
			"crash_id", t.Crash.ID,
			"trigger", t.Crash.Trigger,
			"failures", t.Crash.Failures,
			"last_good_at", t.Crash.LastGoodAt)
	} else {
		s.logger.Info("msg", "Device recovered",
			"component", "supervisor",
			"crash_id", t.Crash.ID,
			"recovery_latency", t.Crash.RecoveryLatency)
	}

	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- t:
		default:
		}
	}
}

func (s *Supervisor) closeSubscribers() {
	s.gate.close()
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.closed = true
	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil
}

// State returns the current liveness state
func (s *Supervisor) State() core.LivenessState {
	return s.gate.State()
}

// OpenCrash returns the crash currently open, if any
func (s *Supervisor) OpenCrash() (core.CrashEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.OpenCrash()
}

// Crashes returns every crash declared so far
func (s *Supervisor) Crashes() []core.CrashEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Crashes()
}

// Samples returns every liveness sample in probe order
func (s *Supervisor) Samples() []core.LivenessSample {
	return s.samples.Snapshot()
}

// GetStats returns supervisor statistics
func (s *Supervisor) GetStats() map[string]any {
	return map[string]any{
		"path":          s.opts.Path,
		"interval":      s.opts.Interval.String(),
		"state":         s.State(),
		"total_probes":  s.totalProbes.Load(),
		"failed_probes": s.failedProbes.Load(),
		"crashes":       len(s.Crashes()),
		"uptime":        time.Since(s.startTime).Truncate(time.Second).String(),
	}
}
