// FILE: crashwatch/src/internal/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"crashwatch/src/internal/classify"
	"crashwatch/src/internal/config"
	"crashwatch/src/internal/core"
	"crashwatch/src/internal/correlate"
	"crashwatch/src/internal/device"
	"crashwatch/src/internal/filter"
	"crashwatch/src/internal/format"
	"crashwatch/src/internal/metrics"
	"crashwatch/src/internal/sink"
	"crashwatch/src/internal/source"
	"crashwatch/src/internal/supervisor"
	"crashwatch/src/internal/version"
	"crashwatch/src/internal/workload"

	"github.com/google/uuid"
	"github.com/lixenwraith/log"
	"github.com/prometheus/client_golang/prometheus"
)

// Options holds the presentation choices of the caller
type Options struct {
	// Console receives live incident blocks and transitions; nil means stdout
	Console io.Writer
	// Color is "auto", "always" or "never"
	Color string
	// Quiet disables the live console
	Quiet bool
}

// Session runs one diagnostic run against one device. A session is single-use.
type Session struct {
	cfg    *config.Config
	opts   Options
	logger *log.Logger

	clock      *core.RunClock
	runID      string
	client     *device.Client
	prober     *device.Client
	supervisor *supervisor.Supervisor
	driver     *workload.Driver
	classifier *classify.Classifier
	collector  *metrics.Collector

	mu     sync.Mutex
	stream *logStream
	ran    bool
}

// New builds every unit of a run from a validated configuration
func New(cfg *config.Config, opts Options, logger *log.Logger) (*Session, error) {
	s := &Session{
		cfg:    cfg,
		opts:   opts,
		logger: logger,
		clock:  core.NewClock(),
		runID:  uuid.NewString(),
	}

	// The workload pool covers the widest profile fan-out so bursts never
	// queue behind max_conns; probes get their own pool so a saturated
	// workload cannot make a live device look dead
	client, err := device.NewClient(device.Options{
		Host:     cfg.Device.Host,
		Port:     cfg.Device.HTTPPort,
		MaxConns: workloadConns(cfg),
		ConnWait: config.Millis(cfg.Workload.RequestTimeoutMS),
	}, s.clock, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create device client: %w", err)
	}
	s.client = client

	prober, err := device.NewClient(device.Options{
		Host:     cfg.Device.Host,
		Port:     cfg.Device.HTTPPort,
		MaxConns: probeConns,
		ConnWait: config.Millis(cfg.Probe.TimeoutMS),
	}, s.clock, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create probe client: %w", err)
	}
	s.prober = prober

	s.supervisor = supervisor.New(supervisor.Options{
		Path:     cfg.Probe.Path,
		Interval: config.Millis(cfg.Probe.IntervalMS),
		Timeout:  config.Millis(cfg.Probe.TimeoutMS),
		Policy: supervisor.Policy{
			FailureThreshold: int(cfg.Probe.FailureThreshold),
			SilenceTimeout:   config.Millis(cfg.Probe.SilenceTimeoutMS),
			MaxRecoveryWait:  config.Millis(cfg.Probe.MaxRecoveryWaitMS),
		},
	}, prober, s.clock, logger)

	profile, err := workload.FromConfig(cfg.Workload)
	if err != nil {
		return nil, err
	}
	driver, err := workload.NewDriver(profile, client, s.supervisor.Gate(), s.clock, logger)
	if err != nil {
		return nil, err
	}
	s.driver = driver

	rules, err := classify.FromConfig(cfg.Classifier)
	if err != nil {
		return nil, fmt.Errorf("invalid classifier rules: %w", err)
	}
	s.classifier = classify.New(rules, int(cfg.Classifier.ContextLines), logger)
	if len(cfg.Classifier.Filters) > 0 {
		screens, err := filter.NewSet(cfg.Classifier.Filters, logger)
		if err != nil {
			return nil, fmt.Errorf("invalid classifier filters: %w", err)
		}
		s.classifier.SetFilter(screens)
	}

	s.collector = metrics.New(prometheus.Labels{
		"run_id": s.runID,
		"device": cfg.Device.Host,
	}, s.logStats)
	s.supervisor.OnSample(s.collector.ObserveProbe)
	s.driver.OnOutcome(s.collector.ObserveOutcome)

	return s, nil
}

// RunID returns the identifier stamped into the report
func (s *Session) RunID() string {
	return s.runID
}

// Collector exposes the live run metrics
func (s *Session) Collector() *metrics.Collector {
	return s.collector
}

// Run executes the run to completion and returns its report. The error is
// the run-level outcome: supervisor.ErrUnreachable, supervisor.ErrRecoveryExceeded
// or the context error on cancellation. A report is returned in every case.
func (s *Session) Run(ctx context.Context) (*correlate.Report, error) {
	s.mu.Lock()
	if s.ran {
		s.mu.Unlock()
		return nil, fmt.Errorf("session %s already ran", s.runID)
	}
	s.ran = true
	s.mu.Unlock()

	s.logger.Info("msg", "Run starting",
		"component", "session",
		"run_id", s.runID,
		"device", s.client.BaseURL(),
		"profile", s.driver.Profile().Kind)

	if s.cfg.Metrics.Enabled {
		server := metrics.NewServer(s.cfg.Metrics.Listen, s.collector, s.status, s.logger)
		if err := server.Start(); err != nil {
			s.logger.Error("msg", "Metrics server failed to start, continuing without it",
				"component", "session",
				"listen", s.cfg.Metrics.Listen,
				"error", err)
		} else {
			defer server.Stop()
		}
	}

	if err := s.supervisor.Initial(); err != nil {
		s.classifier.Finish()
		return s.finish(nil, core.VerdictUnreachable,
			fmt.Sprintf("first probe of %s%s failed", s.client.BaseURL(), s.cfg.Probe.Path)), err
	}

	// Subscriptions must exist before the producers run
	var consoleEvents <-chan classify.Event
	var consoleTransitions <-chan supervisor.Transition
	if !s.opts.Quiet {
		consoleEvents = s.classifier.Subscribe(256)
		consoleTransitions = s.supervisor.Subscribe(16)
	}
	metricEvents := s.classifier.Subscribe(1024)
	metricTransitions := s.supervisor.Subscribe(16)

	var observers sync.WaitGroup
	observers.Add(2)
	go func() {
		defer observers.Done()
		for ev := range metricEvents {
			s.collector.ObserveIncident(ev.Incident)
		}
	}()
	go func() {
		defer observers.Done()
		for tr := range metricTransitions {
			s.collector.ObserveTransition(tr.To, tr.Crash)
		}
	}()

	// Sinks and the classifier drain their inputs to the end; they are
	// stopped by closing those inputs, not by ctx
	pipelineCtx, stopPipeline := context.WithCancel(context.Background())
	defer stopPipeline()

	var sinks []sink.Sink
	if !s.opts.Quiet {
		out := s.opts.Console
		if out == nil {
			out = os.Stdout
		}
		sinks = append(sinks, sink.NewConsoleSink(sink.ConsoleConfig{Color: s.opts.Color},
			out, consoleEvents, consoleTransitions, s.logger))
	}

	streamCtx, stopStream := context.WithCancel(ctx)
	defer stopStream()
	classifierDone := make(chan struct{})
	if s.cfg.LogStream.Enabled {
		captureSink, err := s.startLogStream(streamCtx, pipelineCtx, classifierDone)
		if err != nil {
			s.logger.Error("msg", "Log capture unavailable, continuing without archive",
				"component", "session",
				"error", err)
		}
		if captureSink != nil {
			sinks = append(sinks, captureSink)
		}
	} else {
		s.classifier.Finish()
		close(classifierDone)
	}

	for _, sk := range sinks {
		if err := sk.Start(pipelineCtx); err != nil {
			s.logger.Error("msg", "Failed to start sink",
				"component", "session",
				"type", sk.GetStats().Type,
				"error", err)
		}
	}

	supCtx, stopSupervisor := context.WithCancel(ctx)
	defer stopSupervisor()
	driverCtx, stopDriver := context.WithCancel(ctx)
	defer stopDriver()

	supErr := make(chan error, 1)
	go func() {
		err := s.supervisor.Run(supCtx)
		if err != nil {
			stopDriver()
		}
		supErr <- err
	}()

	interimDone := make(chan struct{})
	var interim sync.WaitGroup
	if d := config.Millis(s.cfg.Correlation.InterimIntervalMS); d > 0 {
		interim.Add(1)
		go func() {
			defer interim.Done()
			s.interimLoop(d, interimDone)
		}()
	}

	result, driverErr := s.driver.Run(driverCtx)
	close(interimDone)
	interim.Wait()

	if ctx.Err() == nil && s.supervisor.State() == core.StateDown {
		s.awaitRecovery(ctx)
	}

	stopSupervisor()
	runErr := <-supErr

	stopStream()
	<-classifierDone
	for _, sk := range sinks {
		sk.Stop()
	}
	observers.Wait()

	var terminal core.Verdict
	var reason string
	switch {
	case ctx.Err() != nil:
		terminal, reason = core.VerdictAborted, "run cancelled"
		runErr = ctx.Err()
	case runErr != nil:
		terminal = core.VerdictPermanentFailure
		reason = runErr.Error()
		if crash, ok := s.supervisor.OpenCrash(); ok {
			reason = fmt.Sprintf("crash %d did not recover within %s", crash.ID,
				config.Millis(s.cfg.Probe.MaxRecoveryWaitMS))
		}
	case driverErr != nil && !errors.Is(driverErr, workload.ErrCrashDeclared):
		s.logger.Warn("msg", "Workload ended with error",
			"component", "session",
			"error", driverErr)
	}

	report := s.finish(result, terminal, reason)
	s.logger.Info("msg", "Run finished",
		"component", "session",
		"run_id", s.runID,
		"verdict", report.Verdict,
		"crashes", len(report.Crashes),
		"incidents", len(report.Incidents),
		"requests", report.Totals.Issued,
		"duration", report.Meta.Duration)
	return report, runErr
}

// startLogStream wires reader queues to the classifier and the capture archive.
// classifierDone is closed once the classifier has consumed its queue.
func (s *Session) startLogStream(streamCtx, pipelineCtx context.Context, classifierDone chan struct{}) (*sink.CaptureSink, error) {
	ls := s.cfg.LogStream
	policy := source.OverflowPolicy(ls.Overflow)

	classifyQueue := source.NewQueue(int(ls.QueueSize), policy)
	queues := []*source.Queue{classifyQueue}

	var captureSink *sink.CaptureSink
	var captureErr error
	if ls.Capture.Enabled {
		// The archive never blocks the reader
		captureQueue := source.NewQueue(int(ls.QueueSize), source.DropOldest)
		captureSink, captureErr = sink.NewCaptureSink(sink.CaptureConfig{
			Directory:      ls.Capture.Directory,
			Name:           ls.Capture.Name,
			MaxSizeMB:      ls.Capture.MaxSizeMB,
			MaxTotalSizeMB: ls.Capture.MaxTotalSizeMB,
		}, captureQueue.Lines(), s.logger)
		if captureErr == nil {
			queues = append(queues, captureQueue)
		}
	}

	stream := newLogStream(source.ReaderOptions{
		Address:     net.JoinHostPort(s.cfg.Device.Host, strconv.FormatInt(ls.Port, 10)),
		DialTimeout: config.Millis(ls.DialTimeoutMS),
	}, ls.Reconnect, source.NewStamper(s.clock), s.logger, queues...)

	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()

	go stream.Run(streamCtx)
	go func() {
		defer close(classifierDone)
		s.classifier.Run(pipelineCtx, classifyQueue.Lines())
	}()

	return captureSink, captureErr
}

// awaitRecovery holds the run open after the workload while the device is
// DOWN, until it recovers or the supervisor's own bound passes
func (s *Session) awaitRecovery(ctx context.Context) {
	bound := config.Millis(s.cfg.Probe.MaxRecoveryWaitMS) + 2*config.Millis(s.cfg.Probe.IntervalMS)
	s.logger.Info("msg", "Workload ended while device is down, waiting for recovery",
		"component", "session",
		"max_wait", bound)

	waitCtx, cancel := context.WithTimeout(ctx, bound)
	defer cancel()
	if err := s.supervisor.Gate().Wait(waitCtx); err != nil {
		s.logger.Warn("msg", "Device still down after workload",
			"component", "session",
			"error", err)
	}
}

// interimLoop logs a partial correlation of the streams so far on every tick
func (s *Session) interimLoop(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		in := s.input(nil, "", "")
		in.Meta.Interim = true
		report := correlate.Correlate(in)

		s.logger.Info("msg", "Interim summary",
			"component", "session",
			"elapsed", s.clock.Now().Truncate(time.Millisecond),
			"state", s.supervisor.State(),
			"requests", report.Totals.Issued,
			"success_rate", report.Totals.SuccessRate,
			"p95", report.Latency.P95,
			"incidents", len(report.Incidents),
			"crashes", len(report.Crashes))
	}
}

// input snapshots every journal of the run
func (s *Session) input(result *workload.Result, terminal core.Verdict, reason string) correlate.Input {
	outcomes := s.driver.Outcomes()
	if result != nil {
		outcomes = result.Outcomes
	}

	lines, dropped := s.logStats()
	filtered := s.classifier.Summary()
	summary := correlate.LogStreamSummary{
		Enabled:    s.cfg.LogStream.Enabled,
		Lines:      lines,
		Dropped:    dropped,
		Filtered:   filtered.Filtered,
		FilteredBy: filtered.FilteredBy,
	}
	s.mu.Lock()
	if s.stream != nil {
		summary.Disconnects = s.stream.Disconnects()
	}
	s.mu.Unlock()

	return correlate.Input{
		Meta: correlate.Meta{
			RunID:   s.runID,
			Started: s.clock.Epoch().UTC().Format(time.RFC3339),
			Device:  s.client.BaseURL(),
			Profile: string(s.driver.Profile().Kind),
			Version: version.Short(),
		},
		Window:         config.Millis(s.cfg.Correlation.WindowMS),
		MaxCandidates:  int(s.cfg.Correlation.MaxCandidates),
		Incidents:      s.classifier.Incidents(),
		Outcomes:       outcomes,
		Samples:        s.supervisor.Samples(),
		Crashes:        s.supervisor.Crashes(),
		Workload:       result,
		LogStream:      summary,
		Terminal:       terminal,
		TerminalReason: reason,
	}
}

func (s *Session) finish(result *workload.Result, terminal core.Verdict, reason string) *correlate.Report {
	in := s.input(result, terminal, reason)
	in.Meta.Duration = s.clock.Now()
	report := correlate.Correlate(in)

	fp, err := format.Fingerprint(report)
	if err != nil {
		s.logger.Warn("msg", "Failed to fingerprint report",
			"component", "session",
			"error", err)
	}
	report.Meta.Fingerprint = fp
	return report
}

func (s *Session) logStats() (lines, dropped uint64) {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		return 0, 0
	}
	return stream.Lines(), stream.Dropped()
}

// status backs the /status endpoint of the metrics server
func (s *Session) status() map[string]any {
	st := map[string]any{
		"run_id":     s.runID,
		"profile":    s.driver.Profile().Kind,
		"elapsed":    s.clock.Now().Truncate(time.Millisecond).String(),
		"supervisor": s.supervisor.GetStats(),
		"device":     s.client.GetStats(),
		"probes":     s.prober.GetStats(),
		"classifier": s.classifier.GetStats(),
	}
	s.mu.Lock()
	if s.stream != nil {
		st["log_stream"] = s.stream.GetStats()
	}
	s.mu.Unlock()
	return st
}

// Probes are sequential; the spare connection covers one that outlives its timeout
const probeConns = 2

func workloadConns(cfg *config.Config) int {
	n := max(cfg.Device.MaxConns, cfg.Workload.Workers)
	if kind, err := core.ParseProfileKind(cfg.Workload.Profile); err == nil && kind == core.ProfileConcurrentBurst {
		n = max(n, cfg.Workload.Concurrency)
	}
	return int(n)
}
