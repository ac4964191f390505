// FILE: crashwatch/src/internal/config/validation.go
package config

import (
	"fmt"
	"net"
	"strings"

	"crashwatch/src/internal/core"

	lconfig "github.com/lixenwraith/config"
)

// Overflow policies of the log line queue
const (
	OverflowDropOldest = "drop_oldest"
	OverflowBlock      = "block"
)

const maxConcurrency = 1024

// Crash policies of the workload driver
const (
	OnCrashAbort = "abort"
	OnCrashPause = "pause"
)

// Validate checks the whole configuration
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if cfg.Logging == nil {
		cfg.Logging = DefaultLogConfig()
	}
	if err := validateLogConfig(cfg.Logging); err != nil {
		return err
	}

	checks := []func(*Config) error{
		validateDevice,
		validateLogStream,
		func(c *Config) error { return validateClassifier(&c.Classifier) },
		validateProbe,
		validateWorkload,
		validateCorrelation,
		validateReport,
		validateMetrics,
	}
	for _, check := range checks {
		if err := check(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateDevice(cfg *Config) error {
	if err := lconfig.NonEmpty(cfg.Device.Host); err != nil {
		return fmt.Errorf("device: missing host")
	}
	if strings.Contains(cfg.Device.Host, "/") {
		return fmt.Errorf("device: host must be a hostname or IP, got '%s'", cfg.Device.Host)
	}
	if err := lconfig.Port(cfg.Device.HTTPPort); err != nil {
		return fmt.Errorf("device: invalid http_port: %w", err)
	}
	if cfg.Device.MaxConns < 1 {
		return fmt.Errorf("device: max_conns must be positive")
	}
	return nil
}

func validateLogStream(cfg *Config) error {
	ls := &cfg.LogStream
	if !ls.Enabled {
		return nil
	}
	if err := lconfig.Port(ls.Port); err != nil {
		return fmt.Errorf("log_stream: invalid port: %w", err)
	}
	if ls.DialTimeoutMS <= 0 {
		return fmt.Errorf("log_stream: dial_timeout_ms must be positive")
	}
	if ls.QueueSize < 1 {
		return fmt.Errorf("log_stream: queue_size must be positive")
	}
	switch ls.Overflow {
	case OverflowDropOldest, OverflowBlock:
	default:
		return fmt.Errorf("log_stream: invalid overflow policy '%s' (must be '%s' or '%s')",
			ls.Overflow, OverflowDropOldest, OverflowBlock)
	}
	if ls.Reconnect.Enabled {
		if ls.Reconnect.MaxAttempts < 1 {
			return fmt.Errorf("log_stream.reconnect: max_attempts must be positive")
		}
		if ls.Reconnect.BackoffMS < 0 {
			return fmt.Errorf("log_stream.reconnect: backoff_ms cannot be negative")
		}
	}
	if ls.Capture.Enabled {
		if err := lconfig.NonEmpty(ls.Capture.Directory); err != nil {
			return fmt.Errorf("log_stream.capture: missing directory")
		}
		if err := lconfig.NonEmpty(ls.Capture.Name); err != nil {
			return fmt.Errorf("log_stream.capture: missing name")
		}
		if ls.Capture.MaxSizeMB < 1 {
			return fmt.Errorf("log_stream.capture: max_size_mb must be positive")
		}
	}
	return nil
}

func validateProbe(cfg *Config) error {
	p := &cfg.Probe
	if !strings.HasPrefix(p.Path, "/") {
		return fmt.Errorf("probe: path must start with '/': %s", p.Path)
	}
	if p.IntervalMS <= 0 || p.TimeoutMS <= 0 {
		return fmt.Errorf("probe: interval_ms and timeout_ms must be positive")
	}
	if p.TimeoutMS > p.IntervalMS {
		return fmt.Errorf("probe: timeout_ms (%d) cannot exceed interval_ms (%d)", p.TimeoutMS, p.IntervalMS)
	}
	if p.FailureThreshold < 1 {
		return fmt.Errorf("probe: failure_threshold must be at least 1")
	}
	if p.SilenceTimeoutMS < p.IntervalMS {
		return fmt.Errorf("probe: silence_timeout_ms must be at least interval_ms")
	}
	if p.MaxRecoveryWaitMS < p.IntervalMS {
		return fmt.Errorf("probe: max_recovery_wait_ms must be at least interval_ms")
	}
	return nil
}

func validateWorkload(cfg *Config) error {
	w := &cfg.Workload
	kind, err := core.ParseProfileKind(w.Profile)
	if err != nil {
		return fmt.Errorf("workload: %w", err)
	}

	if kind != core.ProfilePayloadSweep {
		if len(w.Endpoints) == 0 {
			return fmt.Errorf("workload: no endpoints configured")
		}
		for i, ep := range w.Endpoints {
			if !strings.HasPrefix(ep, "/") {
				return fmt.Errorf("workload endpoint[%d]: must start with '/': %s", i, ep)
			}
		}
	}
	switch strings.ToUpper(w.Method) {
	case "GET", "HEAD", "POST", "PUT":
	default:
		return fmt.Errorf("workload: unsupported method '%s'", w.Method)
	}
	if w.RequestTimeoutMS <= 0 {
		return fmt.Errorf("workload: request_timeout_ms must be positive")
	}
	switch w.OnCrash {
	case OnCrashAbort, OnCrashPause:
	default:
		return fmt.Errorf("workload: invalid on_crash '%s' (must be '%s' or '%s')", w.OnCrash, OnCrashAbort, OnCrashPause)
	}

	switch kind {
	case core.ProfileEndurance:
		if w.Rate <= 0 {
			return fmt.Errorf("workload: endurance rate must be positive")
		}
		if w.DurationMS <= 0 {
			return fmt.Errorf("workload: endurance duration_ms must be positive")
		}
		if w.Workers < 1 {
			return fmt.Errorf("workload: workers must be at least 1")
		}
	case core.ProfileConcurrentBurst:
		if w.Concurrency < 1 || w.Concurrency > maxConcurrency {
			return fmt.Errorf("workload: concurrency must be between 1 and %d", maxConcurrency)
		}
		if w.Bursts < 1 {
			return fmt.Errorf("workload: bursts must be at least 1")
		}
		if w.BurstPauseMS < 0 {
			return fmt.Errorf("workload: burst_pause_ms cannot be negative")
		}
	case core.ProfileRateEscalation:
		if w.StartRate <= 0 {
			return fmt.Errorf("workload: start_rate must be positive")
		}
		if w.Multiplier <= 1 {
			return fmt.Errorf("workload: multiplier must be greater than 1")
		}
		if w.SafetyCap < w.StartRate {
			return fmt.Errorf("workload: safety_cap (%g) is below start_rate (%g)", w.SafetyCap, w.StartRate)
		}
		if w.StepWindowMS <= 0 || w.MaxSteps < 1 {
			return fmt.Errorf("workload: step_window_ms and max_steps must be positive")
		}
	case core.ProfilePayloadSweep:
		if !strings.HasPrefix(w.PayloadPath, "/") {
			return fmt.Errorf("workload: payload_path must start with '/': %s", w.PayloadPath)
		}
		if len(w.PayloadSizes) == 0 {
			return fmt.Errorf("workload: payload_sizes is empty")
		}
		for i, size := range w.PayloadSizes {
			if size < 0 {
				return fmt.Errorf("workload payload_sizes[%d]: negative size %d", i, size)
			}
		}
		if w.SettleMS < 0 {
			return fmt.Errorf("workload: settle_ms cannot be negative")
		}
	}
	return nil
}

func validateCorrelation(cfg *Config) error {
	c := &cfg.Correlation
	if c.WindowMS <= 0 {
		return fmt.Errorf("correlation: window_ms must be positive")
	}
	if c.MaxCandidates < 1 {
		return fmt.Errorf("correlation: max_candidates must be at least 1")
	}
	if c.InterimIntervalMS < 0 {
		return fmt.Errorf("correlation: interim_interval_ms cannot be negative")
	}
	return nil
}

func validateReport(cfg *Config) error {
	switch cfg.Report.Format {
	case "json", "yaml", "cbor", "text":
	default:
		return fmt.Errorf("report: invalid format '%s'", cfg.Report.Format)
	}
	if err := lconfig.NonEmpty(cfg.Report.Output); err != nil {
		return fmt.Errorf("report: missing output (use '-' for stdout)")
	}
	return nil
}

func validateMetrics(cfg *Config) error {
	if !cfg.Metrics.Enabled {
		return nil
	}
	host, port, err := net.SplitHostPort(cfg.Metrics.Listen)
	if err != nil {
		return fmt.Errorf("metrics: invalid listen address '%s': %w", cfg.Metrics.Listen, err)
	}
	if host != "" {
		if err := lconfig.IPAddress(host); err != nil {
			return fmt.Errorf("metrics: listen host must be an IP address: %w", err)
		}
	}
	if port == "" {
		return fmt.Errorf("metrics: listen address missing port")
	}
	return nil
}
