// FILE: crashwatch/src/internal/config/config.go
package config

import "time"

// Config is the complete run configuration
type Config struct {
	Device      DeviceConfig      `toml:"device"`
	LogStream   LogStreamConfig   `toml:"log_stream"`
	Classifier  ClassifierConfig  `toml:"classifier"`
	Probe       ProbeConfig       `toml:"probe"`
	Workload    WorkloadConfig    `toml:"workload"`
	Correlation CorrelationConfig `toml:"correlation"`
	Report      ReportConfig      `toml:"report"`
	Metrics     MetricsConfig     `toml:"metrics"`
	Logging     *LogConfig        `toml:"logging"`
}

// DeviceConfig addresses the device under test
type DeviceConfig struct {
	Host     string `toml:"host"`
	HTTPPort int64  `toml:"http_port"`
	// Workload connection pool size, widened to the profile's fan-out.
	// Liveness probes use a separate pool.
	MaxConns int64 `toml:"max_conns"`
}

// LogStreamConfig describes the device's line-oriented log transport
type LogStreamConfig struct {
	Enabled       bool            `toml:"enabled"`
	Port          int64           `toml:"port"`
	DialTimeoutMS int64           `toml:"dial_timeout_ms"`
	QueueSize     int64           `toml:"queue_size"`
	Overflow      string          `toml:"overflow"` // "drop_oldest" or "block"
	Reconnect     ReconnectConfig `toml:"reconnect"`
	Capture       CaptureConfig   `toml:"capture"`
}

type ReconnectConfig struct {
	Enabled     bool  `toml:"enabled"`
	MaxAttempts int64 `toml:"max_attempts"`
	BackoffMS   int64 `toml:"backoff_ms"`
}

// CaptureConfig controls the raw log archive
type CaptureConfig struct {
	Enabled        bool   `toml:"enabled"`
	Directory      string `toml:"directory"`
	Name           string `toml:"name"`
	MaxSizeMB      int64  `toml:"max_size_mb"`
	MaxTotalSizeMB int64  `toml:"max_total_size_mb"`
}

type ClassifierConfig struct {
	// Size of the rolling context ring, half before and half after a match
	ContextLines    int64          `toml:"context_lines"`
	ReplaceDefaults bool           `toml:"replace_defaults"`
	Rules           []RuleConfig   `toml:"rules"`
	Filters         []FilterConfig `toml:"filters"`
}

// RuleConfig is a user-supplied classification rule, checked before the defaults
type RuleConfig struct {
	Pattern     string `toml:"pattern"`
	Category    string `toml:"category"`
	Severity    string `toml:"severity"`
	Description string `toml:"description"`
}

// ProbeConfig tunes the liveness supervisor
type ProbeConfig struct {
	Path              string `toml:"path"`
	IntervalMS        int64  `toml:"interval_ms"`
	TimeoutMS         int64  `toml:"timeout_ms"`
	FailureThreshold  int64  `toml:"failure_threshold"`
	SilenceTimeoutMS  int64  `toml:"silence_timeout_ms"`
	MaxRecoveryWaitMS int64  `toml:"max_recovery_wait_ms"`
}

// WorkloadConfig selects a load profile and its parameters.
// Only the fields of the selected profile are used.
type WorkloadConfig struct {
	Profile          string   `toml:"profile"`
	Endpoints        []string `toml:"endpoints"`
	Method           string   `toml:"method"`
	RequestTimeoutMS int64    `toml:"request_timeout_ms"`
	OnCrash          string   `toml:"on_crash"` // "abort" or "pause"

	// ENDURANCE
	Rate       float64 `toml:"rate"`
	DurationMS int64   `toml:"duration_ms"`
	Workers    int64   `toml:"workers"`

	// CONCURRENT_BURST
	Concurrency  int64 `toml:"concurrency"`
	Bursts       int64 `toml:"bursts"`
	BurstPauseMS int64 `toml:"burst_pause_ms"`

	// RATE_ESCALATION
	StartRate    float64 `toml:"start_rate"`
	Multiplier   float64 `toml:"multiplier"`
	SafetyCap    float64 `toml:"safety_cap"`
	StepWindowMS int64   `toml:"step_window_ms"`
	MaxSteps     int64   `toml:"max_steps"`

	// PAYLOAD_SWEEP
	PayloadPath  string  `toml:"payload_path"`
	PayloadSizes []int64 `toml:"payload_sizes"`
	SettleMS     int64   `toml:"settle_ms"`
}

type CorrelationConfig struct {
	WindowMS          int64 `toml:"window_ms"`
	MaxCandidates     int64 `toml:"max_candidates"`
	InterimIntervalMS int64 `toml:"interim_interval_ms"` // 0 disables interim summaries
}

type ReportConfig struct {
	Format string `toml:"format"` // json, yaml, cbor, text
	Output string `toml:"output"` // file path, "-" for stdout
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// Millis converts a millisecond config value
func Millis(v int64) time.Duration {
	return time.Duration(v) * time.Millisecond
}
