// FILE: crashwatch/src/internal/core/entry.go
package core

import "time"

// LogLine is a single line extracted from the device log stream.
// At is stamped at extraction time, the device has no reliable clock.
type LogLine struct {
	Seq  uint64        `json:"seq" yaml:"seq" cbor:"seq"`
	At   time.Duration `json:"at_ns" yaml:"at_ns" cbor:"at_ns"`
	Text string        `json:"text" yaml:"text" cbor:"text"`
}

// Incident is a classified, severity-tagged event taken from the log stream
type Incident struct {
	Seq         uint64        `json:"seq" yaml:"seq" cbor:"seq"`
	At          time.Duration `json:"at_ns" yaml:"at_ns" cbor:"at_ns"`
	Category    Category      `json:"category" yaml:"category" cbor:"category"`
	Severity    Severity      `json:"severity" yaml:"severity" cbor:"severity"`
	Description string        `json:"description" yaml:"description" cbor:"description"`
	Line        LogLine       `json:"line" yaml:"line" cbor:"line"`
	Before      []LogLine     `json:"before,omitempty" yaml:"before,omitempty" cbor:"before,omitempty"`
	After       []LogLine     `json:"after,omitempty" yaml:"after,omitempty" cbor:"after,omitempty"`
}

// DeviceStats holds optional figures parsed from device JSON bodies.
// A nil field means the device did not report it.
type DeviceStats struct {
	FreeHeap      *int64 `json:"free_heap,omitempty" yaml:"free_heap,omitempty" cbor:"free_heap,omitempty"`
	UptimeSeconds *int64 `json:"uptime_seconds,omitempty" yaml:"uptime_seconds,omitempty" cbor:"uptime_seconds,omitempty"`
}

// Empty reports whether no figure was present
func (s *DeviceStats) Empty() bool {
	return s == nil || (s.FreeHeap == nil && s.UptimeSeconds == nil)
}

// RequestOutcome records one attempted request, failures included
type RequestOutcome struct {
	Seq         uint64        `json:"seq" yaml:"seq" cbor:"seq"`
	Worker      int           `json:"worker" yaml:"worker" cbor:"worker"`
	Endpoint    string        `json:"endpoint" yaml:"endpoint" cbor:"endpoint"`
	Method      string        `json:"method" yaml:"method" cbor:"method"`
	IssuedAt    time.Duration `json:"issued_at_ns" yaml:"issued_at_ns" cbor:"issued_at_ns"`
	Duration    time.Duration `json:"duration_ns" yaml:"duration_ns" cbor:"duration_ns"`
	Kind        OutcomeKind   `json:"result" yaml:"result" cbor:"result"`
	Status      int           `json:"status,omitempty" yaml:"status,omitempty" cbor:"status,omitempty"`
	Error       string        `json:"error,omitempty" yaml:"error,omitempty" cbor:"error,omitempty"`
	PayloadSize int           `json:"payload_size,omitempty" yaml:"payload_size,omitempty" cbor:"payload_size,omitempty"`
	Stats       *DeviceStats  `json:"stats,omitempty" yaml:"stats,omitempty" cbor:"stats,omitempty"`
}

// Succeeded reports whether the request completed with a 2xx status
func (o RequestOutcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}

// LivenessSample is one supervisor probe result
type LivenessSample struct {
	At                  time.Duration `json:"at_ns" yaml:"at_ns" cbor:"at_ns"`
	OK                  bool          `json:"ok" yaml:"ok" cbor:"ok"`
	Kind                OutcomeKind   `json:"result" yaml:"result" cbor:"result"`
	Latency             time.Duration `json:"latency_ns" yaml:"latency_ns" cbor:"latency_ns"`
	ConsecutiveFailures int           `json:"consecutive_failures" yaml:"consecutive_failures" cbor:"consecutive_failures"`
	Stats               *DeviceStats  `json:"stats,omitempty" yaml:"stats,omitempty" cbor:"stats,omitempty"`
}

// CrashEvent spans a DOWN period. It is closed at most once; a new DOWN
// period after recovery is a new CrashEvent.
type CrashEvent struct {
	ID              int           `json:"id" yaml:"id" cbor:"id"`
	DeclaredAt      time.Duration `json:"declared_at_ns" yaml:"declared_at_ns" cbor:"declared_at_ns"`
	Trigger         CrashTrigger  `json:"trigger" yaml:"trigger" cbor:"trigger"`
	LastGoodAt      time.Duration `json:"last_good_at_ns" yaml:"last_good_at_ns" cbor:"last_good_at_ns"`
	Failures        int           `json:"failures" yaml:"failures" cbor:"failures"`
	Recovered       bool          `json:"recovered" yaml:"recovered" cbor:"recovered"`
	RecoveredAt     time.Duration `json:"recovered_at_ns,omitempty" yaml:"recovered_at_ns,omitempty" cbor:"recovered_at_ns,omitempty"`
	RecoveryLatency time.Duration `json:"recovery_latency_ns,omitempty" yaml:"recovery_latency_ns,omitempty" cbor:"recovery_latency_ns,omitempty"`
}

// Open reports whether the crash window has not been closed yet
func (c CrashEvent) Open() bool {
	return !c.Recovered
}
