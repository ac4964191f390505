// FILE: crashwatch/src/internal/correlate/report.go
package correlate

import (
	"time"

	"crashwatch/src/internal/core"
	"crashwatch/src/internal/workload"
)

// Report is the final, serializable result of a run
type Report struct {
	Meta           Meta             `json:"meta" yaml:"meta" cbor:"meta"`
	Verdict        core.Verdict     `json:"verdict" yaml:"verdict" cbor:"verdict"`
	VerdictReason  string           `json:"verdict_reason,omitempty" yaml:"verdict_reason,omitempty" cbor:"verdict_reason,omitempty"`
	Totals         Totals           `json:"totals" yaml:"totals" cbor:"totals"`
	Latency        Latency          `json:"latency" yaml:"latency" cbor:"latency"`
	Endpoints      []EndpointStats  `json:"endpoints,omitempty" yaml:"endpoints,omitempty" cbor:"endpoints,omitempty"`
	Crashes        []CrashReport    `json:"crashes" yaml:"crashes" cbor:"crashes"`
	IncidentCounts []CategoryCount  `json:"incident_counts" yaml:"incident_counts" cbor:"incident_counts"`
	SeverityCounts []SeverityCount  `json:"severity_counts" yaml:"severity_counts" cbor:"severity_counts"`
	Incidents      []core.Incident  `json:"incidents" yaml:"incidents" cbor:"incidents"`
	Liveness       LivenessSummary  `json:"liveness" yaml:"liveness" cbor:"liveness"`
	Device         DeviceSummary    `json:"device" yaml:"device" cbor:"device"`
	LogStream      LogStreamSummary `json:"log_stream" yaml:"log_stream" cbor:"log_stream"`
	Workload       *workload.Result `json:"workload,omitempty" yaml:"workload,omitempty" cbor:"workload,omitempty"`
}

// Meta identifies the run
type Meta struct {
	RunID       string        `json:"run_id" yaml:"run_id" cbor:"run_id"`
	Started     string        `json:"started" yaml:"started" cbor:"started"`
	Duration    time.Duration `json:"duration_ns" yaml:"duration_ns" cbor:"duration_ns"`
	Device      string        `json:"device" yaml:"device" cbor:"device"`
	Profile     string        `json:"profile" yaml:"profile" cbor:"profile"`
	Window      time.Duration `json:"window_ns" yaml:"window_ns" cbor:"window_ns"`
	Version     string        `json:"version" yaml:"version" cbor:"version"`
	Interim     bool          `json:"interim,omitempty" yaml:"interim,omitempty" cbor:"interim,omitempty"`
	Fingerprint string        `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty" cbor:"fingerprint,omitempty"`
}

// Totals counts request outcomes by kind
type Totals struct {
	Issued           int     `json:"issued" yaml:"issued" cbor:"issued"`
	Succeeded        int     `json:"succeeded" yaml:"succeeded" cbor:"succeeded"`
	Failed           int     `json:"failed" yaml:"failed" cbor:"failed"`
	HTTPErrors       int     `json:"http_errors" yaml:"http_errors" cbor:"http_errors"`
	TimedOut         int     `json:"timed_out" yaml:"timed_out" cbor:"timed_out"`
	ConnectionErrors int     `json:"connection_errors" yaml:"connection_errors" cbor:"connection_errors"`
	SuccessRate      float64 `json:"success_rate" yaml:"success_rate" cbor:"success_rate"`
	// Requests per second over the workload span
	Throughput float64 `json:"throughput" yaml:"throughput" cbor:"throughput"`
}

// Latency percentiles over successful requests, nearest-rank
type Latency struct {
	Samples int           `json:"samples" yaml:"samples" cbor:"samples"`
	Min     time.Duration `json:"min_ns" yaml:"min_ns" cbor:"min_ns"`
	Mean    time.Duration `json:"mean_ns" yaml:"mean_ns" cbor:"mean_ns"`
	P50     time.Duration `json:"p50_ns" yaml:"p50_ns" cbor:"p50_ns"`
	P95     time.Duration `json:"p95_ns" yaml:"p95_ns" cbor:"p95_ns"`
	P99     time.Duration `json:"p99_ns" yaml:"p99_ns" cbor:"p99_ns"`
	Max     time.Duration `json:"max_ns" yaml:"max_ns" cbor:"max_ns"`
}

type EndpointStats struct {
	Endpoint  string        `json:"endpoint" yaml:"endpoint" cbor:"endpoint"`
	Issued    int           `json:"issued" yaml:"issued" cbor:"issued"`
	Succeeded int           `json:"succeeded" yaml:"succeeded" cbor:"succeeded"`
	P50       time.Duration `json:"p50_ns" yaml:"p50_ns" cbor:"p50_ns"`
	P95       time.Duration `json:"p95_ns" yaml:"p95_ns" cbor:"p95_ns"`
}

// CrashReport is a crash event with its ranked candidate causes
type CrashReport struct {
	core.CrashEvent `yaml:",inline"`
	Candidates      []Candidate `json:"candidates" yaml:"candidates" cbor:"candidates"`
	// Candidates that fell inside the window but past the cap
	Omitted int `json:"omitted,omitempty" yaml:"omitted,omitempty" cbor:"omitted,omitempty"`
}

// CandidateSource tells which stream a candidate came from
type CandidateSource string

const (
	SourceIncident CandidateSource = "incident"
	SourceRequest  CandidateSource = "request"
)

// Candidate is an event inside a crash's correlation window
type Candidate struct {
	Source   CandidateSource `json:"source" yaml:"source" cbor:"source"`
	Severity core.Severity   `json:"severity" yaml:"severity" cbor:"severity"`
	At       time.Duration   `json:"at_ns" yaml:"at_ns" cbor:"at_ns"`
	// At minus the crash's declared-at; negative means before the declaration
	Offset   time.Duration        `json:"offset_ns" yaml:"offset_ns" cbor:"offset_ns"`
	Summary  string               `json:"summary" yaml:"summary" cbor:"summary"`
	Incident *core.Incident       `json:"incident,omitempty" yaml:"incident,omitempty" cbor:"incident,omitempty"`
	Request  *core.RequestOutcome `json:"request,omitempty" yaml:"request,omitempty" cbor:"request,omitempty"`
}

type CategoryCount struct {
	Category core.Category `json:"category" yaml:"category" cbor:"category"`
	Severity core.Severity `json:"severity" yaml:"severity" cbor:"severity"`
	Count    int           `json:"count" yaml:"count" cbor:"count"`
	LastAt   time.Duration `json:"last_at_ns" yaml:"last_at_ns" cbor:"last_at_ns"`
}

type SeverityCount struct {
	Severity core.Severity `json:"severity" yaml:"severity" cbor:"severity"`
	Count    int           `json:"count" yaml:"count" cbor:"count"`
}

type LivenessSummary struct {
	Probes          int           `json:"probes" yaml:"probes" cbor:"probes"`
	Failures        int           `json:"failures" yaml:"failures" cbor:"failures"`
	Timeouts        int           `json:"timeouts" yaml:"timeouts" cbor:"timeouts"`
	Downtime        time.Duration `json:"downtime_ns" yaml:"downtime_ns" cbor:"downtime_ns"`
	MaxProbeLatency time.Duration `json:"max_probe_latency_ns" yaml:"max_probe_latency_ns" cbor:"max_probe_latency_ns"`
}

// DeviceSummary holds figures the device reported in JSON bodies, when it did
type DeviceSummary struct {
	Reports       int    `json:"reports" yaml:"reports" cbor:"reports"`
	FirstFreeHeap *int64 `json:"first_free_heap,omitempty" yaml:"first_free_heap,omitempty" cbor:"first_free_heap,omitempty"`
	MinFreeHeap   *int64 `json:"min_free_heap,omitempty" yaml:"min_free_heap,omitempty" cbor:"min_free_heap,omitempty"`
	LastFreeHeap  *int64 `json:"last_free_heap,omitempty" yaml:"last_free_heap,omitempty" cbor:"last_free_heap,omitempty"`
	MaxUptime     *int64 `json:"max_uptime_seconds,omitempty" yaml:"max_uptime_seconds,omitempty" cbor:"max_uptime_seconds,omitempty"`
	// Uptime went backwards between two reports: the device rebooted
	Reboots int `json:"reboots" yaml:"reboots" cbor:"reboots"`
}

type LogStreamSummary struct {
	Enabled     bool   `json:"enabled" yaml:"enabled" cbor:"enabled"`
	Lines       uint64 `json:"lines" yaml:"lines" cbor:"lines"`
	Dropped     uint64 `json:"dropped" yaml:"dropped" cbor:"dropped"`
	Disconnects int    `json:"disconnects" yaml:"disconnects" cbor:"disconnects"`
	// Lines kept out of classification by line filters
	Filtered   uint64            `json:"filtered,omitempty" yaml:"filtered,omitempty" cbor:"filtered,omitempty"`
	FilteredBy map[string]uint64 `json:"filtered_by,omitempty" yaml:"filtered_by,omitempty" cbor:"filtered_by,omitempty"`
}
