// FILE: crashwatch/src/internal/correlate/correlate_test.go
package correlate

import (
	"encoding/json"
	"testing"
	"time"

	"crashwatch/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func incident(seq uint64, at time.Duration, cat core.Category, sev core.Severity, text string) core.Incident {
	return core.Incident{
		Seq:      seq,
		At:       at,
		Category: cat,
		Severity: sev,
		Line:     core.LogLine{Seq: seq, At: at, Text: text},
	}
}

func outcome(seq uint64, at, dur time.Duration, kind core.OutcomeKind, status int) core.RequestOutcome {
	return core.RequestOutcome{
		Seq:      seq,
		Endpoint: "/api/metrics",
		Method:   "GET",
		IssuedAt: at,
		Duration: dur,
		Kind:     kind,
		Status:   status,
	}
}

func crashAt(declared time.Duration) core.CrashEvent {
	return core.CrashEvent{ID: 1, DeclaredAt: declared, Trigger: core.TriggerConsecutiveFailures, Failures: 3}
}

func TestCorrelate_RanksCriticalFirstAndExcludesOutsideWindow(t *testing.T) {
	t0 := 100 * time.Second
	in := Input{
		Window: 5 * time.Second,
		Incidents: []core.Incident{
			incident(1, t0-1*time.Second, core.CategoryWiFi, core.SeverityHigh, "wifi: disconnected"),
			incident(2, t0+2*time.Second, core.CategoryPanic, core.SeverityCritical, "Guru Meditation Error"),
			incident(3, t0+30*time.Second, core.CategoryPanic, core.SeverityCritical, "Guru Meditation Error"),
		},
		Outcomes: []core.RequestOutcome{
			outcome(1, t0-500*time.Millisecond, 5*time.Second, core.OutcomeTimeout, 0),
		},
		Crashes: []core.CrashEvent{crashAt(t0)},
	}

	r := Correlate(in)
	require.Len(t, r.Crashes, 1)
	cands := r.Crashes[0].Candidates
	require.Len(t, cands, 3)

	assert.Equal(t, SourceIncident, cands[0].Source)
	assert.Equal(t, core.SeverityCritical, cands[0].Severity)
	assert.Equal(t, 2*time.Second, cands[0].Offset)
	require.NotNil(t, cands[0].Incident)
	assert.Equal(t, uint64(2), cands[0].Incident.Seq)

	assert.Equal(t, core.SeverityHigh, cands[1].Severity)
	assert.Equal(t, SourceRequest, cands[2].Source)
	assert.Equal(t, core.SeverityMedium, cands[2].Severity)

	for _, c := range cands {
		assert.LessOrEqual(t, abs(c.Offset), 5*time.Second)
	}
	assert.Equal(t, core.VerdictPermanentFailure, r.Verdict)
}

func TestCorrelate_WindowBoundsInclusive(t *testing.T) {
	t0 := 20 * time.Second
	in := Input{
		Window: 5 * time.Second,
		Incidents: []core.Incident{
			incident(1, t0-5*time.Second, core.CategorySocket, core.SeverityMedium, "socket: lost"),
			incident(2, t0+5*time.Second, core.CategorySocket, core.SeverityMedium, "socket: lost"),
			incident(3, t0+5*time.Second+time.Nanosecond, core.CategorySocket, core.SeverityMedium, "socket: lost"),
		},
		Crashes: []core.CrashEvent{crashAt(t0)},
	}

	cands := Correlate(in).Crashes[0].Candidates
	require.Len(t, cands, 2)
	// Equal distance and severity fall back to sequence
	assert.Equal(t, uint64(1), cands[0].Incident.Seq)
	assert.Equal(t, uint64(2), cands[1].Incident.Seq)
}

func TestCorrelate_IncidentBeforeRequestOnTie(t *testing.T) {
	t0 := 10 * time.Second
	in := Input{
		Incidents: []core.Incident{incident(9, t0-time.Second, core.CategorySocket, core.SeverityMedium, "socket")},
		Outcomes:  []core.RequestOutcome{outcome(1, t0-time.Second, time.Second, core.OutcomeConnectionError, 0)},
		Crashes:   []core.CrashEvent{crashAt(t0)},
	}

	cands := Correlate(in).Crashes[0].Candidates
	require.Len(t, cands, 2)
	assert.Equal(t, SourceIncident, cands[0].Source)
	assert.Equal(t, SourceRequest, cands[1].Source)
}

func TestCorrelate_CapsCandidates(t *testing.T) {
	t0 := 10 * time.Second
	in := Input{MaxCandidates: 3, Crashes: []core.CrashEvent{crashAt(t0)}}
	for i := 0; i < 10; i++ {
		in.Outcomes = append(in.Outcomes, outcome(uint64(i), t0-time.Duration(i)*100*time.Millisecond, time.Second, core.OutcomeTimeout, 0))
	}

	cr := Correlate(in).Crashes[0]
	assert.Len(t, cr.Candidates, 3)
	assert.Equal(t, 7, cr.Omitted)
	assert.Equal(t, uint64(0), cr.Candidates[0].Request.Seq)
}

func TestCorrelate_Deterministic(t *testing.T) {
	t0 := 50 * time.Second
	in := Input{
		Meta: Meta{RunID: "run", Device: "dev:80", Profile: "ENDURANCE"},
		Incidents: []core.Incident{
			incident(2, t0, core.CategoryWatchdog, core.SeverityHigh, "task_wdt: triggered"),
			incident(1, t0-time.Second, core.CategoryPanic, core.SeverityCritical, "abort() was called"),
		},
		Outcomes: []core.RequestOutcome{
			outcome(2, t0, time.Second, core.OutcomeTimeout, 0),
			outcome(1, t0-2*time.Second, 20*time.Millisecond, core.OutcomeSuccess, 200),
		},
		Crashes: []core.CrashEvent{{ID: 1, DeclaredAt: t0, Recovered: true, RecoveredAt: t0 + 4*time.Second, RecoveryLatency: 4 * time.Second}},
	}

	a, err := json.Marshal(Correlate(in))
	require.NoError(t, err)
	b, err := json.Marshal(Correlate(in))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// Input order does not leak into the report
	in.Incidents[0], in.Incidents[1] = in.Incidents[1], in.Incidents[0]
	in.Outcomes[0], in.Outcomes[1] = in.Outcomes[1], in.Outcomes[0]
	c, err := json.Marshal(Correlate(in))
	require.NoError(t, err)
	assert.Equal(t, a, c)
}

func TestCorrelate_TotalsAndLatency(t *testing.T) {
	var outcomes []core.RequestOutcome
	for i := 1; i <= 20; i++ {
		outcomes = append(outcomes, outcome(uint64(i), time.Duration(i)*time.Second, time.Duration(i)*time.Millisecond, core.OutcomeSuccess, 200))
	}
	outcomes = append(outcomes,
		outcome(21, 21*time.Second, 5*time.Second, core.OutcomeTimeout, 0),
		outcome(22, 22*time.Second, time.Millisecond, core.OutcomeHTTPError, 503),
		outcome(23, 23*time.Second, time.Millisecond, core.OutcomeConnectionError, 0),
	)

	r := Correlate(Input{Outcomes: outcomes})
	assert.Equal(t, 23, r.Totals.Issued)
	assert.Equal(t, 20, r.Totals.Succeeded)
	assert.Equal(t, 3, r.Totals.Failed)
	assert.Equal(t, 1, r.Totals.TimedOut)
	assert.Equal(t, 1, r.Totals.HTTPErrors)
	assert.Equal(t, 1, r.Totals.ConnectionErrors)
	assert.InDelta(t, 0.87, r.Totals.SuccessRate, 0.001)

	assert.Equal(t, 20, r.Latency.Samples)
	assert.Equal(t, time.Millisecond, r.Latency.Min)
	assert.Equal(t, 20*time.Millisecond, r.Latency.Max)
	assert.Equal(t, 10*time.Millisecond, r.Latency.P50)
	assert.Equal(t, 19*time.Millisecond, r.Latency.P95)
	assert.Equal(t, 20*time.Millisecond, r.Latency.P99)

	require.Len(t, r.Endpoints, 1)
	assert.Equal(t, 23, r.Endpoints[0].Issued)
	assert.Equal(t, core.VerdictClean, r.Verdict)
	assert.NotNil(t, r.Crashes)
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, time.Duration(0), Percentile(nil, 50))
	one := []time.Duration{7}
	assert.Equal(t, time.Duration(7), Percentile(one, 1))
	assert.Equal(t, time.Duration(7), Percentile(one, 99))
	d := []time.Duration{1, 2, 3, 4}
	assert.Equal(t, time.Duration(2), Percentile(d, 50))
	assert.Equal(t, time.Duration(4), Percentile(d, 95))
}

func TestCorrelate_Verdicts(t *testing.T) {
	recovered := core.CrashEvent{ID: 1, DeclaredAt: time.Second, Recovered: true, RecoveryLatency: time.Second}

	assert.Equal(t, core.VerdictClean, Correlate(Input{}).Verdict)
	assert.Equal(t, core.VerdictRecovered, Correlate(Input{Crashes: []core.CrashEvent{recovered}}).Verdict)
	assert.Equal(t, core.VerdictPermanentFailure, Correlate(Input{Crashes: []core.CrashEvent{recovered, crashAt(5 * time.Second)}}).Verdict)

	r := Correlate(Input{Terminal: core.VerdictAborted, TerminalReason: "interrupted"})
	assert.Equal(t, core.VerdictAborted, r.Verdict)
	assert.Equal(t, "interrupted", r.VerdictReason)
}

func TestCorrelate_CountsInRuleOrder(t *testing.T) {
	in := Input{Incidents: []core.Incident{
		incident(1, time.Second, core.CategoryWiFi, core.SeverityHigh, "wifi"),
		incident(2, 2*time.Second, core.CategoryPanic, core.SeverityCritical, "panic"),
		incident(3, 3*time.Second, core.CategoryWiFi, core.SeverityHigh, "wifi"),
	}}

	r := Correlate(in)
	require.Len(t, r.IncidentCounts, 2)
	assert.Equal(t, core.CategoryPanic, r.IncidentCounts[0].Category)
	assert.Equal(t, core.CategoryWiFi, r.IncidentCounts[1].Category)
	assert.Equal(t, 2, r.IncidentCounts[1].Count)
	assert.Equal(t, 3*time.Second, r.IncidentCounts[1].LastAt)

	require.Len(t, r.SeverityCounts, 2)
	assert.Equal(t, SeverityCount{Severity: core.SeverityCritical, Count: 1}, r.SeverityCounts[0])
}

func TestCorrelate_DeviceSummaryAndDowntime(t *testing.T) {
	i64 := func(v int64) *int64 { return &v }
	samples := []core.LivenessSample{
		{At: 1 * time.Second, OK: true, Kind: core.OutcomeSuccess, Stats: &core.DeviceStats{FreeHeap: i64(200000), UptimeSeconds: i64(100)}},
		{At: 2 * time.Second, OK: false, Kind: core.OutcomeTimeout, Latency: 2 * time.Second},
		{At: 9 * time.Second, OK: true, Kind: core.OutcomeSuccess, Stats: &core.DeviceStats{FreeHeap: i64(250000), UptimeSeconds: i64(3)}},
	}
	outcomes := []core.RequestOutcome{
		{Seq: 1, IssuedAt: 1500 * time.Millisecond, Kind: core.OutcomeSuccess, Stats: &core.DeviceStats{FreeHeap: i64(150000)}},
	}
	crashes := []core.CrashEvent{{ID: 1, DeclaredAt: 4 * time.Second, Recovered: true, RecoveredAt: 9 * time.Second, RecoveryLatency: 5 * time.Second}}

	r := Correlate(Input{Samples: samples, Outcomes: outcomes, Crashes: crashes})
	assert.Equal(t, 3, r.Device.Reports)
	assert.Equal(t, int64(200000), *r.Device.FirstFreeHeap)
	assert.Equal(t, int64(150000), *r.Device.MinFreeHeap)
	assert.Equal(t, int64(250000), *r.Device.LastFreeHeap)
	assert.Equal(t, int64(100), *r.Device.MaxUptime)
	assert.Equal(t, 1, r.Device.Reboots)

	assert.Equal(t, 3, r.Liveness.Probes)
	assert.Equal(t, 1, r.Liveness.Failures)
	assert.Equal(t, 1, r.Liveness.Timeouts)
	assert.Equal(t, 5*time.Second, r.Liveness.Downtime)
	assert.Equal(t, 2*time.Second, r.Liveness.MaxProbeLatency)
}
