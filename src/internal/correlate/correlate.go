// FILE: crashwatch/src/internal/correlate/correlate.go
package correlate

import (
	"fmt"
	"sort"
	"time"

	"crashwatch/src/internal/core"
	"crashwatch/src/internal/workload"
)

const (
	// DefaultWindow is the half-width of the correlation window around a crash
	DefaultWindow = 5 * time.Second
	// DefaultMaxCandidates caps candidates attached to one crash
	DefaultMaxCandidates = 25
)

// Input is the closed set of event streams of one run plus its metadata.
// Correlate does not modify it.
type Input struct {
	Meta          Meta
	Window        time.Duration
	MaxCandidates int

	Incidents []core.Incident
	Outcomes  []core.RequestOutcome
	Samples   []core.LivenessSample
	Crashes   []core.CrashEvent
	Workload  *workload.Result
	LogStream LogStreamSummary

	// Set by the caller when the run ended on a run-level failure or cancel
	Terminal       core.Verdict
	TerminalReason string
}

// Correlate builds the report. It is pure: the same input always yields the
// same report.
func Correlate(in Input) *Report {
	window := in.Window
	if window <= 0 {
		window = DefaultWindow
	}
	maxCandidates := in.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}

	incidents := sortedIncidents(in.Incidents)
	outcomes := sortedOutcomes(in.Outcomes)
	crashes := make([]core.CrashEvent, len(in.Crashes))
	copy(crashes, in.Crashes)
	sort.SliceStable(crashes, func(i, j int) bool { return crashes[i].DeclaredAt < crashes[j].DeclaredAt })

	r := &Report{
		Meta:      in.Meta,
		Totals:    totals(outcomes, in.Workload),
		Latency:   latency(outcomes),
		Endpoints: endpoints(outcomes),
		Crashes:   make([]CrashReport, 0, len(crashes)),
		Incidents: incidents,
		Liveness:  liveness(in.Samples, crashes),
		Device:    deviceSummary(outcomes, in.Samples),
		LogStream: in.LogStream,
		Workload:  in.Workload,
	}
	r.Meta.Window = window
	if r.Incidents == nil {
		r.Incidents = []core.Incident{}
	}

	for _, crash := range crashes {
		cands := candidates(crash, incidents, outcomes, window)
		cr := CrashReport{CrashEvent: crash, Candidates: cands}
		if len(cands) > maxCandidates {
			cr.Candidates = cands[:maxCandidates]
			cr.Omitted = len(cands) - maxCandidates
		}
		r.Crashes = append(r.Crashes, cr)
	}

	r.IncidentCounts, r.SeverityCounts = counts(incidents)
	r.Verdict, r.VerdictReason = verdict(in, crashes)
	return r
}

// candidates collects events inside [declared-at - window, declared-at + window]
// ranked by severity, then distance to declared-at, incidents before requests,
// then sequence
func candidates(crash core.CrashEvent, incidents []core.Incident, outcomes []core.RequestOutcome, window time.Duration) []Candidate {
	lo, hi := crash.DeclaredAt-window, crash.DeclaredAt+window
	out := []Candidate{}

	for i := range incidents {
		inc := incidents[i]
		if inc.At < lo || inc.At > hi {
			continue
		}
		out = append(out, Candidate{
			Source:   SourceIncident,
			Severity: inc.Severity,
			At:       inc.At,
			Offset:   inc.At - crash.DeclaredAt,
			Summary:  fmt.Sprintf("%s: %s", inc.Category, inc.Line.Text),
			Incident: &inc,
		})
	}
	for i := range outcomes {
		o := outcomes[i]
		if o.IssuedAt < lo || o.IssuedAt > hi {
			continue
		}
		out = append(out, Candidate{
			Source:   SourceRequest,
			Severity: OutcomeSeverity(o),
			At:       o.IssuedAt,
			Offset:   o.IssuedAt - crash.DeclaredAt,
			Summary:  outcomeSummary(o),
			Request:  &o,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra < rb
		}
		if da, db := abs(a.Offset), abs(b.Offset); da != db {
			return da < db
		}
		if a.Source != b.Source {
			return a.Source == SourceIncident
		}
		return candidateSeq(a) < candidateSeq(b)
	})
	return out
}

// OutcomeSeverity maps a request outcome onto the incident severity scale:
// hard failures are MEDIUM, client errors and successes LOW
func OutcomeSeverity(o core.RequestOutcome) core.Severity {
	switch o.Kind {
	case core.OutcomeTimeout, core.OutcomeConnectionError:
		return core.SeverityMedium
	case core.OutcomeHTTPError:
		if o.Status >= 500 {
			return core.SeverityMedium
		}
	}
	return core.SeverityLow
}

func outcomeSummary(o core.RequestOutcome) string {
	s := fmt.Sprintf("%s %s -> %s", o.Method, o.Endpoint, o.Kind)
	if o.Status != 0 {
		s += fmt.Sprintf(" (%d)", o.Status)
	}
	if o.PayloadSize > 0 {
		s += fmt.Sprintf(" payload=%d", o.PayloadSize)
	}
	return s + fmt.Sprintf(" in %s", o.Duration.Round(time.Millisecond))
}

func candidateSeq(c Candidate) uint64 {
	if c.Incident != nil {
		return c.Incident.Seq
	}
	return c.Request.Seq
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func verdict(in Input, crashes []core.CrashEvent) (core.Verdict, string) {
	if in.Terminal != "" {
		return in.Terminal, in.TerminalReason
	}
	if len(crashes) == 0 {
		return core.VerdictClean, ""
	}
	for _, c := range crashes {
		if c.Open() {
			return core.VerdictPermanentFailure, fmt.Sprintf("crash %d still open at end of run", c.ID)
		}
	}
	return core.VerdictRecovered, fmt.Sprintf("%d crash(es), all recovered", len(crashes))
}

func sortedIncidents(in []core.Incident) []core.Incident {
	out := make([]core.Incident, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].At != out[j].At {
			return out[i].At < out[j].At
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

func sortedOutcomes(in []core.RequestOutcome) []core.RequestOutcome {
	out := make([]core.RequestOutcome, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IssuedAt != out[j].IssuedAt {
			return out[i].IssuedAt < out[j].IssuedAt
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}
