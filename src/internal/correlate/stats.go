// FILE: crashwatch/src/internal/correlate/stats.go
package correlate

import (
	"math"
	"sort"
	"time"

	"crashwatch/src/internal/core"
	"crashwatch/src/internal/workload"
)

// Percentile returns the nearest-rank percentile of sorted durations
func Percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}

func totals(outcomes []core.RequestOutcome, wl *workload.Result) Totals {
	var t Totals
	for _, o := range outcomes {
		t.Issued++
		switch o.Kind {
		case core.OutcomeSuccess:
			t.Succeeded++
		case core.OutcomeHTTPError:
			t.HTTPErrors++
		case core.OutcomeTimeout:
			t.TimedOut++
		default:
			t.ConnectionErrors++
		}
	}
	t.Failed = t.Issued - t.Succeeded
	if t.Issued > 0 {
		t.SuccessRate = round(float64(t.Succeeded) / float64(t.Issued))
	}

	var span time.Duration
	if wl != nil {
		span = wl.EndedAt - wl.StartedAt
	} else if len(outcomes) > 0 {
		last := outcomes[len(outcomes)-1]
		span = last.IssuedAt + last.Duration - outcomes[0].IssuedAt
	}
	if span > 0 {
		t.Throughput = round(float64(t.Issued) / span.Seconds())
	}
	return t
}

func successDurations(outcomes []core.RequestOutcome) []time.Duration {
	var d []time.Duration
	for _, o := range outcomes {
		if o.Succeeded() {
			d = append(d, o.Duration)
		}
	}
	sort.Slice(d, func(i, j int) bool { return d[i] < d[j] })
	return d
}

func latency(outcomes []core.RequestOutcome) Latency {
	d := successDurations(outcomes)
	if len(d) == 0 {
		return Latency{}
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return Latency{
		Samples: len(d),
		Min:     d[0],
		Mean:    sum / time.Duration(len(d)),
		P50:     Percentile(d, 50),
		P95:     Percentile(d, 95),
		P99:     Percentile(d, 99),
		Max:     d[len(d)-1],
	}
}

func endpoints(outcomes []core.RequestOutcome) []EndpointStats {
	byEndpoint := make(map[string][]core.RequestOutcome)
	for _, o := range outcomes {
		byEndpoint[o.Endpoint] = append(byEndpoint[o.Endpoint], o)
	}
	names := make([]string, 0, len(byEndpoint))
	for name := range byEndpoint {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]EndpointStats, 0, len(names))
	for _, name := range names {
		list := byEndpoint[name]
		d := successDurations(list)
		out = append(out, EndpointStats{
			Endpoint:  name,
			Issued:    len(list),
			Succeeded: len(d),
			P50:       Percentile(d, 50),
			P95:       Percentile(d, 95),
		})
	}
	return out
}

func counts(incidents []core.Incident) ([]CategoryCount, []SeverityCount) {
	byCategory := make(map[core.Category]*CategoryCount)
	bySeverity := make(map[core.Severity]int)
	for _, inc := range incidents {
		cc, ok := byCategory[inc.Category]
		if !ok {
			cc = &CategoryCount{Category: inc.Category, Severity: inc.Severity}
			byCategory[inc.Category] = cc
		}
		cc.Count++
		cc.LastAt = inc.At
		// A custom rule may reuse a category at a different severity; keep the worst
		if inc.Severity.Rank() < cc.Severity.Rank() {
			cc.Severity = inc.Severity
		}
		bySeverity[inc.Severity]++
	}

	categories := []CategoryCount{}
	for _, cat := range core.Categories {
		if cc, ok := byCategory[cat]; ok {
			categories = append(categories, *cc)
		}
	}

	severities := []SeverityCount{}
	for _, sev := range []core.Severity{core.SeverityCritical, core.SeverityHigh, core.SeverityMedium, core.SeverityLow} {
		if n := bySeverity[sev]; n > 0 {
			severities = append(severities, SeverityCount{Severity: sev, Count: n})
		}
	}
	return categories, severities
}

func liveness(samples []core.LivenessSample, crashes []core.CrashEvent) LivenessSummary {
	var l LivenessSummary
	for _, s := range samples {
		l.Probes++
		if !s.OK {
			l.Failures++
		}
		if s.Kind == core.OutcomeTimeout {
			l.Timeouts++
		}
		if s.Latency > l.MaxProbeLatency {
			l.MaxProbeLatency = s.Latency
		}
	}

	var lastSample time.Duration
	if len(samples) > 0 {
		lastSample = samples[len(samples)-1].At
	}
	for _, c := range crashes {
		if c.Recovered {
			l.Downtime += c.RecoveryLatency
		} else if lastSample > c.DeclaredAt {
			l.Downtime += lastSample - c.DeclaredAt
		}
	}
	return l
}

// deviceSummary folds the optional device figures of outcomes and probes in time order
func deviceSummary(outcomes []core.RequestOutcome, samples []core.LivenessSample) DeviceSummary {
	type point struct {
		at    time.Duration
		stats *core.DeviceStats
	}
	var points []point
	for _, o := range outcomes {
		if !o.Stats.Empty() {
			points = append(points, point{o.IssuedAt, o.Stats})
		}
	}
	for _, s := range samples {
		if !s.Stats.Empty() {
			points = append(points, point{s.At, s.Stats})
		}
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].at < points[j].at })

	var d DeviceSummary
	var lastUptime *int64
	for _, p := range points {
		d.Reports++
		if h := p.stats.FreeHeap; h != nil {
			v := *h
			if d.FirstFreeHeap == nil {
				d.FirstFreeHeap = &v
			}
			if d.MinFreeHeap == nil || v < *d.MinFreeHeap {
				lowest := v
				d.MinFreeHeap = &lowest
			}
			last := v
			d.LastFreeHeap = &last
		}
		if u := p.stats.UptimeSeconds; u != nil {
			v := *u
			if lastUptime != nil && v < *lastUptime {
				d.Reboots++
			}
			lastUptime = &v
			if d.MaxUptime == nil || v > *d.MaxUptime {
				highest := v
				d.MaxUptime = &highest
			}
		}
	}
	return d
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
