// FILE: crashwatch/src/internal/format/text.go
package format

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"crashwatch/src/internal/correlate"

	"github.com/lixenwraith/log"
)

const textTemplate = `crashwatch report {{.Meta.RunID}}
  device:   {{.Meta.Device}}
  profile:  {{.Meta.Profile}}
  started:  {{.Meta.Started}}
  duration: {{Dur .Meta.Duration}}
{{- if .Meta.Interim}}
  (interim summary)
{{- end}}

VERDICT: {{ToUpper (print .Verdict)}}{{if .VerdictReason}} ({{.VerdictReason}}){{end}}

Requests
  issued {{.Totals.Issued}}, succeeded {{.Totals.Succeeded}}, failed {{.Totals.Failed}} (http {{.Totals.HTTPErrors}}, timeout {{.Totals.TimedOut}}, connection {{.Totals.ConnectionErrors}})
  success rate {{Pct .Totals.SuccessRate}}, throughput {{printf "%.2f" .Totals.Throughput}} req/s
{{- if .Latency.Samples}}
  latency min {{Dur .Latency.Min}} mean {{Dur .Latency.Mean}} p50 {{Dur .Latency.P50}} p95 {{Dur .Latency.P95}} p99 {{Dur .Latency.P99}} max {{Dur .Latency.Max}}
{{- end}}
{{- range .Endpoints}}
  {{printf "%-28s" .Endpoint}} {{.Succeeded}}/{{.Issued}} p50 {{Dur .P50}} p95 {{Dur .P95}}
{{- end}}

Liveness
  probes {{.Liveness.Probes}}, failed {{.Liveness.Failures}}, timeouts {{.Liveness.Timeouts}}, downtime {{Dur .Liveness.Downtime}}
{{- if .Device.Reports}}
  device reports {{.Device.Reports}}, free heap first {{Int .Device.FirstFreeHeap}} min {{Int .Device.MinFreeHeap}} last {{Int .Device.LastFreeHeap}}, reboots {{.Device.Reboots}}
{{- end}}
{{- if .LogStream.Enabled}}
  log lines {{.LogStream.Lines}}, dropped {{.LogStream.Dropped}}, disconnects {{.LogStream.Disconnects}}
{{- if .LogStream.Filtered}}, filtered {{.LogStream.Filtered}}{{end}}
{{- end}}

Crashes ({{len .Crashes}})
{{- range .Crashes}}
  #{{.ID}} declared {{At .DeclaredAt}} via {{.Trigger}} after {{.Failures}} failure(s), last good {{At .LastGoodAt}}
{{- if .Recovered}}
    recovered {{At .RecoveredAt}} (latency {{Dur .RecoveryLatency}})
{{- else}}
    NOT RECOVERED
{{- end}}
{{- range $i, $c := .Candidates}}
    {{Inc $i}}. [{{Offset $c.Offset}}] {{printf "%-8s" $c.Severity}} {{$c.Source}}: {{Trunc $c.Summary 120}}
{{- end}}
{{- if .Omitted}}
    ... {{.Omitted}} more candidate(s) omitted
{{- end}}
{{- end}}

Incidents ({{len .Incidents}})
{{- range .SeverityCounts}}
  {{printf "%-8s" .Severity}} {{.Count}}
{{- end}}
{{- range .IncidentCounts}}
  {{printf "%-16s" .Category}} {{printf "%-8s" .Severity}} {{.Count}} (last {{At .LastAt}})
{{- end}}
`

// TextEncoder renders a human-readable report from a template.
type TextEncoder struct {
	template *template.Template
	logger   *log.Logger
}

// NewTextEncoder creates the text report encoder
func NewTextEncoder(logger *log.Logger) (*TextEncoder, error) {
	funcMap := template.FuncMap{
		"Dur":     func(d time.Duration) string { return d.Round(time.Millisecond).String() },
		"At":      formatAt,
		"Offset":  formatOffset,
		"Pct":     func(v float64) string { return fmt.Sprintf("%.1f%%", v*100) },
		"Int":     formatInt,
		"Inc":     func(i int) int { return i + 1 },
		"Trunc":   truncate,
		"ToUpper": strings.ToUpper,
	}

	tmpl, err := template.New("report").Funcs(funcMap).Parse(textTemplate)
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}
	return &TextEncoder{template: tmpl, logger: logger}, nil
}

func (e *TextEncoder) Encode(r *correlate.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.template.Execute(&buf, r); err != nil {
		return nil, fmt.Errorf("failed to render text report: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *TextEncoder) Name() string {
	return "text"
}

// formatAt renders a run-relative instant as T+seconds
func formatAt(d time.Duration) string {
	return fmt.Sprintf("T+%.3fs", d.Seconds())
}

func formatOffset(d time.Duration) string {
	if d < 0 {
		return fmt.Sprintf("-%.3fs", (-d).Seconds())
	}
	return fmt.Sprintf("+%.3fs", d.Seconds())
}

func formatInt(v *int64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d", *v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
