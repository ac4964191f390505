// FILE: crashwatch/src/internal/sink/sink_test.go
package sink

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"crashwatch/src/internal/classify"
	"crashwatch/src/internal/core"
	"crashwatch/src/internal/supervisor"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func line(seq uint64, at time.Duration, text string) core.LogLine {
	return core.LogLine{Seq: seq, At: at, Text: text}
}

func TestConsoleSink_WritesBlocksNoticesAndTransitions(t *testing.T) {
	var out bytes.Buffer
	events := make(chan classify.Event, 8)
	transitions := make(chan supervisor.Transition, 8)

	s := NewConsoleSink(ConsoleConfig{Color: "never"}, &out, events, transitions, newTestLogger())
	require.NoError(t, s.Start(context.Background()))

	panicLine := line(3, 2*time.Second, "Guru Meditation Error: Core  0 panic'ed (LoadProhibited)")
	events <- classify.Event{
		Incident: core.Incident{Seq: 1, At: panicLine.At, Category: core.CategoryPanic, Severity: core.SeverityCritical, Description: "Kernel panic or fatal error", Line: panicLine},
		Block: &classify.Block{
			Incident: core.Incident{Seq: 1, At: panicLine.At, Category: core.CategoryPanic, Severity: core.SeverityCritical, Description: "Kernel panic or fatal error", Line: panicLine},
			Lines:    []core.LogLine{line(1, time.Second, "I (100) app: tick"), line(2, time.Second, "I (101) app: tick"), panicLine},
		},
	}
	events <- classify.Event{Incident: core.Incident{Seq: 2, At: 3 * time.Second, Category: core.CategoryWiFi, Severity: core.SeverityHigh, Line: line(4, 3*time.Second, "wifi: disconnected")}}
	events <- classify.Event{Incident: core.Incident{Seq: 3, At: 4 * time.Second, Category: core.CategoryStorage, Severity: core.SeverityLow, Line: line(5, 4*time.Second, "nvs: warn")}}
	transitions <- supervisor.Transition{From: core.StateUp, To: core.StateDown, At: 6 * time.Second,
		Crash: core.CrashEvent{ID: 1, DeclaredAt: 6 * time.Second, Trigger: core.TriggerConsecutiveFailures, Failures: 3}}
	transitions <- supervisor.Transition{From: core.StateDown, To: core.StateUp, At: 9 * time.Second,
		Crash: core.CrashEvent{ID: 1, Recovered: true, RecoveryLatency: 3 * time.Second}}
	close(events)
	close(transitions)
	s.Stop()

	got := out.String()
	assert.Contains(t, got, "CRITICAL PANIC: Kernel panic or fatal error")
	assert.Contains(t, got, "Context (3 lines):")
	assert.Contains(t, got, ">>> Guru Meditation Error")
	assert.Contains(t, got, "    I (100) app: tick")
	assert.Contains(t, got, "[+3.000s] HIGH WIFI: wifi: disconnected")
	assert.NotContains(t, got, "nvs: warn")
	assert.Contains(t, got, "CRASH #1 DECLARED  consecutive_failures after 3 failure(s)")
	assert.Contains(t, got, "RECOVERED from crash #1 in 3s")

	stats := s.GetStats()
	assert.Equal(t, uint64(5), stats.TotalProcessed)
	assert.Equal(t, uint64(1), stats.Details["critical_blocks"])
}

func TestConsoleSink_NilInputs(t *testing.T) {
	var out bytes.Buffer
	s := NewConsoleSink(ConsoleConfig{Color: "never", MinSeverity: core.SeverityLow}, &out, nil, nil, newTestLogger())
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	assert.Empty(t, out.String())
}

func TestConsoleSink_ColorForcedStillRendersText(t *testing.T) {
	var out bytes.Buffer
	events := make(chan classify.Event, 1)
	s := NewConsoleSink(ConsoleConfig{Color: "always"}, &out, events, nil, newTestLogger())
	require.NoError(t, s.Start(context.Background()))

	events <- classify.Event{Incident: core.Incident{At: time.Second, Category: core.CategoryWatchdog, Severity: core.SeverityHigh, Line: line(1, time.Second, "task_wdt: Task watchdog got triggered")}}
	close(events)
	s.Stop()

	assert.True(t, strings.Contains(out.String(), "task_wdt: Task watchdog got triggered"))
}

func TestCaptureSink(t *testing.T) {
	input := make(chan core.LogLine, 4)
	cs, err := NewCaptureSink(CaptureConfig{Directory: t.TempDir(), Name: "device"}, input, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, cs.Start(context.Background()))

	input <- line(1, 1500*time.Millisecond, "boot: ESP-IDF v5.1")
	input <- line(2, 2*time.Second, "I (42) wifi: connected")
	close(input)
	cs.Stop()

	assert.Equal(t, uint64(2), cs.GetStats().TotalProcessed)
	assert.Equal(t, "capture", cs.GetStats().Type)
}

func TestFormatCaptureLine(t *testing.T) {
	assert.Equal(t, "[+1.500s] #7 I (42) wifi: connected", FormatCaptureLine(line(7, 1500*time.Millisecond, "I (42) wifi: connected")))
}
