// FILE: crashwatch/src/internal/classify/classifier_test.go
package classify

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"crashwatch/src/internal/config"
	"crashwatch/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func defaultRuleSet(t *testing.T) *RuleSet {
	t.Helper()
	rs, err := NewRuleSet(DefaultRules())
	require.NoError(t, err)
	return rs
}

func line(seq uint64, text string) core.LogLine {
	return core.LogLine{Seq: seq, At: time.Duration(seq) * time.Millisecond, Text: text}
}

func TestRuleSet_DefaultOrderMatchesCategories(t *testing.T) {
	rs := defaultRuleSet(t)
	require.Equal(t, len(core.Categories), rs.Len())
	for i, r := range rs.Rules() {
		assert.Equal(t, core.Categories[i], r.Category)
	}
}

func TestRuleSet_Match(t *testing.T) {
	rs := defaultRuleSet(t)

	testCases := []struct {
		name     string
		text     string
		category core.Category
		severity core.Severity
		matched  bool
	}{
		{"GuruMeditation", "Guru Meditation Error: Core  0 panic'ed (LoadProhibited)", core.CategoryPanic, core.SeverityCritical, true},
		{"PanicBeatsGenericFailure", "task failed: panic at src/main.rs:42", core.CategoryPanic, core.SeverityCritical, true},
		{"PanicBeatsAssertion", "panic: assert failed in heap.c", core.CategoryPanic, core.SeverityCritical, true},
		{"CPUException", "Exception was unhandled: StoreProhibited", core.CategoryCPUException, core.SeverityCritical, true},
		{"Assertion", "abort() was called at PC 0x400d1234", core.CategoryAssertion, core.SeverityCritical, true},
		{"MallocCaseInsensitive", "HEAP_CAPS_MALLOC of 4096 bytes FAILED", core.CategoryMemoryAlloc, core.SeverityHigh, true},
		{"StackCanary", "Stack canary watchpoint triggered, Stack canary was corrupted", core.CategoryStackOverflow, core.SeverityCritical, true},
		{"Watchdog", "E (12345) task_wdt: Task watchdog got triggered", core.CategoryWatchdog, core.SeverityHigh, true},
		{"WiFiReason", "wifi:state: run -> init (WIFI_REASON_BEACON_TIMEOUT)", core.CategoryWiFi, core.SeverityMedium, true},
		{"Brownout", "Brownout detector was triggered", core.CategoryPower, core.SeverityHigh, true},
		{"DeviceErrorLog", "E (2048) camera: frame timeout", core.CategoryLogError, core.SeverityMedium, true},
		{"AppError", "metrics: error: sensor offline", core.CategoryAppError, core.SeverityLow, true},
		{"GenericFailure", "OTA check FAIL", core.CategoryGenericFailure, core.SeverityLow, true},
		{"NoMatch", "I (100) app: fps=30", "", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, ok := rs.Match(tc.text)
			require.Equal(t, tc.matched, ok)
			if !ok {
				return
			}
			assert.Equal(t, tc.category, r.Category)
			assert.Equal(t, tc.severity, r.Severity)
		})
	}
}

func TestRuleSet_PanicAndGenericOnlyRules(t *testing.T) {
	rs, err := NewRuleSet([]RuleSpec{
		{Pattern: "panic", Category: core.CategoryPanic, Severity: core.SeverityCritical},
		{Pattern: "failed", Category: core.CategoryGenericFailure, Severity: core.SeverityLow},
	})
	require.NoError(t, err)

	c := New(rs, 4, newTestLogger())
	c.Process(line(1, "init failed, panic follows"))
	c.Finish()

	incidents := c.Incidents()
	require.Len(t, incidents, 1)
	assert.Equal(t, core.CategoryPanic, incidents[0].Category)
}

func TestFromConfig(t *testing.T) {
	t.Run("CustomRulesFirst", func(t *testing.T) {
		rs, err := FromConfig(config.ClassifierConfig{
			ContextLines: 20,
			Rules: []config.RuleConfig{
				{Pattern: `camera.*timeout`, Category: "task_create", Severity: "high"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, len(core.Categories)+1, rs.Len())

		r, ok := rs.Match("E (1) camera: frame timeout")
		require.True(t, ok)
		assert.Equal(t, core.CategoryTaskCreate, r.Category)
		assert.Equal(t, "Custom rule: TASK_CREATE", r.Description)
	})

	t.Run("ReplaceDefaults", func(t *testing.T) {
		rs, err := FromConfig(config.ClassifierConfig{
			ReplaceDefaults: true,
			Rules:           []config.RuleConfig{{Pattern: "boom", Category: "PANIC", Severity: "CRITICAL"}},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, rs.Len())
		_, ok := rs.Match("Guru Meditation Error")
		assert.False(t, ok)
	})

	t.Run("InvalidRegex", func(t *testing.T) {
		_, err := FromConfig(config.ClassifierConfig{
			Rules: []config.RuleConfig{{Pattern: "(", Category: "PANIC", Severity: "CRITICAL"}},
		})
		assert.Error(t, err)
	})
}

func TestClassifier_ContextAndCriticalBlock(t *testing.T) {
	c := New(defaultRuleSet(t), 6, newTestLogger())
	events := c.Subscribe(8)

	for i := 1; i <= 5; i++ {
		c.Process(line(uint64(i), fmt.Sprintf("I (%d) app: tick", i)))
	}
	c.Process(line(6, "Guru Meditation Error: Core 1 panic'ed"))

	select {
	case ev := <-events:
		require.NotNil(t, ev.Block)
		assert.Equal(t, core.CategoryPanic, ev.Incident.Category)
		require.Len(t, ev.Block.Lines, 4)
		assert.Equal(t, uint64(3), ev.Block.Lines[0].Seq)
		assert.Equal(t, 3, ev.Block.MatchIndex())

		rendered := ev.Block.Render()
		assert.Contains(t, rendered, ">>> Guru Meditation Error")
		assert.Contains(t, rendered, "    I (5) app: tick")
		assert.Equal(t, 1, strings.Count(rendered, ">>>"))
	default:
		t.Fatal("critical match did not publish an event")
	}

	// Incident waits for its after-context
	assert.Empty(t, c.Incidents())
	for i := 7; i <= 9; i++ {
		c.Process(line(uint64(i), "I app: after"))
	}

	incidents := c.Incidents()
	require.Len(t, incidents, 1)
	inc := incidents[0]
	assert.Equal(t, 6*time.Millisecond, inc.At)
	require.Len(t, inc.Before, 3)
	require.Len(t, inc.After, 3)
	assert.Equal(t, uint64(7), inc.After[0].Seq)
}

func TestClassifier_FinishCompletesPartialContext(t *testing.T) {
	c := New(defaultRuleSet(t), 20, newTestLogger())
	events := c.Subscribe(4)

	c.Process(line(1, "E (10) nvs: partition error"))
	c.Process(line(2, "I trailing"))
	c.Finish()

	incidents := c.Incidents()
	require.Len(t, incidents, 1)
	assert.Equal(t, core.CategoryStorage, incidents[0].Category)
	assert.Len(t, incidents[0].After, 1)

	ev, ok := <-events
	require.True(t, ok)
	assert.Nil(t, ev.Block)
	_, ok = <-events
	assert.False(t, ok, "subscriber channel should be closed")
}

func TestClassifier_SummaryCounts(t *testing.T) {
	c := New(defaultRuleSet(t), 4, newTestLogger())
	c.Process(line(1, "allocation failed for frame buffer"))
	c.Process(line(2, "all good"))
	c.Process(line(3, "heap_caps_malloc failed again"))
	c.Process(line(4, "WDT timeout"))

	s := c.Summary()
	assert.Equal(t, uint64(4), s.Lines)
	assert.Equal(t, uint64(3), s.Matched)
	assert.Equal(t, uint64(1), s.Unmatched)
	assert.Equal(t, 2, s.Counts[core.CategoryMemoryAlloc])
	assert.Equal(t, 1, s.Counts[core.CategoryWatchdog])
	assert.Equal(t, uint64(3), s.Latest[core.CategoryMemoryAlloc].Line.Seq)
}

func TestClassifier_RunStopsOnClosedInput(t *testing.T) {
	c := New(defaultRuleSet(t), 4, newTestLogger())
	lines := make(chan core.LogLine, 3)
	lines <- line(1, "stack overflow in task main")
	lines <- line(2, "x")
	close(lines)

	done := make(chan struct{})
	go func() {
		c.Run(context.Background(), lines)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after input closed")
	}
	require.Len(t, c.Incidents(), 1)
	assert.Equal(t, core.CategoryStackOverflow, c.Incidents()[0].Category)
}

type dropHeartbeats struct{}

func (dropHeartbeats) Reject(l core.LogLine) (string, bool) {
	return "heartbeat", strings.Contains(l.Text, "heartbeat")
}

func TestClassifier_FilteredLinesSkipContext(t *testing.T) {
	c := New(defaultRuleSet(t), 4, newTestLogger())
	c.SetFilter(dropHeartbeats{})

	c.Process(line(1, "boot ok"))
	c.Process(line(2, "heartbeat failed"))
	c.Process(line(3, "heartbeat"))
	c.Process(line(4, "WDT timeout"))
	c.Finish()

	incidents := c.Incidents()
	require.Len(t, incidents, 1)
	assert.Equal(t, core.CategoryWatchdog, incidents[0].Category)
	require.Len(t, incidents[0].Before, 1)
	assert.Equal(t, "boot ok", incidents[0].Before[0].Text)

	s := c.Summary()
	assert.Equal(t, uint64(4), s.Lines)
	assert.Equal(t, uint64(2), s.Filtered)
	assert.Equal(t, map[string]uint64{"heartbeat": 2}, s.FilteredBy)
	assert.Equal(t, uint64(1), s.Unmatched)
}
