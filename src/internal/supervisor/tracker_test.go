// FILE: crashwatch/src/internal/supervisor/tracker_test.go
package supervisor

import (
	"testing"
	"time"

	"crashwatch/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probe struct {
	at time.Duration
	ok bool
}

func sec(n float64) time.Duration {
	return time.Duration(n * float64(time.Second))
}

func feed(t *testing.T, tr *Tracker, probes []probe) []*Transition {
	t.Helper()
	var transitions []*Transition
	for _, p := range probes {
		_, transition, err := tr.Observe(p.at, p.ok)
		require.NoError(t, err)
		if transition != nil {
			transitions = append(transitions, transition)
		}
	}
	return transitions
}

func TestTracker_FailFastOnFirstProbe(t *testing.T) {
	tr := NewTracker(DefaultPolicy())
	sample, err := tr.Start(0, false)
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.False(t, sample.OK)
	assert.Empty(t, tr.Crashes())
}

func TestTracker_BelowThresholdNoCrash(t *testing.T) {
	tr := NewTracker(Policy{FailureThreshold: 3, SilenceTimeout: sec(10), MaxRecoveryWait: sec(60)})
	_, err := tr.Start(0, true)
	require.NoError(t, err)

	transitions := feed(t, tr, []probe{{sec(2), false}, {sec(4), false}, {sec(6), true}})
	assert.Empty(t, transitions)
	assert.Empty(t, tr.Crashes())
	assert.Equal(t, core.StateUp, tr.State())
}

func TestTracker_ThresholdOpensExactlyOneCrash(t *testing.T) {
	tr := NewTracker(Policy{FailureThreshold: 3, SilenceTimeout: sec(10), MaxRecoveryWait: sec(60)})
	_, err := tr.Start(0, true)
	require.NoError(t, err)

	transitions := feed(t, tr, []probe{
		{sec(2), false}, {sec(4), false}, {sec(6), false},
		{sec(8), false}, {sec(10), false},
	})
	require.Len(t, transitions, 1)
	assert.Equal(t, core.StateDown, transitions[0].To)

	crashes := tr.Crashes()
	require.Len(t, crashes, 1)
	assert.Equal(t, sec(6), crashes[0].DeclaredAt)
	assert.Equal(t, core.TriggerConsecutiveFailures, crashes[0].Trigger)
	assert.Equal(t, time.Duration(0), crashes[0].LastGoodAt)
	assert.True(t, crashes[0].Open())
	assert.Equal(t, 5, crashes[0].Failures)
}

func TestTracker_RecoveryLatency(t *testing.T) {
	tr := NewTracker(Policy{FailureThreshold: 3, SilenceTimeout: sec(10), MaxRecoveryWait: sec(60)})
	_, err := tr.Start(0, true)
	require.NoError(t, err)

	feed(t, tr, []probe{{sec(1), false}, {sec(2), false}, {sec(3), false}})
	crash, open := tr.OpenCrash()
	require.True(t, open)
	t0 := crash.DeclaredAt

	transitions := feed(t, tr, []probe{{t0 + sec(2), false}, {t0 + sec(5), true}, {t0 + sec(6), true}})
	require.Len(t, transitions, 1)
	assert.Equal(t, core.StateUp, transitions[0].To)

	crashes := tr.Crashes()
	require.Len(t, crashes, 1)
	assert.True(t, crashes[0].Recovered)
	assert.Equal(t, sec(5), crashes[0].RecoveryLatency)
	assert.Equal(t, t0+sec(5), crashes[0].RecoveredAt)
	_, open = tr.OpenCrash()
	assert.False(t, open)
}

func TestTracker_SecondDownPeriodIsNewCrash(t *testing.T) {
	tr := NewTracker(Policy{FailureThreshold: 2, MaxRecoveryWait: sec(60)})
	_, err := tr.Start(0, true)
	require.NoError(t, err)

	feed(t, tr, []probe{
		{sec(1), false}, {sec(2), false}, {sec(3), true},
		{sec(4), false}, {sec(5), false}, {sec(6), true},
	})

	crashes := tr.Crashes()
	require.Len(t, crashes, 2)
	assert.Equal(t, 1, crashes[0].ID)
	assert.Equal(t, 2, crashes[1].ID)
	assert.Equal(t, sec(1), crashes[0].RecoveryLatency)
	assert.Equal(t, sec(3), crashes[1].LastGoodAt)
	assert.Equal(t, sec(5), crashes[1].DeclaredAt)
}

func TestTracker_SilenceTrigger(t *testing.T) {
	// Threshold too high to fire; slow failing probes hit the silence bound first
	tr := NewTracker(Policy{FailureThreshold: 10, SilenceTimeout: sec(10), MaxRecoveryWait: sec(60)})
	_, err := tr.Start(0, true)
	require.NoError(t, err)

	transitions := feed(t, tr, []probe{{sec(4), false}, {sec(8), false}, {sec(12), false}})
	require.Len(t, transitions, 1)
	assert.Equal(t, core.TriggerSilence, transitions[0].Crash.Trigger)
	assert.Equal(t, sec(12), transitions[0].Crash.DeclaredAt)
}

func TestTracker_RecoveryExceeded(t *testing.T) {
	tr := NewTracker(Policy{FailureThreshold: 1, MaxRecoveryWait: sec(30)})
	_, err := tr.Start(0, true)
	require.NoError(t, err)

	feed(t, tr, []probe{{sec(2), false}, {sec(20), false}, {sec(32), false}})
	_, _, err = tr.Observe(sec(33), false)
	assert.ErrorIs(t, err, ErrRecoveryExceeded)

	crashes := tr.Crashes()
	require.Len(t, crashes, 1)
	assert.False(t, crashes[0].Recovered)
}
