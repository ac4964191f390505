// FILE: crashwatch/src/internal/supervisor/tracker.go
package supervisor

import (
	"errors"
	"time"

	"crashwatch/src/internal/core"
)

var (
	// ErrUnreachable is returned when the very first probe fails
	ErrUnreachable = errors.New("device unreachable at start")
	// ErrRecoveryExceeded is returned when DOWN outlasts the recovery bound
	ErrRecoveryExceeded = errors.New("device did not recover within the maximum wait")
)

// Policy holds the crash declaration thresholds
type Policy struct {
	// k: consecutive failed probes that declare a crash
	FailureThreshold int
	// T: time without any successful probe that declares a crash
	SilenceTimeout time.Duration
	// Bound on a single DOWN period before the run is declared a permanent failure
	MaxRecoveryWait time.Duration
}

// DefaultPolicy returns k=3, T=10s and a 60s recovery bound
func DefaultPolicy() Policy {
	return Policy{
		FailureThreshold: 3,
		SilenceTimeout:   10 * time.Second,
		MaxRecoveryWait:  60 * time.Second,
	}
}

// Transition describes an UP/DOWN change and the crash it opened or closed
type Transition struct {
	From  core.LivenessState
	To    core.LivenessState
	At    time.Duration
	Crash core.CrashEvent
}

// Tracker is the liveness state machine. It is fed probe results in
// timestamp order and is not safe for concurrent use.
type Tracker struct {
	policy      Policy
	started     bool
	state       core.LivenessState
	consecutive int
	lastGood    time.Duration
	crashes     []core.CrashEvent
	open        int // index into crashes, -1 when UP
}

func NewTracker(policy Policy) *Tracker {
	if policy.FailureThreshold < 1 {
		policy.FailureThreshold = 1
	}
	return &Tracker{policy: policy, state: core.StateUp, open: -1}
}

// Start records the initial probe. A failed first probe fails the run.
func (t *Tracker) Start(at time.Duration, ok bool) (core.LivenessSample, error) {
	t.started = true
	sample := core.LivenessSample{At: at, OK: ok}
	if !ok {
		t.consecutive = 1
		sample.ConsecutiveFailures = 1
		return sample, ErrUnreachable
	}
	t.lastGood = at
	return sample, nil
}

// Observe feeds one probe result. It returns the resulting sample, a
// transition if the state changed, and ErrRecoveryExceeded once a DOWN
// period outlasts the recovery bound.
func (t *Tracker) Observe(at time.Duration, ok bool) (core.LivenessSample, *Transition, error) {
	if !t.started {
		sample, err := t.Start(at, ok)
		return sample, nil, err
	}

	if ok {
		t.consecutive = 0
		t.lastGood = at
		sample := core.LivenessSample{At: at, OK: true}
		if t.state == core.StateDown {
			return sample, t.recover(at), nil
		}
		return sample, nil, nil
	}

	t.consecutive++
	sample := core.LivenessSample{At: at, ConsecutiveFailures: t.consecutive}

	if t.state == core.StateDown {
		crash := t.crashes[t.open]
		if t.policy.MaxRecoveryWait > 0 && at-crash.DeclaredAt > t.policy.MaxRecoveryWait {
			return sample, nil, ErrRecoveryExceeded
		}
		t.crashes[t.open].Failures = t.consecutive
		return sample, nil, nil
	}

	switch {
	case t.consecutive >= t.policy.FailureThreshold:
		return sample, t.declare(at, core.TriggerConsecutiveFailures), nil
	case t.policy.SilenceTimeout > 0 && at-t.lastGood >= t.policy.SilenceTimeout:
		return sample, t.declare(at, core.TriggerSilence), nil
	}
	return sample, nil, nil
}

func (t *Tracker) declare(at time.Duration, trigger core.CrashTrigger) *Transition {
	crash := core.CrashEvent{
		ID:         len(t.crashes) + 1,
		DeclaredAt: at,
		Trigger:    trigger,
		LastGoodAt: t.lastGood,
		Failures:   t.consecutive,
	}
	t.crashes = append(t.crashes, crash)
	t.open = len(t.crashes) - 1
	t.state = core.StateDown
	return &Transition{From: core.StateUp, To: core.StateDown, At: at, Crash: crash}
}

func (t *Tracker) recover(at time.Duration) *Transition {
	crash := &t.crashes[t.open]
	crash.Recovered = true
	crash.RecoveredAt = at
	crash.RecoveryLatency = at - crash.DeclaredAt
	t.open = -1
	t.state = core.StateUp
	return &Transition{From: core.StateDown, To: core.StateUp, At: at, Crash: *crash}
}

// State returns the current liveness state
func (t *Tracker) State() core.LivenessState {
	return t.state
}

// OpenCrash returns the crash currently open, if any
func (t *Tracker) OpenCrash() (core.CrashEvent, bool) {
	if t.open < 0 {
		return core.CrashEvent{}, false
	}
	return t.crashes[t.open], true
}

// Crashes returns a copy of every crash declared so far
func (t *Tracker) Crashes() []core.CrashEvent {
	out := make([]core.CrashEvent, len(t.crashes))
	copy(out, t.crashes)
	return out
}
