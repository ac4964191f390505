// FILE: crashwatch/src/internal/workload/driver_test.go
package workload

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crashwatch/src/internal/config"
	"crashwatch/src/internal/core"
	"crashwatch/src/internal/device"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

// stubDevice answers every request after latency using the real run clock
type stubDevice struct {
	clock   core.Clock
	latency time.Duration
	calls   atomic.Int64
	fail    func(r device.Request) bool
	after   func(n int64)

	mu    sync.Mutex
	paths []string
	sizes []int
}

func (s *stubDevice) Do(r device.Request) device.Result {
	n := s.calls.Add(1)
	s.mu.Lock()
	s.paths = append(s.paths, r.Path)
	s.sizes = append(s.sizes, len(r.Body))
	s.mu.Unlock()

	issued := s.clock.Now()
	time.Sleep(s.latency)
	res := device.Result{IssuedAt: issued, Duration: s.clock.Now() - issued, Kind: core.OutcomeSuccess, Status: 200}
	if s.fail != nil && s.fail(r) {
		res.Kind = core.OutcomeHTTPError
		res.Status = 500
		res.Err = "status 500"
	}
	if s.after != nil {
		s.after(n)
	}
	return res
}

// switchLiveness is a hand-driven liveness source
type switchLiveness struct {
	down atomic.Bool
	mu   sync.Mutex
	up   chan struct{}
}

func newSwitch() *switchLiveness {
	s := &switchLiveness{up: make(chan struct{})}
	close(s.up)
	return s
}

func (s *switchLiveness) State() core.LivenessState {
	if s.down.Load() {
		return core.StateDown
	}
	return core.StateUp
}

func (s *switchLiveness) Wait(ctx context.Context) error {
	s.mu.Lock()
	up := s.up
	s.mu.Unlock()
	select {
	case <-up:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *switchLiveness) setDown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down.CompareAndSwap(false, true) {
		s.up = make(chan struct{})
	}
}

func (s *switchLiveness) setUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.down.CompareAndSwap(true, false) {
		close(s.up)
	}
}

func TestEndurance_Pacing(t *testing.T) {
	if testing.Short() {
		t.Skip("runs for ten seconds")
	}
	clock := core.NewClock()
	dev := &stubDevice{clock: clock, latency: 10 * time.Millisecond}
	d, err := NewDriver(Profile{
		Kind:      core.ProfileEndurance,
		Endpoints: []string{"/api/metrics"},
		Rate:      2,
		Duration:  10 * time.Second,
	}, dev, newSwitch(), clock, newTestLogger())
	require.NoError(t, err)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Aborted)
	assert.GreaterOrEqual(t, len(res.Outcomes), 18)
	assert.LessOrEqual(t, len(res.Outcomes), 22)
	for _, o := range res.Outcomes {
		assert.True(t, o.Succeeded())
		assert.Equal(t, "GET", o.Method)
	}
}

func TestEndurance_AbortsOnCrash(t *testing.T) {
	clock := core.NewClock()
	live := newSwitch()
	dev := &stubDevice{clock: clock, after: func(n int64) {
		if n == 3 {
			live.setDown()
		}
	}}
	d, err := NewDriver(Profile{
		Kind:      core.ProfileEndurance,
		Endpoints: []string{"/a", "/b"},
		Rate:      100,
		Duration:  5 * time.Second,
	}, dev, live, clock, newTestLogger())
	require.NoError(t, err)

	start := time.Now()
	res, err := d.Run(context.Background())
	assert.ErrorIs(t, err, ErrCrashDeclared)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, res.Aborted)
	require.Len(t, res.Outcomes, 3)
	assert.Equal(t, []string{"/a", "/b", "/a"}, dev.paths)
}

func TestEndurance_PausesUntilRecovery(t *testing.T) {
	clock := core.NewClock()
	live := newSwitch()
	dev := &stubDevice{clock: clock, after: func(n int64) {
		if n == 2 {
			live.setDown()
			time.AfterFunc(100*time.Millisecond, live.setUp)
		}
	}}
	d, err := NewDriver(Profile{
		Kind:      core.ProfileEndurance,
		Endpoints: []string{"/"},
		Rate:      50,
		Duration:  400 * time.Millisecond,
		OnCrash:   Pause,
	}, dev, live, clock, newTestLogger())
	require.NoError(t, err)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pauses)
	assert.Greater(t, len(res.Outcomes), 2)
}

func TestEndurance_Cancel(t *testing.T) {
	clock := core.NewClock()
	d, err := NewDriver(Profile{
		Kind:      core.ProfileEndurance,
		Endpoints: []string{"/"},
		Rate:      10,
		Duration:  time.Minute,
		Workers:   3,
	}, &stubDevice{clock: clock}, newSwitch(), clock, newTestLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	res, err := d.Run(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, res.Aborted)
	assert.NotEmpty(t, res.Outcomes)
}

func TestBursts(t *testing.T) {
	clock := core.NewClock()
	var burstCalls atomic.Int64
	dev := &stubDevice{clock: clock, latency: 5 * time.Millisecond, fail: func(r device.Request) bool {
		// one failure in the second burst
		return burstCalls.Add(1) == 6
	}}
	d, err := NewDriver(Profile{
		Kind:        core.ProfileConcurrentBurst,
		Endpoints:   []string{"/api/system"},
		Concurrency: 4,
		Bursts:      3,
		BurstPause:  10 * time.Millisecond,
	}, dev, newSwitch(), clock, newTestLogger())
	require.NoError(t, err)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Bursts, 3)
	assert.Len(t, res.Outcomes, 12)
	assert.False(t, res.Bursts[0].Failed)
	assert.True(t, res.Bursts[1].Failed)
	assert.Equal(t, 3, res.Bursts[1].Succeeded)
	assert.False(t, res.Bursts[2].Failed)

	workers := map[int]bool{}
	for _, o := range res.Outcomes {
		workers[o.Worker] = true
	}
	assert.Len(t, workers, 4)
}

func TestBursts_AbortBeforeNextBurst(t *testing.T) {
	clock := core.NewClock()
	live := newSwitch()
	dev := &stubDevice{clock: clock, after: func(n int64) {
		if n == 2 {
			live.setDown()
		}
	}}
	d, err := NewDriver(Profile{
		Kind:        core.ProfileConcurrentBurst,
		Endpoints:   []string{"/"},
		Concurrency: 2,
		Bursts:      5,
	}, dev, live, clock, newTestLogger())
	require.NoError(t, err)

	res, err := d.Run(context.Background())
	assert.ErrorIs(t, err, ErrCrashDeclared)
	assert.Len(t, res.Bursts, 1)
	assert.Len(t, res.Outcomes, 2)
}

func TestEscalation_StopsAtCrash(t *testing.T) {
	clock := core.NewClock()
	live := newSwitch()
	dev := &stubDevice{clock: clock, after: func(n int64) {
		if n == 12 {
			live.setDown()
		}
	}}
	d, err := NewDriver(Profile{
		Kind:       core.ProfileRateEscalation,
		Endpoints:  []string{"/api/metrics"},
		StartRate:  20,
		Multiplier: 2,
		SafetyCap:  1000,
		StepWindow: 200 * time.Millisecond,
		MaxSteps:   10,
	}, dev, live, clock, newTestLogger())
	require.NoError(t, err)

	res, err := d.Run(context.Background())
	assert.ErrorIs(t, err, ErrCrashDeclared)
	require.GreaterOrEqual(t, len(res.Steps), 2)
	last := res.Steps[len(res.Steps)-1]
	assert.True(t, last.Crashed)
	assert.Equal(t, res.Steps[len(res.Steps)-2].Rate, res.MaxSustainedRate)
	assert.Equal(t, 20.0, res.Steps[0].Rate)
	assert.Equal(t, 40.0, res.Steps[1].Rate)
}

func TestEscalation_SafetyCap(t *testing.T) {
	clock := core.NewClock()
	d, err := NewDriver(Profile{
		Kind:       core.ProfileRateEscalation,
		Endpoints:  []string{"/"},
		StartRate:  10,
		Multiplier: 3,
		SafetyCap:  50,
		StepWindow: 50 * time.Millisecond,
		MaxSteps:   10,
	}, &stubDevice{clock: clock}, newSwitch(), clock, newTestLogger())
	require.NoError(t, err)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Steps, 3)
	assert.Equal(t, []float64{10, 30, 50}, []float64{res.Steps[0].Rate, res.Steps[1].Rate, res.Steps[2].Rate})
	assert.Equal(t, 50.0, res.MaxSustainedRate)
}

func TestSweep(t *testing.T) {
	clock := core.NewClock()
	live := newSwitch()
	dev := &stubDevice{clock: clock}
	dev.fail = func(r device.Request) bool { return len(r.Body) > 1500 }
	dev.after = func(n int64) {
		if n == 3 {
			live.setDown()
		}
	}

	d, err := NewDriver(Profile{
		Kind:         core.ProfilePayloadSweep,
		PayloadPath:  "/api/config",
		PayloadSizes: []int{5000, 100, 1000, 2000},
		Settle:       5 * time.Millisecond,
	}, dev, live, clock, newTestLogger())
	require.NoError(t, err)

	res, err := d.Run(context.Background())
	assert.ErrorIs(t, err, ErrCrashDeclared)
	require.Len(t, res.Payloads, 3)
	assert.Equal(t, []int{100, 1000, 2000}, []int{res.Payloads[0].Size, res.Payloads[1].Size, res.Payloads[2].Size})
	assert.Equal(t, 1000, res.LargestAccepted)
	assert.Equal(t, 2000, res.CrashAtSize)
	assert.True(t, res.Payloads[2].DownAfter)
	assert.False(t, res.Payloads[2].Accepted)
	require.Len(t, res.Outcomes, 3)
	for _, o := range res.Outcomes {
		assert.Equal(t, "POST", o.Method)
		assert.Equal(t, "/api/config", o.Endpoint)
	}
	assert.Equal(t, 2000, res.Outcomes[2].PayloadSize)
}

func TestSweep_CompletesWhenHealthy(t *testing.T) {
	clock := core.NewClock()
	d, err := NewDriver(Profile{
		Kind:         core.ProfilePayloadSweep,
		PayloadPath:  "/api/config",
		PayloadSizes: []int{10, 20},
	}, &stubDevice{clock: clock}, newSwitch(), clock, newTestLogger())
	require.NoError(t, err)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, res.LargestAccepted)
	assert.Zero(t, res.CrashAtSize)
}

func TestFromConfig(t *testing.T) {
	cfg := config.Defaults().Workload
	cfg.Profile = "payload-sweep"
	cfg.PayloadSizes = []int64{500, 100}

	p, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, core.ProfilePayloadSweep, p.Kind)
	assert.Equal(t, []int{100, 500}, p.PayloadSizes)
	assert.Equal(t, 5*time.Second, p.RequestTimeout)
	assert.Equal(t, Abort, p.OnCrash)

	cfg.Profile = "burst"
	_, err = FromConfig(cfg)
	assert.Error(t, err)
}
