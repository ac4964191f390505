// FILE: crashwatch/src/internal/workload/driver.go
package workload

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"crashwatch/src/internal/core"
	"crashwatch/src/internal/device"

	"github.com/lixenwraith/log"
)

// ErrCrashDeclared ends a profile early because the device is down
var ErrCrashDeclared = errors.New("crash declared, workload aborted")

// Liveness is the read side of the supervisor's state
type Liveness interface {
	State() core.LivenessState
	Wait(ctx context.Context) error
}

// Requester issues a single device request
type Requester interface {
	Do(r device.Request) device.Result
}

// Result is everything a driver run produced
type Result struct {
	Profile     core.ProfileKind      `json:"profile" yaml:"profile" cbor:"profile"`
	StartedAt   time.Duration         `json:"started_at_ns" yaml:"started_at_ns" cbor:"started_at_ns"`
	EndedAt     time.Duration         `json:"ended_at_ns" yaml:"ended_at_ns" cbor:"ended_at_ns"`
	Outcomes    []core.RequestOutcome `json:"-" yaml:"-" cbor:"-"`
	Bursts      []BurstResult         `json:"bursts,omitempty" yaml:"bursts,omitempty" cbor:"bursts,omitempty"`
	Steps       []StepResult          `json:"steps,omitempty" yaml:"steps,omitempty" cbor:"steps,omitempty"`
	Payloads    []PayloadResult       `json:"payloads,omitempty" yaml:"payloads,omitempty" cbor:"payloads,omitempty"`
	Aborted     bool                  `json:"aborted" yaml:"aborted" cbor:"aborted"`
	AbortReason string                `json:"abort_reason,omitempty" yaml:"abort_reason,omitempty" cbor:"abort_reason,omitempty"`
	Pauses      int                   `json:"pauses,omitempty" yaml:"pauses,omitempty" cbor:"pauses,omitempty"`

	// RATE_ESCALATION: highest rate whose whole window succeeded without a crash
	MaxSustainedRate float64 `json:"max_sustained_rate,omitempty" yaml:"max_sustained_rate,omitempty" cbor:"max_sustained_rate,omitempty"`
	// PAYLOAD_SWEEP: largest accepted size, -1 when none; size after which the device went down, 0 when none
	LargestAccepted int `json:"largest_accepted,omitempty" yaml:"largest_accepted,omitempty" cbor:"largest_accepted,omitempty"`
	CrashAtSize     int `json:"crash_at_size,omitempty" yaml:"crash_at_size,omitempty" cbor:"crash_at_size,omitempty"`
}

// BurstResult summarizes one CONCURRENT_BURST round
type BurstResult struct {
	Index     int           `json:"index" yaml:"index" cbor:"index"`
	StartedAt time.Duration `json:"started_at_ns" yaml:"started_at_ns" cbor:"started_at_ns"`
	Issued    int           `json:"issued" yaml:"issued" cbor:"issued"`
	Succeeded int           `json:"succeeded" yaml:"succeeded" cbor:"succeeded"`
	Failed    bool          `json:"failed" yaml:"failed" cbor:"failed"`
}

// StepResult summarizes one RATE_ESCALATION window
type StepResult struct {
	Index     int           `json:"index" yaml:"index" cbor:"index"`
	Rate      float64       `json:"rate" yaml:"rate" cbor:"rate"`
	StartedAt time.Duration `json:"started_at_ns" yaml:"started_at_ns" cbor:"started_at_ns"`
	Requests  int           `json:"requests" yaml:"requests" cbor:"requests"`
	Failures  int           `json:"failures" yaml:"failures" cbor:"failures"`
	Crashed   bool          `json:"crashed" yaml:"crashed" cbor:"crashed"`
}

// PayloadResult records one PAYLOAD_SWEEP size
type PayloadResult struct {
	Size      int              `json:"size" yaml:"size" cbor:"size"`
	Kind      core.OutcomeKind `json:"result" yaml:"result" cbor:"result"`
	Status    int              `json:"status,omitempty" yaml:"status,omitempty" cbor:"status,omitempty"`
	Accepted  bool             `json:"accepted" yaml:"accepted" cbor:"accepted"`
	DownAfter bool             `json:"down_after" yaml:"down_after" cbor:"down_after"`
	FreeHeap  *int64           `json:"free_heap,omitempty" yaml:"free_heap,omitempty" cbor:"free_heap,omitempty"`
}

// Driver runs one load profile with a bounded set of workers
type Driver struct {
	profile Profile
	req     Requester
	live    Liveness
	clock   core.Clock
	logger  *log.Logger

	seq      atomic.Uint64
	endpoint atomic.Uint64
	pauses   atomic.Int64

	mu       sync.Mutex
	journals map[int]*core.Journal[core.RequestOutcome]
	observer func(core.RequestOutcome)
}

// NewDriver creates a driver for the profile
func NewDriver(profile Profile, req Requester, live Liveness, clock core.Clock, logger *log.Logger) (*Driver, error) {
	if err := profile.normalize(); err != nil {
		return nil, fmt.Errorf("invalid load profile: %w", err)
	}
	return &Driver{
		profile:  profile,
		req:      req,
		live:     live,
		clock:    clock,
		logger:   logger,
		journals: make(map[int]*core.Journal[core.RequestOutcome]),
	}, nil
}

// OnOutcome registers a callback invoked synchronously by workers for every
// outcome. Must be set before Run.
func (d *Driver) OnOutcome(fn func(core.RequestOutcome)) {
	d.observer = fn
}

// Profile returns the normalized profile
func (d *Driver) Profile() Profile {
	return d.profile
}

// Run executes the profile. It returns ErrCrashDeclared if the profile was
// cut short by a crash, the supervisor's permanent failure error if a paused
// driver gave up, or ctx.Err() on cancellation. The Result is always complete
// for the portion that ran.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	res := &Result{Profile: d.profile.Kind, StartedAt: d.clock.Now(), LargestAccepted: -1}

	d.logger.Info("msg", "Workload started",
		"component", "workload",
		"profile", d.profile.Kind,
		"endpoints", d.profile.Endpoints,
		"on_crash", d.profile.OnCrash)

	var err error
	switch d.profile.Kind {
	case core.ProfileEndurance:
		_, err = d.runEndurance(ctx, d.profile.Rate, d.profile.Duration, d.profile.OnCrash)
	case core.ProfileConcurrentBurst:
		err = d.runBursts(ctx, res)
	case core.ProfileRateEscalation:
		err = d.runEscalation(ctx, res)
	case core.ProfilePayloadSweep:
		err = d.runSweep(ctx, res)
	}

	res.EndedAt = d.clock.Now()
	res.Outcomes = d.Outcomes()
	res.Pauses = int(d.pauses.Load())
	if res.LargestAccepted < 0 && d.profile.Kind != core.ProfilePayloadSweep {
		res.LargestAccepted = 0
	}
	if err != nil {
		res.Aborted = true
		res.AbortReason = err.Error()
	}

	d.logger.Info("msg", "Workload finished",
		"component", "workload",
		"profile", d.profile.Kind,
		"requests", len(res.Outcomes),
		"aborted", res.Aborted,
		"reason", res.AbortReason)
	return res, err
}

// Outcomes merges the per-worker journals ordered by issue time
func (d *Driver) Outcomes() []core.RequestOutcome {
	d.mu.Lock()
	journals := make([]*core.Journal[core.RequestOutcome], 0, len(d.journals))
	for _, j := range d.journals {
		journals = append(journals, j)
	}
	d.mu.Unlock()

	var out []core.RequestOutcome
	for _, j := range journals {
		out = append(out, j.Snapshot()...)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].IssuedAt != out[k].IssuedAt {
			return out[i].IssuedAt < out[k].IssuedAt
		}
		if out[i].Worker != out[k].Worker {
			return out[i].Worker < out[k].Worker
		}
		return out[i].Seq < out[k].Seq
	})
	return out
}

func (d *Driver) journal(worker int) *core.Journal[core.RequestOutcome] {
	d.mu.Lock()
	defer d.mu.Unlock()
	j, ok := d.journals[worker]
	if !ok {
		j = &core.Journal[core.RequestOutcome]{}
		d.journals[worker] = j
	}
	return j
}

// gate checks liveness before a request or burst. Under Abort it returns
// ErrCrashDeclared while DOWN; under Pause it waits for recovery.
func (d *Driver) gate(ctx context.Context, policy CrashPolicy) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.live.State() != core.StateDown {
		return nil
	}
	if policy == Abort {
		return ErrCrashDeclared
	}

	d.pauses.Add(1)
	d.logger.Warn("msg", "Device down, workload paused",
		"component", "workload",
		"profile", d.profile.Kind)
	if err := d.live.Wait(ctx); err != nil {
		return err
	}
	d.logger.Info("msg", "Device back up, workload resumed",
		"component", "workload",
		"profile", d.profile.Kind)
	return nil
}

// nextEndpoint rotates over the configured endpoints
func (d *Driver) nextEndpoint() string {
	n := d.endpoint.Add(1) - 1
	return d.profile.Endpoints[n%uint64(len(d.profile.Endpoints))]
}

// issue performs one request and records its outcome on the worker's journal
func (d *Driver) issue(worker int, r device.Request, payloadSize int) core.RequestOutcome {
	if r.Method == "" {
		r.Method = d.profile.Method
	}
	r.Timeout = d.profile.RequestTimeout
	seq := d.seq.Add(1)

	res := d.req.Do(r)
	outcome := core.RequestOutcome{
		Seq:         seq,
		Worker:      worker,
		Endpoint:    r.Path,
		Method:      r.Method,
		IssuedAt:    res.IssuedAt,
		Duration:    res.Duration,
		Kind:        res.Kind,
		Status:      res.Status,
		Error:       res.Err,
		PayloadSize: payloadSize,
		Stats:       res.Stats,
	}
	d.journal(worker).Append(outcome)
	if d.observer != nil {
		d.observer(outcome)
	}
	return outcome
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
