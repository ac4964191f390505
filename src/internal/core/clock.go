// FILE: crashwatch/src/internal/core/clock.go
package core

import (
	"sync"
	"time"
)

// Clock yields offsets from a shared run epoch. All producers of one run
// must share the same Clock so their timestamps are comparable.
type Clock interface {
	Now() time.Duration
}

// RunClock is a monotonic clock anchored at construction time
type RunClock struct {
	start time.Time
}

// NewClock starts a run clock at the current instant
func NewClock() *RunClock {
	return &RunClock{start: time.Now()}
}

// Now returns the monotonic offset since the epoch
func (c *RunClock) Now() time.Duration {
	return time.Since(c.start)
}

// Epoch returns the wall time of offset zero
func (c *RunClock) Epoch() time.Time {
	return c.start
}

// ManualClock is a settable clock for tests and replays
type ManualClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to an absolute offset
func (c *ManualClock) Set(d time.Duration) {
	c.mu.Lock()
	c.now = d
	c.mu.Unlock()
}

// Advance moves the clock forward and returns the new offset
func (c *ManualClock) Advance(d time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	return c.now
}
