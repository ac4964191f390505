// FILE: crashwatch/src/internal/supervisor/gate.go
package supervisor

import (
	"context"
	"sync"
	"sync/atomic"

	"crashwatch/src/internal/core"
)

// Gate publishes the supervisor's liveness state. Only the supervisor
// writes it; workload drivers read it and wait on it.
type Gate struct {
	down atomic.Bool

	mu     sync.Mutex
	up     chan struct{} // closed while UP
	failed chan struct{} // closed on permanent failure
	err    error

	subMu       sync.RWMutex
	subscribers []chan core.LivenessState
	closed      bool
}

// NewGate creates a gate in the UP state
func NewGate() *Gate {
	up := make(chan struct{})
	close(up)
	return &Gate{up: up, failed: make(chan struct{})}
}

// State returns the current liveness state
func (g *Gate) State() core.LivenessState {
	if g.down.Load() {
		return core.StateDown
	}
	return core.StateUp
}

// Wait blocks until the device is UP. It returns the permanent failure
// error if the supervisor gave up, or ctx.Err().
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	up, failed := g.up, g.failed
	g.mu.Unlock()

	select {
	case <-up:
		return nil
	case <-failed:
		return g.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the permanent failure, if any
func (g *Gate) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Subscribe returns a channel of state changes. Slow subscribers miss changes.
func (g *Gate) Subscribe(size int) <-chan core.LivenessState {
	g.subMu.Lock()
	defer g.subMu.Unlock()
	ch := make(chan core.LivenessState, size)
	if g.closed {
		close(ch)
		return ch
	}
	g.subscribers = append(g.subscribers, ch)
	return ch
}

func (g *Gate) set(state core.LivenessState) {
	g.mu.Lock()
	switch state {
	case core.StateDown:
		if !g.down.Load() {
			g.down.Store(true)
			g.up = make(chan struct{})
		}
	default:
		if g.down.Load() {
			g.down.Store(false)
			close(g.up)
		}
	}
	g.mu.Unlock()

	g.subMu.RLock()
	defer g.subMu.RUnlock()
	for _, ch := range g.subscribers {
		select {
		case ch <- state:
		default:
		}
	}
}

func (g *Gate) fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return
	}
	g.err = err
	close(g.failed)
}

// close ends all subscriptions
func (g *Gate) close() {
	g.subMu.Lock()
	defer g.subMu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	for _, ch := range g.subscribers {
		close(ch)
	}
	g.subscribers = nil
}
