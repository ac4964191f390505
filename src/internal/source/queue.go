// FILE: crashwatch/src/internal/source/queue.go
package source

import (
	"sync"
	"sync/atomic"

	"crashwatch/src/internal/core"
)

// OverflowPolicy decides what a full queue does with a new line
type OverflowPolicy string

const (
	// DropOldest evicts the oldest queued line and counts it
	DropOldest OverflowPolicy = "drop_oldest"
	// Block waits for the consumer until the queue is closed
	Block OverflowPolicy = "block"
)

// Queue is a bounded single-producer line queue between the reader and one consumer
type Queue struct {
	ch      chan core.LogLine
	policy  OverflowPolicy
	mu      sync.Mutex
	done    chan struct{}
	once    sync.Once
	closed  bool
	pushed  atomic.Uint64
	dropped atomic.Uint64
}

// NewQueue creates a queue of the given capacity
func NewQueue(size int, policy OverflowPolicy) *Queue {
	if size < 1 {
		size = 1
	}
	if policy != Block {
		policy = DropOldest
	}
	return &Queue{
		ch:     make(chan core.LogLine, size),
		policy: policy,
		done:   make(chan struct{}),
	}
}

// Push enqueues a line and returns how many lines it cost: the line itself
// when rejected or the evicted head under DropOldest.
func (q *Queue) Push(line core.LogLine) (lost int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.dropped.Add(1)
		return 1
	}

	select {
	case q.ch <- line:
		q.pushed.Add(1)
		return 0
	default:
	}

	if q.policy == Block {
		select {
		case q.ch <- line:
			q.pushed.Add(1)
			return 0
		case <-q.done:
			q.dropped.Add(1)
			return 1
		}
	}

	// Make room by evicting the head; the consumer may race us for it
	select {
	case <-q.ch:
		lost++
	default:
	}
	select {
	case q.ch <- line:
		q.pushed.Add(1)
	default:
		lost++
	}
	q.dropped.Add(uint64(lost))
	return lost
}

// Lines returns the consumer side. It is closed after Close once drained.
func (q *Queue) Lines() <-chan core.LogLine {
	return q.ch
}

// Close releases a blocked producer and closes the consumer channel. Idempotent.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })

	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Dropped returns the number of lines lost to overflow
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Pushed returns the number of lines accepted
func (q *Queue) Pushed() uint64 {
	return q.pushed.Load()
}
