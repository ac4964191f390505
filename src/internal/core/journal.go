// FILE: crashwatch/src/internal/core/journal.go
package core

import "sync"

// Journal is an append-only event log owned by a single producer.
// Readers take copies through Snapshot and never block the writer for
// longer than one copy.
type Journal[T any] struct {
	mu    sync.Mutex
	items []T
}

// Append adds one event
func (j *Journal[T]) Append(v T) {
	j.mu.Lock()
	j.items = append(j.items, v)
	j.mu.Unlock()
}

// Snapshot returns a copy of all events recorded so far
func (j *Journal[T]) Snapshot() []T {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]T, len(j.items))
	copy(out, j.items)
	return out
}

// Len returns the number of recorded events
func (j *Journal[T]) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.items)
}
