// FILE: crashwatch/src/internal/classify/ring.go
package classify

import "crashwatch/src/internal/core"

// ring keeps the most recent lines in arrival order
type ring struct {
	buf   []core.LogLine
	start int
	size  int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{buf: make([]core.LogLine, capacity)}
}

func (r *ring) push(line core.LogLine) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = line
		r.size++
		return
	}
	r.buf[r.start] = line
	r.start = (r.start + 1) % len(r.buf)
}

// last returns up to n of the newest lines, oldest first
func (r *ring) last(n int) []core.LogLine {
	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]core.LogLine, n)
	offset := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.start+offset+i)%len(r.buf)]
	}
	return out
}

func (r *ring) len() int {
	return r.size
}
