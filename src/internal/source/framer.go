// FILE: crashwatch/src/internal/source/framer.go
package source

import (
	"bytes"
	"strings"
)

// DefaultMaxPartial bounds a pending line that has not seen its newline yet
const DefaultMaxPartial = 64 * 1024

// Framer reassembles arbitrary byte chunks into newline-terminated lines.
// Not safe for concurrent use; each connection owns one.
type Framer struct {
	buf        bytes.Buffer
	maxPartial int
	truncated  uint64
}

// NewFramer creates a framer. maxPartial <= 0 selects DefaultMaxPartial.
func NewFramer(maxPartial int) *Framer {
	if maxPartial <= 0 {
		maxPartial = DefaultMaxPartial
	}
	return &Framer{maxPartial: maxPartial}
}

// Feed appends a chunk and returns every line it completed, in order.
// Trailing '\r' is trimmed and empty lines are skipped. A line longer than
// maxPartial is cut into maxPartial pieces wherever the chunk boundaries fall.
func (f *Framer) Feed(chunk []byte) []string {
	f.buf.Write(chunk)

	var lines []string
	for {
		idx := bytes.IndexByte(f.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		lines = f.cut(lines, idx)
		idx = bytes.IndexByte(f.buf.Bytes(), '\n')
		if line, ok := clean(f.buf.Next(idx)); ok {
			lines = append(lines, line)
		}
		f.buf.Next(1)
	}

	lines = f.cut(lines, f.buf.Len())
	return lines
}

// cut emits maxPartial pieces from the head of the buffer while more than
// maxPartial bytes of the current line (n bytes long so far) remain
func (f *Framer) cut(lines []string, n int) []string {
	for n > f.maxPartial {
		if line, ok := clean(f.buf.Next(f.maxPartial)); ok {
			lines = append(lines, line)
		}
		n -= f.maxPartial
		f.truncated++
	}
	return lines
}

// Flush returns the pending fragment, if any, and resets the framer.
// Called once when the stream ends.
func (f *Framer) Flush() (string, bool) {
	defer f.buf.Reset()
	return clean(f.buf.Bytes())
}

// Pending returns the number of buffered bytes without a newline yet
func (f *Framer) Pending() int {
	return f.buf.Len()
}

// Truncated returns how many oversized fragments were cut
func (f *Framer) Truncated() uint64 {
	return f.truncated
}

func clean(raw []byte) (string, bool) {
	raw = bytes.TrimRight(raw, "\r")
	if len(raw) == 0 {
		return "", false
	}
	return strings.ToValidUTF8(string(raw), "�"), true
}
