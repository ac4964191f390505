// FILE: crashwatch/src/internal/source/reader_test.go
package source

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"crashwatch/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

// serveOnce accepts one connection, writes the chunks with a short gap and closes
func serveOnce(t *testing.T, chunks ...string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for _, c := range chunks {
			conn.Write([]byte(c))
			time.Sleep(10 * time.Millisecond)
		}
	}()
	return ln.Addr().String()
}

func collect(q *Queue, n int, timeout time.Duration) []core.LogLine {
	var out []core.LogLine
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case line, ok := <-q.Lines():
			if !ok {
				return out
			}
			out = append(out, line)
		case <-deadline:
			return out
		}
	}
	return out
}

func TestReader_FramesStampsAndDisconnects(t *testing.T) {
	addr := serveOnce(t, "I (1) boot\r\nE (2) wif", "i: Failed\n", "trailing")

	clock := &core.ManualClock{}
	clock.Set(3 * time.Second)
	q := NewQueue(16, DropOldest)
	r, err := NewReader(ReaderOptions{Address: addr, DialTimeout: time.Second}, NewStamper(clock), newTestLogger(), q)
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("reader did not report the disconnect")
	}

	lines := collect(q, 3, time.Second)
	require.Len(t, lines, 3)
	assert.Equal(t, "I (1) boot", lines[0].Text)
	assert.Equal(t, "E (2) wifi: Failed", lines[1].Text)
	assert.Equal(t, "trailing", lines[2].Text)
	for i, l := range lines {
		assert.Equal(t, uint64(i+1), l.Seq)
		assert.Equal(t, 3*time.Second, l.At)
	}

	assert.Error(t, r.Err())
	assert.NotErrorIs(t, r.Err(), ErrClosed)
	assert.Equal(t, uint64(3), r.GetStats().TotalLines)
}

func TestReader_CountsEvictedLines(t *testing.T) {
	var burst string
	for i := range 10 {
		burst += fmt.Sprintf("I (%d) tick\n", i)
	}
	addr := serveOnce(t, burst)

	small := NewQueue(2, DropOldest)
	roomy := NewQueue(16, DropOldest)
	r, err := NewReader(ReaderOptions{Address: addr, DialTimeout: time.Second},
		NewStamper(&core.ManualClock{}), newTestLogger(), small, roomy)
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("reader did not report the disconnect")
	}

	stats := r.GetStats()
	assert.Equal(t, uint64(10), stats.TotalLines)
	assert.Equal(t, uint64(8), small.Dropped())
	assert.Zero(t, roomy.Dropped())
	assert.Equal(t, uint64(8), stats.DroppedLines)

	lines := collect(small, 2, time.Second)
	require.Len(t, lines, 2)
	assert.Equal(t, "I (8) tick", lines[0].Text)
	assert.Equal(t, "I (9) tick", lines[1].Text)
}

func TestReader_StopReportsClosed(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		if c, err := ln.Accept(); err == nil {
			accepted <- c
		}
	}()

	q := NewQueue(4, DropOldest)
	r, err := NewReader(ReaderOptions{Address: ln.Addr().String()}, NewStamper(&core.ManualClock{}), newTestLogger(), q)
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))

	conn := <-accepted
	defer conn.Close()

	r.Stop()
	<-r.Done()
	assert.ErrorIs(t, r.Err(), ErrClosed)
}

func TestReader_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	r, err := NewReader(ReaderOptions{Address: addr, DialTimeout: 500 * time.Millisecond},
		NewStamper(&core.ManualClock{}), newTestLogger(), NewQueue(1, DropOldest))
	require.NoError(t, err)
	assert.Error(t, r.Start(context.Background()))
}
