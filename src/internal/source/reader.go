// FILE: crashwatch/src/internal/source/reader.go
package source

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"crashwatch/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/panjf2000/gnet/v2"
)

// Stamper assigns sequence numbers and run-clock offsets to extracted lines.
// One Stamper is shared by every connection attempt of a run.
type Stamper struct {
	clock core.Clock
	seq   atomic.Uint64
}

func NewStamper(clock core.Clock) *Stamper {
	return &Stamper{clock: clock}
}

// Stamp builds a LogLine at the current clock offset
func (s *Stamper) Stamp(text string) core.LogLine {
	return core.LogLine{
		Seq:  s.seq.Add(1),
		At:   s.clock.Now(),
		Text: text,
	}
}

// Last returns the most recently assigned sequence number
func (s *Stamper) Last() uint64 {
	return s.seq.Load()
}

// ReaderOptions configures one connection to the device log transport
type ReaderOptions struct {
	Address     string
	DialTimeout time.Duration
	MaxPartial  int
}

// Reader holds a single connection to the device's line-oriented log transport.
// When the connection ends it signals Done and does not reconnect.
type Reader struct {
	opts    ReaderOptions
	stamper *Stamper
	logger  *log.Logger
	framer  *Framer
	queues  []*Queue
	client  *gnet.Client

	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	err       error
	endedAt   time.Duration
	stopping  atomic.Bool

	// Statistics
	totalLines    atomic.Uint64
	droppedLines  atomic.Uint64
	bytesReceived atomic.Uint64
	startTime     time.Time
	lastLineTime  atomic.Value // time.Time
}

// NewReader creates a reader that publishes every line to all given queues
func NewReader(opts ReaderOptions, stamper *Stamper, logger *log.Logger, queues ...*Queue) (*Reader, error) {
	if opts.Address == "" {
		return nil, fmt.Errorf("log stream reader requires an address")
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if len(queues) == 0 {
		return nil, fmt.Errorf("log stream reader requires at least one queue")
	}

	r := &Reader{
		opts:    opts,
		stamper: stamper,
		logger:  logger,
		framer:  NewFramer(opts.MaxPartial),
		queues:  queues,
		done:    make(chan struct{}),

		startTime: time.Now(),
	}
	r.lastLineTime.Store(time.Time{})
	return r, nil
}

// Start dials the transport and hands the connection to a gnet client event loop
func (r *Reader) Start(ctx context.Context) error {
	dialer := net.Dialer{Timeout: r.opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", r.opts.Address)
	if err != nil {
		return fmt.Errorf("failed to connect to log stream %s: %w", r.opts.Address, err)
	}

	client, err := gnet.NewClient(&readerEvents{reader: r},
		gnet.WithLogger(compat.NewGnetAdapter(r.logger)),
	)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create log stream client: %w", err)
	}
	if err := client.Start(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to start log stream client: %w", err)
	}

	r.client = client

	if _, err := client.Enroll(conn); err != nil {
		client.Stop()
		conn.Close()
		return fmt.Errorf("failed to attach log stream connection: %w", err)
	}

	r.logger.Info("msg", "Log stream connected",
		"component", "log_reader",
		"address", r.opts.Address)
	return nil
}

// Stop closes the connection. Lines already framed stay in the queues.
func (r *Reader) Stop() {
	r.stopping.Store(true)
	if r.client != nil {
		if err := r.client.Stop(); err != nil {
			r.logger.Debug("msg", "Log stream client stop returned error",
				"component", "log_reader",
				"error", err)
		}
	}
	// The event loop may already be gone without delivering OnClose
	r.finish(ErrClosed)
}

// Done is closed when the connection has ended for any reason
func (r *Reader) Done() <-chan struct{} {
	return r.done
}

// Err returns why the stream ended: ErrClosed after Stop, otherwise the transport error
func (r *Reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// EndedAt returns the run clock offset of the disconnect
func (r *Reader) EndedAt() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endedAt
}

// GetStats returns reader statistics
func (r *Reader) GetStats() SourceStats {
	lastLine, _ := r.lastLineTime.Load().(time.Time)
	var ended bool
	select {
	case <-r.done:
		ended = true
	default:
	}

	return SourceStats{
		Type:         "tcp_log_stream",
		TotalLines:   r.totalLines.Load(),
		DroppedLines: r.droppedLines.Load(),
		StartTime:    r.startTime,
		LastLineTime: lastLine,
		Details: map[string]any{
			"address":         r.opts.Address,
			"bytes_received":  r.bytesReceived.Load(),
			"truncated_lines": r.framer.Truncated(),
			"disconnected":    ended,
		},
	}
}

func (r *Reader) publish(text string) {
	line := r.stamper.Stamp(text)
	r.totalLines.Add(1)
	r.lastLineTime.Store(time.Now())

	for _, q := range r.queues {
		if lost := q.Push(line); lost > 0 {
			r.droppedLines.Add(uint64(lost))
		}
	}
}

func (r *Reader) finish(cause error) {
	r.closeOnce.Do(func() {
		if tail, ok := r.framer.Flush(); ok {
			r.publish(tail)
		}

		r.mu.Lock()
		r.err = cause
		r.endedAt = r.stamper.clock.Now()
		r.mu.Unlock()

		close(r.done)
	})
}

// Handles gnet client events for the single log connection
type readerEvents struct {
	gnet.BuiltinEventEngine
	reader *Reader
}

func (e *readerEvents) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	e.reader.logger.Debug("msg", "Log stream connection opened",
		"component", "log_reader",
		"remote_addr", c.RemoteAddr())
	return nil, gnet.None
}

func (e *readerEvents) OnTraffic(c gnet.Conn) gnet.Action {
	data, err := c.Next(-1)
	if err != nil {
		e.reader.logger.Error("msg", "Error reading from log stream",
			"component", "log_reader",
			"error", err)
		return gnet.Close
	}
	e.reader.bytesReceived.Add(uint64(len(data)))

	for _, line := range e.reader.framer.Feed(data) {
		e.reader.publish(line)
	}
	return gnet.None
}

func (e *readerEvents) OnClose(c gnet.Conn, err error) gnet.Action {
	cause := err
	if e.reader.stopping.Load() {
		cause = ErrClosed
	} else if cause == nil {
		cause = fmt.Errorf("log stream closed by device")
	}

	e.reader.logger.Info("msg", "Log stream disconnected",
		"component", "log_reader",
		"address", e.reader.opts.Address,
		"lines", e.reader.totalLines.Load(),
		"error", cause)

	e.reader.finish(cause)
	return gnet.None
}
