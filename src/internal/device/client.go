// FILE: crashwatch/src/internal/device/client.go
package device

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"crashwatch/src/internal/core"
	"crashwatch/src/internal/version"

	"github.com/lixenwraith/log"
	"github.com/valyala/fasthttp"
)

// Options addresses the device HTTP interface
type Options struct {
	Host     string
	Port     int64
	MaxConns int
	// How long a request waits for a free connection once MaxConns are busy
	ConnWait time.Duration
}

// Request is one call against the device
type Request struct {
	Method      string
	Path        string
	Body        []byte
	ContentType string
	Timeout     time.Duration
}

// Result is the tagged outcome of a request. Err is set for every kind but success.
type Result struct {
	IssuedAt time.Duration
	Duration time.Duration
	Kind     core.OutcomeKind
	Status   int
	Err      string
	Stats    *core.DeviceStats
}

// OK reports a 2xx response
func (r Result) OK() bool {
	return r.Kind == core.OutcomeSuccess
}

// Client issues requests against the device and classifies their outcome.
// Safe for concurrent use.
type Client struct {
	base      string
	client    *fasthttp.Client
	clock     core.Clock
	logger    *log.Logger
	userAgent string

	// Statistics
	total      atomic.Uint64
	successes  atomic.Uint64
	httpErrors atomic.Uint64
	timeouts   atomic.Uint64
	connErrors atomic.Uint64
}

// NewClient creates a device client stamping results with clock
func NewClient(opts Options, clock core.Clock, logger *log.Logger) (*Client, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("device client requires a host")
	}
	if opts.Port <= 0 {
		opts.Port = 80
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = 16
	}
	if opts.ConnWait <= 0 {
		opts.ConnWait = 5 * time.Second
	}

	c := &Client{
		base: "http://" + net.JoinHostPort(opts.Host, strconv.FormatInt(opts.Port, 10)),
		client: &fasthttp.Client{
			MaxConnsPerHost:               opts.MaxConns,
			MaxConnWaitTimeout:            opts.ConnWait,
			MaxIdleConnDuration:           5 * time.Second,
			DisableHeaderNamesNormalizing: true,
			NoDefaultUserAgentHeader:      true,
		},
		clock:     clock,
		logger:    logger,
		userAgent: version.UserAgent(),
	}

	logger.Debug("msg", "Device client created",
		"component", "device_client",
		"base_url", c.base,
		"max_conns", opts.MaxConns,
		"conn_wait", opts.ConnWait)
	return c, nil
}

// BaseURL returns the scheme, host and port requests are sent to
func (c *Client) BaseURL() string {
	return c.base
}

// Do performs the request. It never returns an error; every failure is a Result.
func (c *Client) Do(r Request) Result {
	if r.Method == "" {
		r.Method = fasthttp.MethodGet
	}
	if r.Timeout <= 0 {
		r.Timeout = 5 * time.Second
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()

	req.SetRequestURI(c.base + r.Path)
	req.Header.SetMethod(r.Method)
	req.Header.Set("User-Agent", c.userAgent)
	// Fresh connection per request so a wedged keep-alive socket cannot mask a dead device
	req.SetConnectionClose()
	if len(r.Body) > 0 {
		if r.ContentType != "" {
			req.Header.SetContentType(r.ContentType)
		}
		req.SetBody(r.Body)
	}

	issued := c.clock.Now()
	err := c.client.DoTimeout(req, resp, r.Timeout)
	result := Result{
		IssuedAt: issued,
		Duration: c.clock.Now() - issued,
	}

	if err != nil {
		result.Kind = classifyError(err)
		result.Err = err.Error()
	} else {
		result.Status = resp.StatusCode()
		if result.Status >= 200 && result.Status < 300 {
			result.Kind = core.OutcomeSuccess
		} else {
			result.Kind = core.OutcomeHTTPError
			result.Err = fmt.Sprintf("status %d", result.Status)
		}
		result.Stats = ParseStats(resp.Body())
	}

	fasthttp.ReleaseRequest(req)
	fasthttp.ReleaseResponse(resp)

	c.count(result.Kind)
	return result
}

// Probe issues a minimal GET used for liveness checks
func (c *Client) Probe(path string, timeout time.Duration) Result {
	return c.Do(Request{Method: fasthttp.MethodGet, Path: path, Timeout: timeout})
}

func (c *Client) count(kind core.OutcomeKind) {
	c.total.Add(1)
	switch kind {
	case core.OutcomeSuccess:
		c.successes.Add(1)
	case core.OutcomeHTTPError:
		c.httpErrors.Add(1)
	case core.OutcomeTimeout:
		c.timeouts.Add(1)
	default:
		c.connErrors.Add(1)
	}
}

// GetStats returns client statistics
func (c *Client) GetStats() map[string]any {
	return map[string]any{
		"base_url":          c.base,
		"total_requests":    c.total.Load(),
		"successes":         c.successes.Load(),
		"http_errors":       c.httpErrors.Load(),
		"timeouts":          c.timeouts.Load(),
		"connection_errors": c.connErrors.Load(),
	}
}

// classifyError separates slow-but-maybe-alive from hard connection failures
func classifyError(err error) core.OutcomeKind {
	// A request that waited out its budget for a pooled connection never
	// reached the device and is not evidence of a dead one
	if errors.Is(err, fasthttp.ErrTimeout) || errors.Is(err, fasthttp.ErrDialTimeout) ||
		errors.Is(err, fasthttp.ErrNoFreeConns) {
		return core.OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return core.OutcomeTimeout
	}
	return core.OutcomeConnectionError
}
