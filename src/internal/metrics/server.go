// FILE: crashwatch/src/internal/metrics/server.go
package metrics

import (
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"crashwatch/src/internal/version"

	"github.com/lixenwraith/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Server exposes /metrics for Prometheus and /status for a JSON snapshot of
// the running session
type Server struct {
	listen    string
	server    *fasthttp.Server
	listener  net.Listener
	metrics   fasthttp.RequestHandler
	status    func() map[string]any
	logger    *log.Logger
	startTime time.Time
	requests  atomic.Uint64
}

// NewServer creates a metrics server. status may be nil.
func NewServer(listen string, c *Collector, status func() map[string]any, logger *log.Logger) *Server {
	s := &Server{
		listen: listen,
		metrics: fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(c.Registry(), promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		})),
		status:    status,
		logger:    logger,
		startTime: time.Now(),
	}
	s.server = &fasthttp.Server{
		Handler:      s.requestHandler,
		Name:         "crashwatch",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.listen, err)
	}
	s.listener = ln

	go func() {
		if err := s.server.Serve(ln); err != nil {
			s.logger.Error("msg", "Metrics server failed",
				"component", "metrics_server",
				"listen", s.listen,
				"error", err)
		}
	}()

	s.logger.Info("msg", "Metrics server started",
		"component", "metrics_server",
		"listen", ln.Addr().String())
	return nil
}

// Addr returns the bound address, useful when listening on port 0
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.listen
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down
func (s *Server) Stop() {
	if s.listener == nil {
		return
	}
	if err := s.server.Shutdown(); err != nil {
		s.logger.Warn("msg", "Metrics server shutdown error",
			"component", "metrics_server",
			"error", err)
	}
	s.logger.Debug("msg", "Metrics server stopped",
		"component", "metrics_server",
		"requests", s.requests.Load())
}

func (s *Server) requestHandler(ctx *fasthttp.RequestCtx) {
	s.requests.Add(1)

	switch string(ctx.Path()) {
	case "/metrics":
		s.metrics(ctx)
	case "/status":
		s.handleStatus(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		ctx.SetContentType("application/json")
		json.NewEncoder(ctx).Encode(map[string]any{
			"error":     "Not Found",
			"endpoints": []string{"/metrics", "/status"},
		})
	}
}

func (s *Server) handleStatus(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("application/json")

	status := map[string]any{
		"service": "crashwatch",
		"version": version.String(),
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	}
	if s.status != nil {
		status["session"] = s.status()
	}

	data, _ := json.MarshalIndent(status, "", "  ")
	ctx.SetBody(data)
}
