// FILE: crashwatch/src/internal/metrics/metrics.go
package metrics

import (
	"strconv"

	"crashwatch/src/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "crashwatch"

// Collector holds the run's Prometheus metrics on a private registry
type Collector struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	livenessUp      prometheus.Gauge
	probes          *prometheus.CounterVec
	crashes         prometheus.Counter
	recoveries      prometheus.Counter
	recoverySeconds prometheus.Histogram
	incidents       *prometheus.CounterVec
}

// New creates a collector. Counters for the log stream are read through
// logStats on every scrape; it may be nil.
func New(constLabels prometheus.Labels, logStats func() (lines, dropped uint64)) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "requests_total",
			Help:        "Workload requests by endpoint and result.",
			ConstLabels: constLabels,
		}, []string{"endpoint", "result", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "request_duration_seconds",
			Help:        "Workload request duration.",
			ConstLabels: constLabels,
			Buckets:     []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		livenessUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "liveness_up",
			Help:        "1 while the device is considered UP, 0 while DOWN.",
			ConstLabels: constLabels,
		}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "probes_total",
			Help:        "Liveness probes by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		crashes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "crash_events_total",
			Help:        "Crash events declared.",
			ConstLabels: constLabels,
		}),
		recoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "recoveries_total",
			Help:        "Crash events that recovered.",
			ConstLabels: constLabels,
		}),
		recoverySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "recovery_latency_seconds",
			Help:        "Time from crash declaration to the first successful probe.",
			ConstLabels: constLabels,
			Buckets:     []float64{1, 2, 5, 10, 20, 30, 60, 120},
		}),
		incidents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "incidents_total",
			Help:        "Classified incidents by category and severity.",
			ConstLabels: constLabels,
		}, []string{"category", "severity"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.requests, c.requestDuration, c.livenessUp, c.probes,
		c.crashes, c.recoveries, c.recoverySeconds, c.incidents,
	)

	if logStats != nil {
		c.registry.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "log_lines_total",
				Help:        "Device log lines read.",
				ConstLabels: constLabels,
			}, func() float64 { lines, _ := logStats(); return float64(lines) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace:   namespace,
				Name:        "log_lines_dropped_total",
				Help:        "Device log lines dropped on queue overflow.",
				ConstLabels: constLabels,
			}, func() float64 { _, dropped := logStats(); return float64(dropped) }),
		)
	}

	c.livenessUp.Set(1)
	return c
}

// Registry exposes the private registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveOutcome records a workload request
func (c *Collector) ObserveOutcome(o core.RequestOutcome) {
	status := ""
	if o.Status != 0 {
		status = strconv.Itoa(o.Status)
	}
	c.requests.WithLabelValues(o.Endpoint, string(o.Kind), status).Inc()
	if o.Succeeded() {
		c.requestDuration.WithLabelValues(o.Endpoint).Observe(o.Duration.Seconds())
	}
}

// ObserveProbe records a liveness sample
func (c *Collector) ObserveProbe(s core.LivenessSample) {
	c.probes.WithLabelValues(string(s.Kind)).Inc()
}

// ObserveTransition tracks UP/DOWN changes
func (c *Collector) ObserveTransition(to core.LivenessState, crash core.CrashEvent) {
	if to == core.StateDown {
		c.livenessUp.Set(0)
		c.crashes.Inc()
		return
	}
	c.livenessUp.Set(1)
	c.recoveries.Inc()
	c.recoverySeconds.Observe(crash.RecoveryLatency.Seconds())
}

// ObserveIncident counts a classified incident
func (c *Collector) ObserveIncident(inc core.Incident) {
	c.incidents.WithLabelValues(string(inc.Category), string(inc.Severity)).Inc()
}
