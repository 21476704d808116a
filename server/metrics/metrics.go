// Package metrics holds the prometheus collectors of the bridge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dspbridge"

// Request kinds used as label values
const (
	KindWrite    = "write"
	KindSafeload = "safeload"
	KindRead     = "read"
	KindUnknown  = "unknown"
)

// Metrics groups every collector. Each instance owns its registry so tests
// and multiple servers in one process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	Requests           *prometheus.CounterVec
	PayloadBytes       *prometheus.CounterVec
	BusErrors          *prometheus.CounterVec
	SafeloadViolations prometheus.Counter
	UnknownCommands    prometheus.Counter
	ActiveConnections  prometheus.Gauge
	Connections        prometheus.Counter
	ConnectionFaults   prometheus.Counter
	ReadLatency        prometheus.Histogram
}

// New registers all collectors plus the go and process collectors on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dsp",
			Name:      "requests_total",
			Help:      "Requests executed against the DSP, by kind.",
		}, []string{"kind"}),
		PayloadBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dsp",
			Name:      "payload_bytes_total",
			Help:      "Register bytes moved over the bus, by kind.",
		}, []string{"kind"}),
		BusErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dsp",
			Name:      "bus_errors_total",
			Help:      "Failed bus transactions, by kind.",
		}, []string{"kind"}),
		SafeloadViolations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dsp",
			Name:      "safeload_violations_total",
			Help:      "Safeload requests rejected for size or alignment.",
		}),
		UnknownCommands: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "unknown_commands_total",
			Help:      "Headers with an unrecognized command byte.",
		}),
		ActiveConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "active_connections",
			Help:      "Currently open bridge connections.",
		}),
		Connections: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "connections_total",
			Help:      "Accepted bridge connections.",
		}),
		ConnectionFaults: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "connection_faults_total",
			Help:      "Connections closed because of a truncated or oversized frame.",
		}),
		ReadLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "read_latency_seconds",
			Help:      "Time from a read header to its response being written.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
