// Package metrics holds the proxier's prometheus collectors: a struct of promauto-built
// collectors built by a single constructor and exposed over a dedicated HTTP server. Collectors
// register against a per-instance prometheus.Registry rather than the package-global
// DefaultRegisterer, so a test can build several session managers (each with their own metrics) in
// the same process without a duplicate-collector panic.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clientproxier"

// SessionMetrics are the observability surface for the session manager and the runtime-env
// provisioner: ports-in-use/free and active-backend gauges, and counters for the session
// lifecycle events (created, reconnected, reaped, start failures).
type SessionMetrics struct {
	Registry *prometheus.Registry

	PortsInUse          prometheus.Gauge
	PortsFree           prometheus.Gauge
	ActiveBackends      prometheus.Gauge
	SessionsCreated     prometheus.Counter
	SessionsReconnected prometheus.Counter
	SessionsReaped      prometheus.Counter
	SessionsFailed      *prometheus.CounterVec
	RuntimeEnvDuration  prometheus.Histogram
}

// New builds a SessionMetrics backed by a fresh registry covering the full port range [portLow,
// portHigh): PortsFree starts at the pool's full size, decremented as ports are acquired.
func New(portLow, portHigh int) *SessionMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &SessionMetrics{
		Registry: reg,
		PortsInUse: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ports_in_use",
			Help:      "Backend ports currently assigned to a client.",
		}),
		PortsFree: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ports_free",
			Help:      "Backend ports currently available in the pool.",
		}),
		ActiveBackends: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_backends",
			Help:      "Backends currently present in the session table.",
		}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total new Datapath sessions registered.",
		}),
		SessionsReconnected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_reconnected_total",
			Help:      "Total Datapath streams that reconnected within their grace period.",
		}),
		SessionsReaped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_reaped_total",
			Help:      "Total backends removed by the reaper after process exit.",
		}),
		SessionsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_start_failures_total",
			Help:      "Total session start failures by cause.",
		}, []string{"reason"}),
		RuntimeEnvDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "runtime_env_provision_duration_seconds",
			Help:      "Time spent in the runtime-env provisioner, including retries.",
			Buckets:   []float64{.1, .5, 1, 2, 4, 8, 16, 30},
		}),
	}
	m.PortsFree.Set(float64(portHigh - portLow))
	return m
}

// Handler returns the promhttp handler serving this instance's registry.
func (m *SessionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveRuntimeEnvDuration records how long a runtime-env provisioning call took, including retries.
func (m *SessionMetrics) ObserveRuntimeEnvDuration(d time.Duration) {
	m.RuntimeEnvDuration.Observe(d.Seconds())
}
