// Package metrics wires the gateway's operational counters and
// histograms to Prometheus, in the promauto-constructed-on-a-custom-
// registry style used for operational dashboards across the example
// pack.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signway/signway"
)

// Metrics holds every Prometheus collector the gateway reports.
type Metrics struct {
	registry *prometheus.Registry

	VerifyOutcomes    *prometheus.CounterVec
	ForwardOutcomes   *prometheus.CounterVec
	BytesForwarded    prometheus.Counter
	ActiveStreams     prometheus.Gauge
	UpstreamLatency   *prometheus.HistogramVec
	ConcurrencyDenied prometheus.Counter
}

// New builds a Metrics instance registered to a fresh prometheus
// registry, independent of the global default registry so a process
// embedding this package twice (tests, multiple listeners) never hits
// a duplicate-registration panic.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		VerifyOutcomes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "signway",
			Subsystem: "verify",
			Name:      "outcomes_total",
			Help:      "Count of verification outcomes by failure kind (\"none\" on success).",
		}, []string{"kind"}),
		ForwardOutcomes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "signway",
			Subsystem: "forward",
			Name:      "outcomes_total",
			Help:      "Count of forwarding outcomes by failure kind (\"none\" on success).",
		}, []string{"kind"}),
		BytesForwarded: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "signway",
			Subsystem: "forward",
			Name:      "bytes_total",
			Help:      "Total response bytes streamed from upstreams to callers.",
		}),
		ActiveStreams: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "signway",
			Subsystem: "forward",
			Name:      "active_streams",
			Help:      "Number of forwarding requests currently streaming a response.",
		}),
		UpstreamLatency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "signway",
			Subsystem: "forward",
			Name:      "upstream_latency_seconds",
			Help:      "Time from opening the outbound request to the end of streaming the upstream response.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		ConcurrencyDenied: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "signway",
			Subsystem: "admission",
			Name:      "concurrency_denied_total",
			Help:      "Requests rejected because a client was at its in-flight ceiling.",
		}),
	}
	return m
}

// Handler returns the HTTP handler serving this Metrics instance's
// registry in the Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveVerify records a verification outcome.
func (m *Metrics) ObserveVerify(kind signway.FailureKind) {
	m.VerifyOutcomes.WithLabelValues(kind.String()).Inc()
}

// ObserveForward records a forwarding outcome, its byte count, and how
// long the upstream round trip plus streaming took.
func (m *Metrics) ObserveForward(kind signway.ForwardFailureKind, bytesForwarded int64, duration time.Duration) {
	label := forwardKindLabel(kind)
	m.ForwardOutcomes.WithLabelValues(label).Inc()
	if bytesForwarded > 0 {
		m.BytesForwarded.Add(float64(bytesForwarded))
	}
	m.UpstreamLatency.WithLabelValues(label).Observe(duration.Seconds())
}

// ObserveConcurrencyDenied records a request rejected because its
// client was already at its in-flight ceiling.
func (m *Metrics) ObserveConcurrencyDenied() {
	m.ConcurrencyDenied.Inc()
}

// StreamStarted marks a forwarding request as actively streaming a
// response, for the duration of the upstream round trip and body copy.
func (m *Metrics) StreamStarted() {
	m.ActiveStreams.Inc()
}

// StreamEnded marks a previously-started stream as finished. Callers
// must pair every StreamStarted with exactly one StreamEnded.
func (m *Metrics) StreamEnded() {
	m.ActiveStreams.Dec()
}

func forwardKindLabel(kind signway.ForwardFailureKind) string {
	switch kind {
	case signway.ForwardFailureNone:
		return "none"
	case signway.ForwardFailureConnect:
		return "connect"
	case signway.ForwardFailureTimeout:
		return "timeout"
	case signway.ForwardFailureIO:
		return "io"
	default:
		return "unknown"
	}
}
