// Package metrics exports chat and persistence metrics in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kataba"

var latencyBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}

// Recorder owns a private registry so tests and multiple servers do not
// collide on the global one.
type Recorder struct {
	registry *prometheus.Registry

	chatRequests      *prometheus.CounterVec
	completionLatency *prometheus.HistogramVec
	persistFailures   *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.chatRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Chat messages handled, by caller mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	r.completionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "completion",
			Name:      "latency_seconds",
			Help:      "Completion provider latency in seconds",
			Buckets:   latencyBuckets,
		},
		[]string{"status"},
	)

	r.persistFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversations",
			Name:      "persist_failures_total",
			Help:      "Background conversation saves that failed",
		},
		[]string{"operation"},
	)

	r.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status code",
		},
		[]string{"method", "code"},
	)

	r.registry.MustRegister(
		r.chatRequests,
		r.completionLatency,
		r.persistFailures,
		r.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ChatOutcome(mode, outcome string) {
	r.chatRequests.WithLabelValues(mode, outcome).Inc()
}

func (r *Recorder) ObserveCompletion(d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.completionLatency.WithLabelValues(status).Observe(d.Seconds())
}

func (r *Recorder) PersistFailed(op string) {
	r.persistFailures.WithLabelValues(op).Inc()
}

// InstrumentHandler counts requests served by next.
func (r *Recorder) InstrumentHandler(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(r.httpRequests, next)
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
