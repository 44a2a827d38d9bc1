// Package metrics exposes request and worker pool metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pmflow"

// Metrics holds the collectors of the process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration prometheus.Histogram
	uploads  prometheus.Counter
	workers  prometheus.Gauge
	recycled *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests handled by the workers, by status code.",
		}, []string{"code"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time spent handling a request in a worker.",
			Buckets:   prometheus.DefBuckets,
		}),
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_files_total",
			Help:      "Uploaded files received.",
		}),
		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers",
			Help:      "Workers currently alive.",
		}),
		recycled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workers_recycled_total",
			Help:      "Workers destroyed, by reason.",
		}, []string{"reason"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.uploads,
		m.workers,
		m.recycled,
	)

	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(status int, d time.Duration) {
	if m == nil {
		return
	}

	m.requests.WithLabelValues(strconv.Itoa(status)).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) ObserveUploads(n int) {
	if m == nil || n <= 0 {
		return
	}

	m.uploads.Add(float64(n))
}

func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}

	m.workers.Inc()
}

func (m *Metrics) WorkerStopped(reason string) {
	if m == nil {
		return
	}

	m.workers.Dec()
	m.recycled.WithLabelValues(reason).Inc()
}
