// Package metrics exposes Prometheus metrics for analysis runs.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithRegistry sets the registry metrics are registered on and served from.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// Manager owns the advisor metrics. A nil *Manager is a valid no-op.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	runs            *prometheus.CounterVec
	runFailures     *prometheus.CounterVec
	runDuration     prometheus.Histogram
	narrativeSource *prometheus.CounterVec
	overallScore    prometheus.Histogram

	nodeDuration *prometheus.HistogramVec
	nodeErrors   *prometheus.CounterVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager registers every metric on a fresh registry unless one is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "cortex",
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.runs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "advisor",
		Name:      "runs_total",
		Help:      "Completed analyses by strategy and rating",
	}, []string{"strategy", "rating"})

	m.runFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "advisor",
		Name:      "run_failures_total",
		Help:      "Analyses aborted by a fatal error, by stage",
	}, []string{"stage"})

	m.runDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "advisor",
		Name:      "run_duration_seconds",
		Help:      "Wall time of one analysis",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	m.narrativeSource = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "advisor",
		Name:      "narratives_total",
		Help:      "Narratives by source (model or fallback)",
	}, []string{"source"})

	m.overallScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "advisor",
		Name:      "overall_score",
		Help:      "Distribution of overall scores",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})

	m.nodeDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "narrative",
		Name:      "node_duration_seconds",
		Help:      "Duration of narrative graph nodes",
		Buckets:   prometheus.DefBuckets,
	}, []string{"node"})

	m.nodeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "narrative",
		Name:      "node_errors_total",
		Help:      "Failed narrative graph nodes",
	}, []string{"node"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status code",
	}, []string{"route", "code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
}

// ObserveRun records one completed analysis.
func (m *Manager) ObserveRun(strategy, rating, source string, overall float64, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(strategy, rating).Inc()
	m.narrativeSource.WithLabelValues(source).Inc()
	m.overallScore.Observe(overall)
	m.runDuration.Observe(d.Seconds())
}

// RunFailed counts an analysis aborted at stage.
func (m *Manager) RunFailed(stage string) {
	if m == nil {
		return
	}
	m.runFailures.WithLabelValues(stage).Inc()
}

// ObserveNode implements narrative.NodeObserver.
func (m *Manager) ObserveNode(name string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.nodeDuration.WithLabelValues(name).Observe(d.Seconds())
	if err != nil {
		m.nodeErrors.WithLabelValues(name).Inc()
	}
}

// ObserveHTTP records a served request.
func (m *Manager) ObserveHTTP(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
