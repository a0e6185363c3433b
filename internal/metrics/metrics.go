// Package metrics holds the prometheus collectors exported by the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shortlink"

// Metrics groups the service collectors. A nil *Metrics is valid and records
// nothing, so components can be built without instrumentation in tests.
type Metrics struct {
	registry *prometheus.Registry

	rateLimitDecisions  *prometheus.CounterVec
	rateLimitErrors     prometheus.Counter
	requestOutcomes     *prometheus.CounterVec
	codeSpaceExhausted  prometheus.Counter
	analyticsRecorded   prometheus.Counter
	analyticsDropped    prometheus.Counter
	analyticsFailed     prometheus.Counter
	analyticsQueueDepth prometheus.Gauge
	cacheLookups        *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		rateLimitDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limit decisions by identity class and result.",
		}, []string{"class", "result"}),
		rateLimitErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_backend_errors_total",
			Help:      "Rate limit backend failures.",
		}),
		requestOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_outcomes_total",
			Help:      "Terminal outcomes of shorten, redirect and stats requests.",
		}, []string{"operation", "outcome"}),
		codeSpaceExhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_space_exhausted_total",
			Help:      "Shorten requests where every generated code collided.",
		}),
		analyticsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_recorded_total",
			Help:      "Visits persisted by the analytics recorder.",
		}),
		analyticsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_dropped_total",
			Help:      "Visits dropped because the analytics queue was full or closed.",
		}),
		analyticsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analytics_failed_total",
			Help:      "Visits that failed to persist.",
		}),
		analyticsQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analytics_queue_depth",
			Help:      "Visits waiting in the analytics queue.",
		}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Short URL cache lookups by result.",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RateLimitDecision(class string, allowed bool) {
	if m == nil {
		return
	}

	result := "allowed"
	if !allowed {
		result = "rejected"
	}

	m.rateLimitDecisions.WithLabelValues(class, result).Inc()
}

func (m *Metrics) RateLimitError() {
	if m == nil {
		return
	}
	m.rateLimitErrors.Inc()
}

func (m *Metrics) RequestOutcome(operation, outcome string) {
	if m == nil {
		return
	}
	m.requestOutcomes.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) CodeSpaceExhausted() {
	if m == nil {
		return
	}
	m.codeSpaceExhausted.Inc()
}

func (m *Metrics) AnalyticsRecorded() {
	if m == nil {
		return
	}
	m.analyticsRecorded.Inc()
}

func (m *Metrics) AnalyticsDropped() {
	if m == nil {
		return
	}
	m.analyticsDropped.Inc()
}

func (m *Metrics) AnalyticsFailed() {
	if m == nil {
		return
	}
	m.analyticsFailed.Inc()
}

func (m *Metrics) AnalyticsQueueDepth(n int) {
	if m == nil {
		return
	}
	m.analyticsQueueDepth.Set(float64(n))
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}

	result := "hit"
	if !hit {
		result = "miss"
	}

	m.cacheLookups.WithLabelValues(result).Inc()
}
