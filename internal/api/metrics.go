package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics instruments the service boundary only. The pure analysis core
// (parser, session, bias, labeler, temper, replay, elo, coach,
// orchestrator) stays instrumentation-free per spec.md §5.
type metrics struct {
	registry          *prometheus.Registry
	reportsProcessed prometheus.Counter
	sessionDuration   prometheus.Histogram
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

func newMetrics(registry *prometheus.Registry) *metrics {
	factory := promauto.With(registry)
	return &metrics{
		registry: registry,
		reportsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "temper_reports_processed_total",
			Help: "Total number of TemperReports produced.",
		}),
		sessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "temper_session_duration_seconds",
			Help:    "Wall-clock time to analyze a single session.",
			Buckets: prometheus.DefBuckets,
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "temper_http_requests_total",
			Help: "Total HTTP requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "temper_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}
