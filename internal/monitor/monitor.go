// Package monitor exposes the service's Prometheus metrics.
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MonitorServiceInterface interface {
	MonitorEnqueuedPayout(provider string)
	MonitorDispatch(provider, outcome string, duration time.Duration)
	MonitorBatch(processed, succeeded, failed int)
	MonitorHTTPRequest(method, route string, statusCode int, duration time.Duration)
	HTTPHandler() http.Handler
}

// MonitorService collects and serves the Prometheus metrics for the payout pipeline.
type MonitorService struct {
	registry *prometheus.Registry

	enqueuedCounter     *prometheus.CounterVec
	dispatchCounter     *prometheus.CounterVec
	dispatchDuration    *prometheus.HistogramVec
	batchCounter        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

func NewMonitorService() *MonitorService {
	m := &MonitorService{
		registry: prometheus.NewRegistry(),
		enqueuedCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payout", Name: "enqueued_total",
			Help: "Total payout requests accepted into the queue.",
		}, []string{"provider"}),
		dispatchCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payout", Name: "dispatch_total",
			Help: "Total dispatch attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "payout", Name: "dispatch_duration_seconds",
			Help:    "Provider dispatch call latency.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		batchCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payout", Name: "batch_items_total",
			Help: "Total batch items by outcome.",
		}, []string{"outcome"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "http", Name: "request_duration_seconds",
			Help: "HTTP request latency by route and status.",
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.enqueuedCounter,
		m.dispatchCounter,
		m.dispatchDuration,
		m.batchCounter,
		m.httpRequestDuration,
	)
	return m
}

func (m *MonitorService) MonitorEnqueuedPayout(provider string) {
	m.enqueuedCounter.WithLabelValues(provider).Inc()
}

func (m *MonitorService) MonitorDispatch(provider, outcome string, duration time.Duration) {
	m.dispatchCounter.WithLabelValues(provider, outcome).Inc()
	m.dispatchDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *MonitorService) MonitorBatch(processed, succeeded, failed int) {
	m.batchCounter.WithLabelValues("processed").Add(float64(processed))
	m.batchCounter.WithLabelValues("succeeded").Add(float64(succeeded))
	m.batchCounter.WithLabelValues("failed").Add(float64(failed))
}

func (m *MonitorService) MonitorHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	m.httpRequestDuration.WithLabelValues(method, route, http.StatusText(statusCode)).Observe(duration.Seconds())
}

func (m *MonitorService) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

var _ MonitorServiceInterface = (*MonitorService)(nil)
