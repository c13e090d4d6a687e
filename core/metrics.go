package core

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the proxy.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestsBlocked *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	upstreamErrors  prometheus.Counter
	addonPanics     *prometheus.CounterVec
	activePatterns  prometheus.Gauge
	running         prometheus.Gauge
	runsTotal       *prometheus.CounterVec

	registry *prometheus.Registry
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streamline",
			Name:      "requests_total",
			Help:      "Total number of completed proxy exchanges.",
		}, []string{"method", "scheme", "status"}),

		requestsBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streamline",
			Name:      "requests_blocked_total",
			Help:      "Requests short-circuited by a block pattern.",
		}, []string{"pattern"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "streamline",
			Name:      "request_duration_seconds",
			Help:      "Time from request interception to response completion.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "status"}),

		upstreamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streamline",
			Name:      "upstream_errors_total",
			Help:      "Exchanges that ended without an upstream response.",
		}),

		addonPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streamline",
			Name:      "addon_panics_total",
			Help:      "Recovered panics in pipeline stages.",
		}, []string{"addon"}),

		activePatterns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "streamline",
			Name:      "active_patterns",
			Help:      "Number of patterns in the running proxy's block set.",
		}),

		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "streamline",
			Name:      "proxy_running",
			Help:      "1 while a proxy run is active.",
		}),

		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streamline",
			Name:      "proxy_runs_total",
			Help:      "Proxy runs by terminal state.",
		}, []string{"state"}),

		registry: reg,
	}

	reg.MustRegister(
		m.requestsTotal,
		m.requestsBlocked,
		m.requestDuration,
		m.upstreamErrors,
		m.addonPanics,
		m.activePatterns,
		m.running,
		m.runsTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordRequest(method, scheme string, status int) {
	m.requestsTotal.WithLabelValues(method, scheme, strconv.Itoa(status)).Inc()
}

func (m *Metrics) RecordBlocked(pattern string) {
	m.requestsBlocked.WithLabelValues(pattern).Inc()
}

func (m *Metrics) RecordRequestDuration(method string, statusCode int, d time.Duration) {
	m.requestDuration.WithLabelValues(method, strconv.Itoa(statusCode)).Observe(d.Seconds())
}

func (m *Metrics) RecordUpstreamError() {
	m.upstreamErrors.Inc()
}

func (m *Metrics) RecordAddonPanic(addon string) {
	m.addonPanics.WithLabelValues(addon).Inc()
}

func (m *Metrics) RunStarted(patterns int) {
	m.running.Set(1)
	m.activePatterns.Set(float64(patterns))
}

func (m *Metrics) RunEnded(state string) {
	m.running.Set(0)
	m.activePatterns.Set(0)
	m.runsTotal.WithLabelValues(state).Inc()
}

// MetricsAddon feeds completed exchanges into Metrics.
type MetricsAddon struct {
	BaseAddon
	metrics *Metrics
}

func NewMetricsAddon(m *Metrics) *MetricsAddon {
	return &MetricsAddon{metrics: m}
}

func (a *MetricsAddon) Name() string { return "metrics" }

func (a *MetricsAddon) OnResponse(f *Flow) {
	if a.metrics == nil {
		return
	}
	if f.Failed() {
		a.metrics.RecordUpstreamError()
		return
	}
	scheme := "http"
	if f.Request != nil && f.Request.URL != nil && f.Request.URL.Scheme != "" {
		scheme = f.Request.URL.Scheme
	}
	a.metrics.RecordRequest(flowMethod(f), scheme, f.Response.StatusCode)
	if f.Blocked {
		a.metrics.RecordBlocked(f.MatchedPattern)
	}
	if !f.Started.IsZero() {
		a.metrics.RecordRequestDuration(flowMethod(f), f.Response.StatusCode, time.Since(f.Started))
	}
}
