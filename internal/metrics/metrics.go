// Package metrics exposes Prometheus instrumentation for refreshes, cache
// lookups and the HTTP adapter.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Refresh outcomes
const (
	ResultSuccess   = "success"
	ResultNoop      = "noop"
	ResultFailure   = "failure"
	ResultContended = "contended"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so callers never need to check.
type Metrics struct {
	RefreshTotal        *prometheus.CounterVec
	RefreshDuration     prometheus.Histogram
	LastRefreshTime     prometheus.Gauge
	RepositoriesScanned prometheus.Gauge
	LanguagesCached     prometheus.Gauge

	CacheLookupsTotal *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all metrics on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "langstats_refresh_total",
				Help: "Total number of refresh attempts by result",
			},
			[]string{"result"},
		),
		RefreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "langstats_refresh_duration_seconds",
				Help:    "Duration of completed refresh runs in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
		),
		LastRefreshTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "langstats_last_refresh_timestamp_seconds",
				Help: "Unix time of the last successful refresh",
			},
		),
		RepositoriesScanned: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "langstats_repositories_scanned",
				Help: "Repositories walked for commits in the last successful refresh",
			},
		),
		LanguagesCached: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "langstats_languages_cached",
				Help: "Number of languages held in the cache",
			},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "langstats_cache_lookups_total",
				Help: "Total number of cache lookups by entry state",
			},
			[]string{"state"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "langstats_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "langstats_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.RefreshTotal,
		m.RefreshDuration,
		m.LastRefreshTime,
		m.RepositoriesScanned,
		m.LanguagesCached,
		m.CacheLookupsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// ObserveRefresh records one refresh attempt. Duration is only observed for
// runs that did work.
func (m *Metrics) ObserveRefresh(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(result).Inc()
	if result == ResultSuccess || result == ResultFailure {
		m.RefreshDuration.Observe(d.Seconds())
	}
}

// RecordSuccess updates the gauges after a successful refresh.
func (m *Metrics) RecordSuccess(at time.Time, scanned, languages int) {
	if m == nil {
		return
	}
	m.LastRefreshTime.Set(float64(at.Unix()))
	m.RepositoriesScanned.Set(float64(scanned))
	m.LanguagesCached.Set(float64(languages))
}

// ObserveLookup records the state of a cache lookup.
func (m *Metrics) ObserveLookup(state string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(state).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// responseWriter captures the status code written by a handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware instruments requests. route labels the request by its route
// template rather than the raw path, keeping label cardinality bounded.
func (m *Metrics) Middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			name := route(r)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, name, strconv.Itoa(rw.statusCode)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
		})
	}
}
