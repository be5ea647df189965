package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRefresh(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveRefresh(ResultSuccess, 2*time.Second)
	m.ObserveRefresh(ResultContended, 0)
	m.ObserveRefresh(ResultContended, 0)

	expected := `
# HELP langstats_refresh_total Total number of refresh attempts by result
# TYPE langstats_refresh_total counter
langstats_refresh_total{result="contended"} 2
langstats_refresh_total{result="success"} 1
`
	require.NoError(t, testutil.CollectAndCompare(m.RefreshTotal, strings.NewReader(expected)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RefreshDuration))
}

func TestRecordSuccess(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	at := time.Unix(1700000000, 0)

	m.RecordSuccess(at, 12, 3)

	assert.Equal(t, float64(1700000000), testutil.ToFloat64(m.LastRefreshTime))
	assert.Equal(t, float64(12), testutil.ToFloat64(m.RepositoriesScanned))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.LanguagesCached))
}

func TestObserveLookup(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveLookup("fresh")
	m.ObserveLookup("stale")
	m.ObserveLookup("fresh")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("fresh")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("stale")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRefresh(ResultFailure, time.Second)
	m.RecordSuccess(time.Now(), 1, 1)
	m.ObserveLookup("absent")

	h := m.Middleware(func(*http.Request) string { return "x" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	h := m.Middleware(func(*http.Request) string { return "/api/github/status" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}),
	)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/github/status", nil))

	expected := `
# HELP langstats_http_requests_total Total number of HTTP requests
# TYPE langstats_http_requests_total counter
langstats_http_requests_total{method="GET",route="/api/github/status",status="404"} 1
`
	require.NoError(t, testutil.CollectAndCompare(m.HTTPRequestsTotal, strings.NewReader(expected)))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "langstats_http_requests_total")
}
