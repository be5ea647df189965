// Package httpapi exposes the statistics service over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/spiffcs/langstats/internal/duration"
	"github.com/spiffcs/langstats/internal/log"
	"github.com/spiffcs/langstats/internal/metrics"
	"github.com/spiffcs/langstats/internal/model"
	"github.com/spiffcs/langstats/internal/service"
)

// StatsService is the part of the service the handlers use.
type StatsService interface {
	GetStats(ctx context.Context, language, alias string) []model.LanguagePoint
	Status() service.Status
}

// CacheSettings describes the cache in the status response.
type CacheSettings struct {
	TTL           string `json:"ttl"`
	RefreshPolicy string `json:"refreshPolicy"`
	Schedule      string `json:"schedule,omitempty"`
}

// StatusResponse is the body of GET /api/github/status.
type StatusResponse struct {
	Status         string        `json:"status"`
	Timestamp      time.Time     `json:"timestamp"`
	Username       string        `json:"username"`
	CacheSettings  CacheSettings `json:"cacheSettings"`
	LastComputedAt *time.Time    `json:"lastComputedAt"`
	Refreshing     bool          `json:"refreshing"`
	Stale          bool          `json:"stale"`
	Languages      int           `json:"languages"`
}

// Handlers serves the statistics API.
type Handlers struct {
	svc     StatsService
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewHandlers creates handlers over svc. m may be nil.
func NewHandlers(svc StatsService, m *metrics.Metrics) *Handlers {
	return &Handlers{svc: svc, metrics: m, now: time.Now}
}

// RegisterRoutes registers the API routes on r.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/github/language-stats/{languageName}", h.getLanguageStats).Methods(http.MethodGet)
	r.HandleFunc("/api/github/status", h.getStatus).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)
	}
}

// NewRouter builds a router with all routes and request instrumentation.
func NewRouter(svc StatsService, m *metrics.Metrics) *mux.Router {
	r := mux.NewRouter()
	NewHandlers(svc, m).RegisterRoutes(r)
	r.Use(m.Middleware(routeName))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteErrorMessage(w, http.StatusNotFound, "not found")
	})
	return r
}

// routeName labels a request by its matched route template.
func routeName(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return "unmatched"
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return "unmatched"
	}
	return tpl
}

func (h *Handlers) getLanguageStats(w http.ResponseWriter, r *http.Request) {
	language := mux.Vars(r)["languageName"]
	alias := r.URL.Query().Get("alias")

	series := h.svc.GetStats(r.Context(), language, alias)
	if series == nil {
		series = []model.LanguagePoint{}
	}
	log.Debug("language stats served", "language", language, "alias", alias, "points", len(series))

	if err := WriteJSON(w, http.StatusOK, series); err != nil {
		log.Debug("failed to write response", "error", err)
	}
}

func (h *Handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	st := h.svc.Status()

	resp := StatusResponse{
		Status:    "ok",
		Timestamp: h.now().UTC(),
		Username:  st.Username,
		CacheSettings: CacheSettings{
			TTL:           duration.Format(st.TTL),
			RefreshPolicy: st.RefreshPolicy,
			Schedule:      st.Schedule,
		},
		Refreshing: st.Refreshing,
		Stale:      st.Stale,
		Languages:  st.Languages,
	}
	if !st.LastComputedAt.IsZero() {
		at := st.LastComputedAt.UTC()
		resp.LastComputedAt = &at
	}

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		log.Debug("failed to write response", "error", err)
	}
}

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
