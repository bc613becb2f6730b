package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"example.com/fitlog/internal/auth"
	"example.com/fitlog/internal/domain"
)

// RouterConfig carries the cross-cutting settings of the HTTP surface.
type RouterConfig struct {
	Auth       auth.Config
	CORSOrigin string
	Logger     zerolog.Logger
	// ServeMetrics mounts /metrics on this router. Leave false when a dedicated
	// metrics listener is configured.
	ServeMetrics bool
}

// NewRouter builds the chi router exposing every endpoint.
func NewRouter(service *domain.Service, cfg RouterConfig) http.Handler {
	h := NewHandler(service, cfg.Logger)
	authMiddleware := auth.NewMiddleware(cfg.Auth, auth.SkipPaths("/healthz", "/metrics"))

	r := chi.NewRouter()
	r.Use(RequestLogging(cfg.Logger))
	r.Use(RequestMetrics)
	r.Use(CORS(cfg.CORSOrigin))
	r.Use(authMiddleware.Wrap)

	r.Get("/healthz", healthz)
	if cfg.ServeMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Get("/v1/me", h.me)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireIdentity)

		r.Post("/v1/profile", h.createProfile)
		r.Get("/v1/profile", h.getProfile)
		r.Put("/v1/profile", h.updateProfile)

		r.Post("/v1/activities", h.createActivity)
		r.Get("/v1/activities", h.listActivities)
		r.Get("/v1/activities/{id}", h.getActivity)
		r.Put("/v1/activities/{id}", h.updateActivity)
		r.Delete("/v1/activities/{id}", h.deleteActivity)

		r.Get("/v1/stats", h.statistics)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	})
	return r
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
