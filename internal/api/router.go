package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"fieldops-gateway/internal/auth"
)

// requestLogger emits one structured access log line per request.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := hlog.NewHandler(log)
		access := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("duration", duration).
				Msg("request")
		})
		return h(access(next))
	}
}

// NewDataRouter serves the device-facing ingest endpoints. Everything under
// /ingest requires the device shared secret.
func NewDataRouter(h *Handler, am *auth.Manager, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Group(func(r chi.Router) {
		r.Use(am.RequireDeviceToken)
		r.Post("/ingest/telemetry", h.HandleTelemetryIngest)
		r.Post("/ingest/scada", h.HandleScadaIngest)
	})
	r.Get("/healthz", h.HandleHealthz)

	return r
}

// NewDashboardRouter serves the operator dashboards and mobile clients:
// the event stream, queries, crew endpoints and login.
func NewDashboardRouter(h *Handler, am *auth.Manager, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", auth.MobileKeyHeader},
	}))

	r.Get("/events", h.HandleEvents)
	r.Get("/ws", h.HandleWS)
	r.Get("/history/{asset_id}", h.HandleHistory)
	r.Get("/advisories", h.HandleAdvisories)

	r.Route("/crew", func(r chi.Router) {
		r.Get("/", h.HandleCrewList)
		r.With(am.RequireJWT).Post("/", h.HandleCrewCreate)
		r.With(am.RequireMobileKey).Post("/position", h.HandleCrewPosition)
		r.Get("/{crew_id}", h.HandleCrewGet)
		r.Get("/{crew_id}/track", h.HandleCrewTrack)
	})

	r.Route("/sites", func(r chi.Router) {
		r.Get("/", h.HandleSiteList)
		r.Get("/{site_id}", h.HandleSiteGet)
		r.Get("/{site_id}/route", h.HandleSiteRoute)
	})

	r.Post("/auth/login", h.HandleLogin)
	r.Get("/healthz", h.HandleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
