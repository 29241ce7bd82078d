package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/careerlink/notifications/internal/handler"
	customMiddleware "github.com/careerlink/notifications/internal/middleware"
)

func NewRouter(
	h *handler.NotificationHandler,
	sh *handler.StreamHandler,
	healthHandler *handler.HealthHandler,
	jwtSecret string,
) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(customMiddleware.Metrics)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(customMiddleware.Auth(jwtSecret))

		r.Route("/notifications", func(r chi.Router) {
			r.With(middleware.Timeout(30 * time.Second)).Group(func(r chi.Router) {
				r.Get("/", h.List)
				r.Get("/unread-count", h.UnreadCount)
				r.Put("/{id}/read", h.MarkRead)
				r.Put("/read-all", h.MarkAllRead)
				r.Put("/read", h.MarkPageRead)
			})
			// Long-lived SSE connection; no request timeout here.
			r.Get("/stream", sh.Stream)
		})

		// Internal producer boundary; callers are trusted services.
		r.With(middleware.Timeout(30 * time.Second)).
			Post("/internal/notifications", h.Create)
	})

	// Health & metrics
	r.Get("/healthz", healthHandler.Liveness)
	r.Get("/readyz", healthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
