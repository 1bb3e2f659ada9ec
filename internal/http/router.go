package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/event-offer-pricing/internal/idempotency"
	"github.com/robertarktes/event-offer-pricing/internal/observability"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl Limiter, quoteRate int, idemp *idempotency.Idempotency) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", h.Healthz)
		r.Get("/readyz", h.Readyz)

		r.Get("/events/{eventID}", h.GetEvent)
		r.Get("/events/{eventID}/offers", h.ListOffers)
		r.Get("/offers/{id}", h.GetOffer)
		r.Put("/offers/{id}", h.UpdateOffer)
		r.Delete("/offers/{id}", h.DeleteOffer)

		r.Group(func(r chi.Router) {
			r.Use(IdempotencyMiddleware(idemp, logger))
			r.Post("/events", h.CreateEvent)
			r.Post("/events/{eventID}/offers", h.CreateOffer)
			r.Post("/offers/{id}/toggle", h.ToggleOffer)
		})

		r.With(RateLimitMiddleware(rl, quoteRate)).Post("/events/{eventID}/quote", h.Quote)
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
