package http

import (
	"net/http"

	"github.com/dzekuza/pav4-sub004/internal/ratelimit"
	"github.com/dzekuza/pav4-sub004/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig selects the optional parts of the HTTP surface
type RouterConfig struct {
	AllowedOrigins []string
	Limiter        ratelimit.Limiter // nil disables rate limiting
	EnableMetrics  bool
	OpenAPIPath    string
}

// NewRouter wires handlers and middleware. Middleware runs outside-in:
// recovery, request id, logging, metrics, CORS.
func NewRouter(h *Handler, cfg RouterConfig, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(RecoveryMiddleware(log))
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	if cfg.EnableMetrics {
		r.Use(MetricsMiddleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))

	r.Get("/health/live", h.HealthCheck)
	r.Get("/health/ready", h.ReadinessCheck)
	if cfg.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.OpenAPIPath != "" {
		r.Get("/api/openapi.json", ServeOpenAPISpec(cfg.OpenAPIPath))
	}

	// Webhooks come from the platform's fixed egress and are not limited.
	r.Post("/webhooks/shopify", h.ShopifyWebhook)

	r.Group(func(r chi.Router) {
		if cfg.Limiter != nil {
			r.Use(RateLimitMiddleware(cfg.Limiter))
		}

		r.Get("/ref/{affiliateId}", h.Referral)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/analytics/orders", h.OrderAnalytics)
			r.Get("/analytics/journey", h.JourneyAnalytics)
			r.Get("/businesses/{businessId}/checkout-debug", h.CheckoutDebug)
			r.Post("/track", h.Track)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}
