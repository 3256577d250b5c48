package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"goflare.io/kvrest/internal/config"
)

// Routes builds the router. metricsHandler may be nil.
func (h *Handler) Routes(m *Middleware, sec config.SecurityConfig, metricsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.CORS(sec.CORSAllowedOrigins))

	r.Get("/healthz", h.Healthz)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	cache := func(r chi.Router) {
		r.Use(m.RateLimit(sec.RateLimitRPM))
		r.Use(m.Timeout(sec.RequestTimeout))

		r.Post("/add", h.AddCache)
		r.Get("/get", h.GetCache)
		r.Delete("/delete", h.DeleteCache)
		r.Post("/expire", h.Expire)
		r.Get("/ttl", h.TTL)
		r.Get("/exists", h.Exists)
	}
	r.Route("/cache", cache)
	// legacy prefix used by older clients
	r.Route("/redis/cache", cache)

	return r
}
