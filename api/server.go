/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. Durations:  Prometheus request latency per route

ROUTE GROUPS:
  /api/users/*       Account stats
  /api/activities/*  Activity catalog with claim state
  /api/claim-points  Point claims
  /api/redeem-reward Reward redemptions
  /api/leaderboard   Rankings
  /api/admin/*       Admin operations
  /metrics           Prometheus scrape endpoint
  /health            Liveness

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Fayed99/base-app/metrics"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))
	r.Use(requestDurations)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/users/{fid}", h.GetUser)
		r.Get("/activities/{fid}", h.GetActivities)

		r.Post("/claim-points", h.ClaimPoints)
		r.Post("/redeem-reward", h.RedeemReward)

		r.Get("/leaderboard", h.GetLeaderboard)
		r.Get("/rewards", h.GetRewards)
		r.Get("/stats", h.GetStats)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/reset-weekly", h.ResetWeekly)
		})
	})

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// requestDurations records per-route request latency, labeled with the chi
// route pattern (not the raw path, to keep label cardinality bounded).
func requestDurations(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(ww.Status()/100) + "xx"
		metrics.HTTPRequestDuration.WithLabelValues(route, status).
			Observe(time.Since(start).Seconds())
	})
}
