/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack and routes. This is the
  wiring layer connecting URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  unique id per request for tracing
  2. Recoverer:  panic recovery (500 instead of crash)
  3. zerolog:    structured request logging
  4. metrics:    prometheus counters/latency per route
  5. CORS:       cross-origin requests for the calendar frontend

ROUTE GROUPS:
  /api/login            capability resolution (no capability required)
  /api/*                everything else behind the X-Access-Code header
  /metrics              prometheus scrape endpoint

SEE ALSO:
  - handlers.go: handler implementations
  - auth.go: capability middleware
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// NewRouter creates the router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.Log))
	r.Use(countRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Access-Code"},
		AllowCredentials: true,
	}))

	r.Method(http.MethodGet, "/metrics", MetricsHandler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.withCapability)

			// Shared surface (any capability)
			r.Get("/events", h.Events)
			r.Get("/days", h.ListDays)
			r.Get("/days/{date}", h.GetDay)
			r.Post("/days/{date}/request", h.SubmitRequest)
			r.Get("/balances", h.GetBalances)

			// Admin surface
			r.Get("/users", requireAdmin(h.ListUsers))
			r.Post("/users", requireAdmin(h.CreateUser))
			r.Put("/users/{id}", requireAdmin(h.UpdateUser))
			r.Delete("/users/{id}", requireAdmin(h.DeleteUser))

			r.Put("/days/{date}/entries/{userId}", requireAdmin(h.AdminSetEntry))
			r.Get("/pending", requireAdmin(h.ListPending))

			r.Post("/admin/rollover", requireAdmin(h.TriggerRollover))
			r.Put("/admin/config", requireAdmin(h.UpdateAdminCode))

			r.Get("/notes/{date}", requireAdmin(h.ListNotes))
			r.Post("/notes/{date}", requireAdmin(h.AddNote))
			r.Delete("/notes/{date}", requireAdmin(h.ClearNotes))

			r.Get("/export/json", requireAdmin(h.ExportJSON))
			r.Get("/export/csv", requireAdmin(h.ExportCSV))
			r.Get("/export/summary", requireAdmin(h.ExportSummary))
			r.Post("/import", requireAdmin(h.ImportJSON))
		})
	})

	return r
}

// requestLogger logs one structured line per request.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
