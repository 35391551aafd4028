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
  1. Logger:     Request logging (zerolog)
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/preview          Stateless resolution
  /api/employees/*      Directory passthrough + per-employee structures
  /api/structures/*     Structure reads and lifecycle decisions
  /api/catalog          Component catalog administration
  /api/stats            Approval queue counters

SECURITY NOTE:
  No authentication middleware here. Deployments front this API with
  their own auth layer; the handlers only record its verdict.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
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

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Stateless resolution
		r.Post("/preview", h.Preview)

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Get("/{id}", h.GetEmployee)
			r.Post("/{id}/structures", h.SubmitStructure)
			r.Get("/{id}/structures", h.GetHistory)
			r.Get("/{id}/structures/current", h.GetCurrentStructure)
		})

		// Structure lifecycle routes
		r.Route("/structures", func(r chi.Router) {
			r.Get("/pending", h.ListPending)
			r.Get("/{id}", h.GetStructure)
			r.Get("/{id}/comparison", h.GetComparison)
			r.Get("/{id}/letter", h.GetLetter)
			r.Post("/{id}/submit", h.SubmitDraft)
			r.Post("/{id}/approve", h.ApproveStructure)
			r.Post("/{id}/reject", h.RejectStructure)
		})

		// Catalog administration
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/", h.GetCatalog)
			r.Put("/", h.ReplaceCatalog)
		})

		r.Get("/stats", h.GetStats)
	})

	return r
}

// requestLogger logs each request with method, path, status and latency.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
