/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. JWT auth:   Bearer token -> principal on context

CAPABILITY GATES:
  Write routes are grouped per capability: progress writes need
  CapUpdateProgress, approvals CapApproveUpdates, cost lines
  CapManageCostLines, year management CapManageYears. Read routes only
  need an authenticated principal.

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token parsing and capability middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/BigAlzz/smon/authz"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, auth *Authenticator) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware)

		// Financial years
		r.Route("/years", func(r chi.Router) {
			r.Get("/", h.ListYears)
			r.Get("/active", h.GetActiveYear)
			r.With(RequireCapability(authz.CapManageYears)).Post("/", h.CreateYear)
		})

		// Dashboard and drilldown
		r.Get("/dashboard", h.GetDashboard)
		r.Get("/kpas/{id}/drilldown", h.GetDrilldown)

		// Progress updates
		r.Route("/targets/{id}", func(r chi.Router) {
			r.Get("/updates", h.ListTargetUpdates)
			r.Get("/status", h.GetTargetStatus)
			r.With(RequireCapability(authz.CapUpdateProgress)).Post("/updates", h.SaveDraft)
		})

		r.Route("/updates/{id}", func(r chi.Router) {
			r.With(RequireCapability(authz.CapUpdateProgress)).Post("/submit", h.SubmitUpdate)
			r.With(RequireCapability(authz.CapApproveUpdates)).Post("/approve", h.ApproveUpdate)
			r.With(RequireCapability(authz.CapApproveUpdates)).Post("/reject", h.RejectUpdate)
		})

		// Cost lines
		r.Route("/items/{id}/costlines", func(r chi.Router) {
			r.Get("/", h.ListCostLines)
			r.With(RequireCapability(authz.CapManageCostLines)).Post("/", h.SaveCostLine)
		})
	})

	return r
}
