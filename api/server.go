/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for dashboards

ROUTE GROUPS:
  /api/attendance/*      Reconciled single-session views
  /api/mandays/*         Reconciled multi-session views
  /api/shifts            Shift catalog management
  /api/employees         Directory management
  /api/reconciliation/*  Engine operations and audit trail
  /api/admin/*           Administrative backfills

SECURITY NOTE:
  No authentication middleware; deployments sit behind an internal
  gateway that terminates auth.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/attendd/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/attendance/{employee}", func(r chi.Router) {
			r.Get("/", h.GetAttendance)
			r.Get("/range", h.GetAttendanceRange)
			r.Get("/monthly", h.GetMonthlySummary)
			r.Get("/missed", h.GetMissedPunches)
		})

		r.Get("/mandays/{employee}", h.GetMandays)

		r.Route("/shifts", func(r chi.Router) {
			r.Get("/", h.ListShifts)
			r.Post("/", h.SaveShift)
		})

		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.SaveEmployee)
		})

		r.Route("/reconciliation", func(r chi.Router) {
			r.Post("/run", h.TriggerReconcile)
			r.Post("/reset-cursor", h.ResetCursor)
			r.Get("/runs", h.ListRuns)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/absentees", h.MarkAbsentees)
		})
	})

	return r
}
