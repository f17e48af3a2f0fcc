/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/orders/*         Work orders, stage advance, timeline
  /api/flows            Stage sequences
  /api/calendar/*       Shift windows
  /api/holidays/*       Holidays
  /api/deadlines        Deadline listing
  /api/reports/*        Reports
  /api/scenarios/*      Demo scenarios
  /*                    Static files (frontend)

STATIC FILE SERVING:
  Serves the built frontend from web/dist/ when present.
  Falls back to index.html for client-side routing.

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"

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
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.CreateOrder)
			r.Get("/{id}", h.GetOrder)
			r.Put("/{id}", h.UpdateOrder)
			r.Delete("/{id}", h.DeleteOrder)
			r.Post("/{id}/advance", h.AdvanceOrder)
			r.Put("/{id}/stages/{stage}/worker", h.AssignWorker)
			r.Get("/{id}/timeline", h.GetTimeline)
		})

		r.Get("/flows", h.ListFlows)

		r.Route("/calendar", func(r chi.Router) {
			r.Get("/", h.GetCalendar)
			r.Put("/", h.UpdateCalendar)
			r.Post("/reset", h.ResetCalendar)
		})

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Post("/defaults", h.AddDefaultHolidays)
			r.Delete("/{date}", h.DeleteHoliday)
		})

		r.Get("/deadlines", h.ListDeadlines)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/deadlines", h.GetDeadlineReport)
			r.Get("/stages", h.GetStageReport)
			r.Get("/workers", h.GetWorkerReport)
			r.Get("/summary", h.GetSummary)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	// Serve static files.
	// First try ./web/dist (development), then next to the executable.
	staticDir := "./web/dist"
	if _, err := os.Stat(staticDir); os.IsNotExist(err) {
		exe, _ := os.Executable()
		staticDir = filepath.Join(filepath.Dir(exe), "web", "dist")
	}

	if _, err := os.Stat(staticDir); err == nil {
		fileServer := http.FileServer(http.Dir(staticDir))
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			fullPath := filepath.Join(staticDir, r.URL.Path)
			if _, err := os.Stat(fullPath); os.IsNotExist(err) {
				// SPA routing: serve index.html
				http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
				return
			}
			fileServer.ServeHTTP(w, r)
		})
	} else {
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Work Order Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Work Order Engine API</h1>
<p>No frontend build found in web/dist.</p>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/orders">/api/orders</a> - List work orders</li>
<li><a href="/api/deadlines">/api/deadlines</a> - Orders near their due date</li>
<li><a href="/api/reports/summary">/api/reports/summary</a> - Production overview</li>
<li><a href="/api/calendar">/api/calendar</a> - Shift windows</li>
<li><a href="/api/scenarios">/api/scenarios</a> - List scenarios</li>
</ul>
</body>
</html>`))
		})
	}

	return r
}
