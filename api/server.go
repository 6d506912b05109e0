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

ROUTE GROUPS:
  /api/world/*          Clock, step and snapshot
  /api/players/*        Simulated players
  /api/containers/*     Containers, tanks, ledger, installs
  /api/upgrades/*       Settings and manual actions
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

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
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/world", func(r chi.Router) {
			r.Get("/", h.GetWorld)
			r.Post("/step", h.StepWorld)
			r.Post("/save", h.SaveWorld)
		})

		r.Route("/players", func(r chi.Router) {
			r.Get("/", h.ListPlayers)
			r.Post("/", h.CreatePlayer)
			r.Put("/{id}/position", h.SetPlayerPosition)
			r.Post("/{id}/experience", h.AdjustExperience)
		})

		r.Route("/containers", func(r chi.Router) {
			r.Get("/", h.ListContainers)
			r.Get("/{id}", h.GetContainer)
			r.Get("/{id}/transfers", h.GetContainerTransfers)
			r.Post("/{id}/upgrades", h.InstallUpgrade)
			r.Delete("/{id}/upgrades/{upgradeID}", h.RemoveUpgrade)
		})

		r.Route("/upgrades", func(r chi.Router) {
			r.Get("/{id}", h.GetUpgrade)
			r.Patch("/{id}", h.PatchUpgrade)
			r.Post("/{id}/actions/{action}", h.PerformAction)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Upgrade Automation Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Upgrade Automation Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/world">/api/world</a> - World state</li>
<li><a href="/api/containers">/api/containers</a> - Containers and upgrades</li>
<li><a href="/api/scenarios">/api/scenarios</a> - List scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
