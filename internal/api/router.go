package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"

	"github.com/oncall-agent/engine/internal/api/handlers"
	mw "github.com/oncall-agent/engine/internal/api/middleware"
)

type Dependencies struct {
	CORSOrigin            string
	RepositoriesHandler   *handlers.RepositoriesHandler
	DocumentsHandler      *handlers.DocumentsHandler
	InvestigationsHandler *handlers.InvestigationsHandler
	RailwayHandler        *handlers.RailwayHandler
	StreamHandler         *handlers.StreamHandler
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.Recovery)

	// The websocket route sits outside the logging and compression chain:
	// both wrap the ResponseWriter and would break the connection hijack
	// performed by the upgrade.
	r.Get("/ws/investigations/{id}", dep.StreamHandler.Stream)

	r.Group(func(r chi.Router) {
		r.Use(mw.Logging)
		r.Use(mw.CORS(dep.CORSOrigin))
		r.Use(mw.RateLimit(10, 20))
		r.Use(chimid.Compress(5))

		// Health endpoints
		hh := handlers.NewHealthHandler()
		r.Get("/healthz", hh.Liveness)
		r.Get("/readyz", hh.Readiness)

		r.Route("/api/v1", func(api chi.Router) {
			// Repositories
			api.Route("/repositories", func(rr chi.Router) {
				rr.Get("/", dep.RepositoriesHandler.List)
				rr.Post("/", dep.RepositoriesHandler.Create)
				rr.Get("/{id}", dep.RepositoriesHandler.Get)
				rr.Post("/{id}/documents", dep.DocumentsHandler.Upload)
				rr.Get("/{id}/documents", dep.DocumentsHandler.List)
				rr.Post("/{id}/investigate", dep.InvestigationsHandler.Start)
			})

			// Investigations
			api.Route("/investigations", func(ir chi.Router) {
				ir.Get("/", dep.InvestigationsHandler.List)
				ir.Get("/{id}", dep.InvestigationsHandler.Get)
			})

			// Deployment provider
			api.Get("/railway/projects", dep.RailwayHandler.Projects)
			api.Post("/webhooks/railway", dep.RailwayHandler.Webhook)
		})
	})

	return r
}
