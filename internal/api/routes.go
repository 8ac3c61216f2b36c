package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the router. Identity headers are required on
// everything under /api; /health is open for load balancer checks.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Principal-Role", "X-Client-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Use(WithPrincipal)

		r.Route("/ingestion", func(r chi.Router) {
			r.Post("/trigger", h.TriggerIngestion)
			r.Get("/logs", h.ListIngestionLogs)
		})

		r.Post("/uploads/facebook", h.UploadFacebook)

		r.Route("/metrics", func(r chi.Router) {
			r.Get("/daily", h.MetricsDaily)
			r.Get("/summary", h.MetricsSummary)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Post("/", h.CreateReport)
			r.Get("/", h.ListReports)
			r.Get("/{id}", h.GetReport)
			r.Get("/{id}/download", h.DownloadReport)
		})

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Get("/{id}/cpm-settings", h.GetClientCPMSettings)
		})
	})

	return r
}
