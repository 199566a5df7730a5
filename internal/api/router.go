package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/versionwatch/internal/metrics"
	"github.com/nerrad567/versionwatch/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.observeMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/info", s.handleInfo)

		r.Route("/files", func(r chi.Router) {
			r.Get("/", s.handleListFiles)
			r.Post("/", s.handleCreateFile)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetFile)
				r.Patch("/", s.handleUpdateFile)
				r.Delete("/", s.handleDeleteFile)
			})
		})

		r.Route("/settings/broker", func(r chi.Router) {
			r.Get("/", s.handleGetBroker)
			r.Patch("/", s.handleUpdateBroker)
			r.Post("/reconnect", s.handleReconnectBroker)
		})

		r.Get("/activity", s.handleListActivity)
		r.Get("/ws", s.handleWebSocket)
	})

	if s.cfg.Panel.Enabled {
		r.Handle("/*", panel.Handler(s.cfg.Panel.Dir))
	}

	return r
}
