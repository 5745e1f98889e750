package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/faceid/internal/matcher"
	"github.com/kozaktomas/faceid/internal/web/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRoutes(m *matcher.Matcher) {
	facesHandler := handlers.NewFacesHandler(s.config, s.store, s.extractor, m)

	// Health check and metrics sit outside the API group
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Put("/users/{id}/faces", facesHandler.Encode)
		r.Post("/users/{id}/match", facesHandler.Match)
		r.Post("/identify", facesHandler.Identify)
	})
}
