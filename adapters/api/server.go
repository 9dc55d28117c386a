// Package api exposes the analysis service over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"cmsig/app"
	"cmsig/ports"
)

// Server is the HTTP surface of the analysis service.
type Server struct {
	router  *chi.Mux
	service *app.AnalysisService
	repo    ports.ObservationRepository // optional; nil when running storageless
}

// NewServer creates the router. repo may be nil; storage-backed endpoints
// then answer 503.
func NewServer(service *app.AnalysisService, repo ports.ObservationRepository) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		service: service,
		repo:    repo,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/api/v1/health", s.handleHealth)
	s.router.Post("/api/v1/validate", s.handleValidate)
	s.router.Post("/api/v1/observations", s.handleSaveObservations)
	s.router.Post("/api/v1/runs", s.handleRunStored)
	s.router.Get("/api/v1/runs/{id}", s.handleGetReport)
}

// Handler returns the root handler for an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}
