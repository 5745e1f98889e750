package web

import (
	"context"
	"fmt"
	"image"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/faceid/internal/config"
	"github.com/kozaktomas/faceid/internal/database"
	"github.com/kozaktomas/faceid/internal/faceembed"
	"github.com/kozaktomas/faceid/internal/facematch"
	"github.com/kozaktomas/faceid/internal/matcher"
	"github.com/kozaktomas/faceid/internal/observability"
	"github.com/kozaktomas/faceid/internal/web/middleware"
)

const defaultRequestTimeout = 5 * time.Minute

// Server represents the web server
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	store      database.Store
	extractor  faceembed.Extractor
}

// NewServer creates a new web server. The store and extractor stay owned by the caller.
func NewServer(cfg *config.Config, store database.Store, extractor faceembed.Extractor) (*Server, error) {
	metric, err := facematch.ParseMetric(cfg.Match.Metric)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	s := &Server{
		config:    cfg,
		router:    r,
		store:     store,
		extractor: instrumented{extractor},
	}

	// Set up middleware stack. Metrics wraps Recoverer so recovered panics
	// are still counted as 500s.
	r.Use(middleware.Metrics)
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(requestTimeout(cfg)))
	r.Use(middleware.SecurityHeaders)

	m := matcher.New(s.extractor, metric, cfg.Match.Tolerance, cfg.Match.Neighbors)
	s.setupRoutes(m)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // encodes of many images
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// requestTimeout is at least one embedding call plus one database round trip.
func requestTimeout(cfg *config.Config) time.Duration {
	return max(defaultRequestTimeout, cfg.Embedding.Timeout+cfg.Database.Timeout)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

// instrumented times every embedding call.
type instrumented struct {
	faceembed.Extractor
}

func (i instrumented) FirstFace(ctx context.Context, img image.Image) ([]float32, bool, error) {
	start := time.Now()
	emb, found, err := i.Extractor.FirstFace(ctx, img)
	if err == nil {
		observability.ObserveExtract(start, found)
	}
	return emb, found, err
}
