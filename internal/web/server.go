// Package web serves the HTTP API for the attendance system.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/facegate/internal/attendance"
	"github.com/kozaktomas/facegate/internal/gallery"
	"github.com/kozaktomas/facegate/internal/liveness"
	"github.com/kozaktomas/facegate/internal/recognition"
	"github.com/kozaktomas/facegate/internal/registry"
	"github.com/kozaktomas/facegate/internal/web/middleware"
)

// Deps bundles the components the API exposes.
type Deps struct {
	Registry *registry.Registry
	Gallery  *gallery.Gallery
	Manager  *attendance.Manager
	Pipeline *recognition.Pipeline
	Liveness *liveness.Detector
}

// Server represents the web server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	deps       Deps
}

// NewServer creates a new web server.
func NewServer(port int, host string, deps Deps) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		deps:   deps,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))
	r.Use(middleware.CORS())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second, // frame uploads can be slow on weak links
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
