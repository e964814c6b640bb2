// Package web exposes the control surface for a running organize job: live
// progress over SSE, pending naming requests, name submission, and a
// cooperative stop.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-organizer/internal/cluster"
	"github.com/kozaktomas/face-organizer/internal/naming"
	"github.com/kozaktomas/face-organizer/internal/pipeline"
)

// Server represents the control server for one organize run.
type Server struct {
	router      *chi.Mux
	httpServer  *http.Server
	broadcaster *Broadcaster
	store       *cluster.Store

	mu      sync.RWMutex
	session *naming.Session
	stopFn  func()
}

// NewServer creates the control server listening on addr. The people store is
// read-only here; naming mutations go through the session.
func NewServer(addr string, store *cluster.Store) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:      r,
		broadcaster: &Broadcaster{},
		store:       store,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // long timeout for SSE
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Progress returns the callback to hand to the pipeline.
func (s *Server) Progress() pipeline.ProgressFunc {
	return s.broadcaster.Send
}

// SetSession attaches the active naming session. Until a session is set,
// naming endpoints report no pending work.
func (s *Server) SetSession(session *naming.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

// SetStopFunc installs the function invoked by the stop endpoint.
func (s *Server) SetStopFunc(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopFn = fn
}

func (s *Server) currentSession() *naming.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	log.Printf("Starting control server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Get("/api/v1/health", healthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Get("/events", s.events)
		r.Get("/naming/pending", s.namingPending)
		r.Post("/naming/{clusterID}", s.namingSubmit)
		r.Post("/stop", s.stop)
		r.Get("/people", s.people)
	})
}
