// Package api exposes the contract-template editing subsystem to the admin
// dashboard: opening editing sessions, applying edits, saving, and the
// WebSocket endpoint the embedded editor widget connects through.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/evdealer/contractedit/internal/audit"
	"github.com/evdealer/contractedit/internal/editor"
	"github.com/evdealer/contractedit/internal/gateway"
	"github.com/evdealer/contractedit/internal/session"
)

// Config holds server configuration.
type Config struct {
	Port     int
	AllowAll bool // allow all CORS origins (dev mode)
}

// Server hosts the editing-session API.
type Server struct {
	cfg        Config
	gw         *gateway.Client
	auditStore *audit.Store
	editorOpts editor.Options
	router     chi.Router
	httpServer *http.Server

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// New creates a new editing server with all dependencies.
func New(cfg Config, gw *gateway.Client, auditStore *audit.Store, editorOpts editor.Options) *Server {
	s := &Server{
		cfg:        cfg,
		gw:         gw,
		auditStore: auditStore,
		editorOpts: editorOpts,
		sessions:   make(map[string]*session.Session),
	}

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleOpenSession)
		r.Get("/{id}", s.handleGetSession)
		r.Put("/{id}/content", s.handleUpdateContent)
		r.Post("/{id}/save", s.handleSave)
		r.Post("/{id}/reset", s.handleReset)
		r.Delete("/{id}", s.handleClose)
		r.Get("/{id}/ws", s.handleEditorSocket)
	})

	audit.RegisterRoutes(r, s.auditStore)

	return r
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// lookup returns the live session with the given id, or nil.
func (s *Server) lookup(id string) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

func (s *Server) register(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID()] = sess
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("contractedit server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server and tears down live sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for id, sess := range s.sessions {
		sess.Discard()
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
