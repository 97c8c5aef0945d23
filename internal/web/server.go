// Package web provides the HTTP server and handlers for the document
// processing API.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"invoiceflow/internal/config"
	"invoiceflow/internal/product"
	"invoiceflow/internal/store"
)

// Storage is the persistence surface the handlers need.
// Satisfied by *store.Store.
type Storage interface {
	CreateDocument(ctx context.Context, filename string, content []byte) (store.Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (store.Document, error)
	GetContent(ctx context.Context, id uuid.UUID) ([]byte, error)
	SetStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error
	SetFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	SaveProducts(ctx context.Context, id uuid.UUID, items []product.Item, summary string) error
	RecordFieldValue(ctx context.Context, fieldName, value string) error
	FieldSuggestions(ctx context.Context, fieldName string, limit int) ([]string, error)
}

var _ Storage = (*store.Store)(nil)

// Server is the HTTP server for the document processing API.
type Server struct {
	store  Storage
	cfg    config.ServerConfig
	upload config.UploadConfig
	// processTimeout bounds the background extraction of one document.
	processTimeout time.Duration

	router *chi.Mux
	server *http.Server
}

// NewServer creates a new Server instance.
func NewServer(st Storage, cfg *config.Config) *Server {
	s := &Server{
		store:          st,
		cfg:            cfg.Server,
		upload:         cfg.Upload,
		processTimeout: cfg.Session.ProcessTimeout,
		router:         chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	timeout := s.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	s.router.Use(middleware.Timeout(timeout))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Document lifecycle
		r.Post("/upload", s.handleUpload)
		r.Post("/process/{documentID}", s.handleProcess)
		r.Get("/process/{documentID}/status", s.handleStatus)

		// Field editing
		r.Put("/update/{documentID}", s.handleUpdateFields)

		// Line items
		r.Get("/products/config", s.handleProductConfig)
		r.Get("/products/{documentID}", s.handleGetProducts)
		r.Put("/products/update", s.handleUpdateProducts)

		// Autocomplete
		r.Get("/field-suggestions/{fieldName}", s.handleSuggestions)
	})
}

// Start begins listening for HTTP requests on the configured address.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
