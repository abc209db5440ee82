// Package server provides the upload/preview/download web pages and the JSON API for specsheet.
package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/specsheet/internal/config"
	"github.com/hyperjump/specsheet/internal/fields"
	"github.com/hyperjump/specsheet/internal/models"
	"github.com/hyperjump/specsheet/internal/storage"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// BatchProcessor turns uploaded documents into a batch. *pipeline.Processor satisfies it.
type BatchProcessor interface {
	Process(ctx context.Context, docs []models.DocumentInput) (*models.Batch, error)
}

// WatchService is the inbox watcher as seen by the watch-directory endpoints.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for specsheet.
type Server struct {
	processor  BatchProcessor
	fields     *fields.Set
	storage    storage.Storage
	config     *config.Config
	logger     *zap.Logger
	pages      *template.Template
	watch      WatchService
	configPath string
	configMu   sync.Mutex
	server     *http.Server
}

// NewServer creates a server with the given dependencies. watch may be nil when no inbox is
// watched; configPath, when set, receives watch-directory changes.
func NewServer(
	processor BatchProcessor,
	set *fields.Set,
	store storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
	watch WatchService,
	configPath string,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		processor:  processor,
		fields:     set,
		storage:    store,
		config:     cfg,
		logger:     logger,
		pages:      template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")),
		watch:      watch,
		configPath: configPath,
	}
}

// Handler returns the router with every route and middleware mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/", s.handleIndex)
	r.Post("/upload", s.handleUpload)
	r.Get("/batches/{id}", s.handlePreview)
	r.Get("/batches/{id}/download", s.handleDownload)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/extract", s.handleExtract)
		r.Get("/batches", s.handleListBatches)
		r.Get("/batches/{id}", s.handleGetBatch)
		r.Delete("/batches/{id}", s.handleDeleteBatch)
		r.Get("/fields", s.handleFields)
		r.Get("/status", s.handleStatus)
		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
