package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mkorzh/audioscribe/internal/config"
	"github.com/mkorzh/audioscribe/pkg/logger"
)

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	config     *config.Config
	logger     *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(handler *Handler, config *config.Config, logger *logger.Logger) *Router {
	return &Router{
		handler:    handler,
		middleware: NewMiddleware(logger),
		config:     config,
		logger:     logger.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.config.Server.CORSAllowedOrigins))

	// API routes
	router.Route("/api/v1", func(router chi.Router) {
		// Transcription routes
		router.Post("/transcribe", r.handler.Transcribe)
		router.Post("/transcribe/stream", r.handler.TranscribeStream)

		// Health check
		router.Get("/health", r.handler.GetHealth)
	})

	// Serve the web UI from the configured directory
	staticHandler := NewStaticFileHandler(r.config.Server.StaticFilesDir, r.logger)
	router.Handle("/*", staticHandler)

	return router
}
