// Package server hosts the read-only HTTP query API over the replicated
// books.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/marketlab/bookkeeper/internal/domain"
	"github.com/marketlab/bookkeeper/internal/server/handler"
	"github.com/marketlab/bookkeeper/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string

	// RateLimit caps requests per client IP per RateWindowSeconds. Zero
	// disables limiting (and a nil limiter does too).
	RateLimit         int
	RateWindowSeconds int
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health *handler.HealthHandler
	Books  *handler.BookHandler
}

// Server is the HTTP query API over the book registry.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes on a ServeMux and wires the middleware
// chain (CORS, logging, optional rate limiting).
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/books", handlers.Books.ListBooks)
	mux.HandleFunc("GET /api/books/{asset}", handlers.Books.GetBook)
	mux.HandleFunc("GET /api/books/{asset}/top", handlers.Books.GetTop)
	mux.HandleFunc("GET /api/books/{asset}/bbo", handlers.Books.GetBBO)
	mux.HandleFunc("GET /api/books/{asset}/depth", handlers.Books.GetDepth)
	mux.HandleFunc("GET /api/books/{asset}/history", handlers.Books.GetHistory)
	mux.HandleFunc("GET /api/books/{asset}/trades", handlers.Books.ListTrades)

	var h http.Handler = mux
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindowSeconds
		if window <= 0 {
			window = 1
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// errors or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
