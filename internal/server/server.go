// Package server provides the HTTP API with lifecycle management.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/raphaelgruber/coursechat/internal/metrics"
	"github.com/raphaelgruber/coursechat/internal/service"
)

// Assistant is the query surface the server exposes. Implemented by
// service.Assistant.
type Assistant interface {
	Query(ctx context.Context, question, sessionID string) (*service.QueryResponse, error)
	Stats(ctx context.Context) (*service.CourseStats, error)
}

// Server wraps the HTTP server with dependencies and lifecycle
// management.
type Server struct {
	http      *http.Server
	assistant Assistant
	collector *metrics.Collector
	logger    *slog.Logger
}

// New creates the HTTP server on the given port.
func New(port string, assistant Assistant, collector *metrics.Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		assistant: assistant,
		collector: collector,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("GET /api/courses", s.handleCourses)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWS)

	s.http = &http.Server{
		Addr:              ":" + port,
		Handler:           LoggingMiddleware(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the full request handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down http server")
	return s.http.Shutdown(shutdownCtx)
}
