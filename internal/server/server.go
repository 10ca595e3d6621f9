// Package server exposes the detection service over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Rickkless-King/Fingent/internal/domain"
	"github.com/Rickkless-King/Fingent/internal/server/handler"
	"github.com/Rickkless-King/Fingent/internal/server/middleware"
	"github.com/Rickkless-King/Fingent/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string

	// APIRateLimit throttles clients per IP when a limiter is provided.
	// Zero disables the middleware.
	APIRateLimit  int
	RateLimWindow time.Duration
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health *handler.HealthHandler
	Arb    *handler.ArbHandler
}

// Server is the headless HTTP + WebSocket API for the detection service.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered. limiter may be nil,
// which disables API rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/opportunities", handlers.Arb.ListOpportunities)
	mux.HandleFunc("GET /api/snapshots", handlers.Arb.ListSnapshots)
	mux.HandleFunc("DELETE /api/snapshots", handlers.Arb.ClearSnapshots)
	mux.HandleFunc("POST /api/scan", handlers.Arb.TriggerScan)
	mux.HandleFunc("POST /api/news", handlers.Arb.ProcessNews)
	mux.HandleFunc("GET /api/cooldown/{event}", handlers.Arb.GetCooldown)
	mux.HandleFunc("DELETE /api/cooldown/{event}", handlers.Arb.ResetCooldown)
	mux.HandleFunc("GET /api/runs", handlers.Arb.ListRuns)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	if limiter != nil && cfg.APIRateLimit > 0 {
		window := cfg.RateLimWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(limiter, cfg.APIRateLimit, window)(h)
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
		logger:     logger.With(slog.String("component", "http_server")),
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// errors or is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
