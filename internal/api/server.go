package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/flight-control/fcc/internal/auth"
	"github.com/flight-control/fcc/internal/config"
	"github.com/flight-control/fcc/internal/log"
)

// Version is reported by the health endpoint. Set by cmd/fcc.
var Version = "dev"

// Server is the HTTP API server.
type Server struct {
	httpServer     *http.Server
	session        SessionPort
	missions       MissionPort
	telemetry      TelemetryPort
	authMiddleware *auth.Middleware
	log            *log.Logger
	cfg            config.ServerConfig
	startTime      time.Time
}

// NewServer creates a server. A nil middleware serves every request as the local controller.
func NewServer(cfg config.ServerConfig, session SessionPort, missions MissionPort, telemetry TelemetryPort, authMiddleware *auth.Middleware, logger *log.Logger) *Server {
	if authMiddleware == nil {
		authMiddleware = auth.NewMiddleware(nil)
	}
	return &Server{
		session:        session,
		missions:       missions,
		telemetry:      telemetry,
		authMiddleware: authMiddleware,
		log:            logger,
		cfg:            cfg,
		startTime:      time.Now(),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Stop.
func (s *Server) Serve(ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	s.log.Info("HTTP API listening", "addr", ln.Addr().String())
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
