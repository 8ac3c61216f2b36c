// Package api exposes the HTTP surface: ingestion triggers and logs, the
// facebook upload, metric queries, and report lifecycle endpoints. Auth
// happens at the fronting gateway; this layer enforces tenant scoping
// from the injected identity headers.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/paidmedia-monitor/internal/config"
	"github.com/ignite/paidmedia-monitor/internal/pkg/logger"
)

// Server wraps the HTTP server and its routes.
type Server struct {
	config config.ServerConfig
	server *http.Server
}

// NewServer creates the API server over the given handlers.
func NewServer(cfg config.ServerConfig, h *Handlers) *Server {
	router := SetupRoutes(h)
	addr := fmt.Sprintf("%s:%d", cfg.GetHost(), cfg.Port)

	return &Server{
		config: cfg,
		server: &http.Server{
			Addr:    addr,
			Handler: router,
			// Uploads are capped at tens of megabytes, so moderate timeouts.
			ReadTimeout:       2 * time.Minute,
			ReadHeaderTimeout: 15 * time.Second,
			WriteTimeout:      2 * time.Minute,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// ListenAndServe starts serving and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	logger.Info("http server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
