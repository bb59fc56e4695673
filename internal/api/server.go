package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"riskengine/internal/config"
)

// Server runs the read-only HTTP/WebSocket inspection API (§4.9).
type Server struct {
	cfg      config.APIConfig
	hub      *Hub
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// NewServer creates a new inspection API server backed by provider and
// broadcasting through hub. The caller is responsible for wrapping its
// action sink with NewBroadcastSink(sink, hub) so hub actually receives
// delivered actions. reg, if non-nil, is additionally exposed in the
// Prometheus text exposition format at /metrics; pass nil to omit the
// route entirely.
func NewServer(cfg config.APIConfig, provider StateProvider, hub *Hub, reg prometheus.Gatherer, logger *slog.Logger) *Server {
	handlers := NewHandlers(provider, cfg, hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.HandleFunc("/api/diagnostics", handlers.HandleDiagnostics)
	mux.HandleFunc("/ws", handlers.HandleWebSocket)
	if reg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		hub:      hub,
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "api-server"),
	}
}

// Start runs the WebSocket hub and blocks serving HTTP until Stop is
// called.
func (s *Server) Start() error {
	go s.hub.Run()

	s.logger.Info("inspection api starting", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.logger.Info("stopping inspection api")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}
