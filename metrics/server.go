package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes a Collector's registry on /metrics, localhost-only, the
// same shape as the teacher's otel HealthServer (./otel/otel_health.go).
type Server struct {
	port   int
	logger *slog.Logger
	server *http.Server
}

// NewServer creates a metrics server bound to 127.0.0.1:port.
func NewServer(port int, collector *Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))

	return &Server{
		port:   port,
		logger: logger,
		server: &http.Server{
			Addr:    fmt.Sprintf("127.0.0.1:%d", port),
			Handler: mux,
		},
	}
}

// Start begins serving /metrics. Call from a goroutine; returns once the
// listener fails or Stop is called.
func (s *Server) Start() {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.logger.Warn("metrics server failed to start", "error", err)
		return
	}
	if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
		s.logger.Warn("metrics server error", "error", err)
	}
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.server.Shutdown(ctx)
}
