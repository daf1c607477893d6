package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTP timeouts for the telemetry listener. Scrapes and probes are small,
// fast requests; anything slower indicates a stuck check.
const (
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 10 * time.Second
	serverIdleTimeout  = 120 * time.Second
)

// Server exposes the telemetry surface of a webtrail process: Prometheus
// metrics under /metrics and health probes under /health.
type Server struct {
	httpServer *http.Server
	port       int
}

// NewServer creates a telemetry server listening on port.
func NewServer(port int) *Server {
	return &Server{
		port: port,
	}
}

// Handler returns the route table served by Start, for embedding the
// telemetry endpoints into another mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler())
	mux.HandleFunc("/health/live", LivenessHandler())
	mux.HandleFunc("/health/ready", ReadinessHandler())
	mux.Handle("/metrics", MetricsHandler())
	return mux
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
