package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/teemow/officebot/internal/google"
	"github.com/teemow/officebot/internal/instrumentation"
)

// DefaultHTTPAddr is the default address of the public HTTP server.
const DefaultHTTPAddr = ":8000"

// HTTPServerConfig configures the public HTTP server.
type HTTPServerConfig struct {
	Addr string

	// Exchanger handles /callback. The route is not registered when nil.
	Exchanger CodeExchanger

	Health  *HealthChecker
	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// HTTPServer serves the OAuth callback and the health probes.
type HTTPServer struct {
	addr    string
	handler http.Handler
	logger  *slog.Logger

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
}

// NewHTTPServer creates the public HTTP server.
func NewHTTPServer(cfg HTTPServerConfig) *HTTPServer {
	if cfg.Addr == "" {
		cfg.Addr = DefaultHTTPAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	mux := http.NewServeMux()
	if cfg.Exchanger != nil {
		mux.Handle(google.CallbackPath, CallbackHandler(cfg.Exchanger, cfg.Logger))
	}
	if cfg.Health != nil {
		cfg.Health.RegisterHealthEndpoints(mux)
	}

	return &HTTPServer{
		addr:    cfg.Addr,
		handler: MetricsMiddleware(cfg.Metrics, mux),
		logger:  cfg.Logger,
	}
}

// Handler returns the routed and instrumented handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves until Shutdown.
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
	return srv.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// MetricsMiddleware records every request by method, route pattern and
// status code. Unrouted requests are recorded under "unmatched".
func MetricsMiddleware(m *instrumentation.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(r.Context(), r.Method, path, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
