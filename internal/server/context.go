package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/teemow/officebot/internal/chat"
	"github.com/teemow/officebot/internal/instrumentation"
)

// ErrShutdown is returned by HandleMessage after Shutdown.
var ErrShutdown = errors.New("server is shutting down")

// ErrNoHandler is returned by HandleMessage before a handler is set.
var ErrNoHandler = errors.New("no message handler configured")

// Pinger checks a dependency, such as the database, for readiness probes.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// ServerContext holds the process-wide dependencies shared by the transports
// and the HTTP surface. Its context is cancelled on Shutdown.
type ServerContext struct {
	ctx     context.Context
	cancel  context.CancelFunc
	db      Pinger
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
	logger  *slog.Logger

	mu       sync.RWMutex
	handler  func(context.Context, chat.Message)
	shutdown bool
}

// Option configures a ServerContext.
type Option func(*ServerContext)

// WithDatabase sets the dependency checked by the readiness probe.
func WithDatabase(db Pinger) Option {
	return func(sc *ServerContext) { sc.db = db }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(sc *ServerContext) { sc.metrics = m }
}

// WithAuditLogger sets the audit logger.
func WithAuditLogger(al *instrumentation.AuditLogger) Option {
	return func(sc *ServerContext) { sc.audit = al }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(sc *ServerContext) { sc.logger = logger }
}

// NewServerContext creates a server context derived from ctx.
func NewServerContext(ctx context.Context, opts ...Option) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Context returns the server context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Metrics returns the metrics recorder, which may be nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// AuditLogger returns the audit logger, which may be nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.audit
}

// Logger returns the logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// SetMessageHandler sets the function inbound messages are passed to,
// usually chat.Dispatcher.Handle.
func (sc *ServerContext) SetMessageHandler(h func(context.Context, chat.Message)) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.handler = h
}

// HandleMessage passes msg to the message handler under the server context,
// so conversations it starts outlive the caller's request.
func (sc *ServerContext) HandleMessage(msg chat.Message) error {
	sc.mu.RLock()
	h, shutdown := sc.handler, sc.shutdown
	sc.mu.RUnlock()

	if shutdown {
		return ErrShutdown
	}
	if h == nil {
		return ErrNoHandler
	}
	h(sc.ctx, msg)
	return nil
}

// Ping checks the database. It succeeds when no database is configured.
func (sc *ServerContext) Ping(ctx context.Context) error {
	if sc.db == nil {
		return nil
	}
	return sc.db.PingContext(ctx)
}

// IsShutdown returns whether the server has been shutdown.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
