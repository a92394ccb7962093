package intake

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/officebot/internal/instrumentation"
	"github.com/teemow/officebot/internal/logging"
	"github.com/teemow/officebot/internal/meeting"
)

// DefaultStepTimeout bounds the wait for each reply.
const DefaultStepTimeout = 60 * time.Second

// Key identifies a conversation: one author in one channel.
type Key struct {
	Author  string
	Channel string
}

// Replier sends a message back to the conversation a flow belongs to.
type Replier interface {
	Reply(ctx context.Context, text string) error
}

// ReplierFunc adapts a function to the Replier interface.
type ReplierFunc func(ctx context.Context, text string) error

// Reply calls f.
func (f ReplierFunc) Reply(ctx context.Context, text string) error {
	return f(ctx, text)
}

// Manager owns the running flows.
type Manager struct {
	providers   map[meeting.Platform]meeting.Provider
	stepTimeout time.Duration
	authCommand string
	logger      *slog.Logger
	metrics     *instrumentation.Metrics

	flowsMu sync.Mutex
	flows   map[Key]*Flow
	wg      sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithStepTimeout sets how long each awaiting state waits for a reply.
func WithStepTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.stepTimeout = d
		}
	}
}

// WithAuthCommand sets the command suggested when a provider needs
// authentication (default "!authenticate").
func WithAuthCommand(cmd string) Option {
	return func(m *Manager) { m.authCommand = cmd }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *instrumentation.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager creates a Manager. providers maps each selectable platform to
// its adapter; a platform without an adapter fails at dispatch.
func NewManager(providers map[meeting.Platform]meeting.Provider, opts ...Option) *Manager {
	m := &Manager{
		providers:   make(map[meeting.Platform]meeting.Provider, len(providers)),
		stepTimeout: DefaultStepTimeout,
		authCommand: "!authenticate",
		logger:      slog.Default(),
		flows:       make(map[Key]*Flow),
	}
	for p, prov := range providers {
		if prov != nil {
			m.providers[p] = prov
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins a flow for key and returns immediately. The first prompt is
// sent from the flow goroutine. ctx bounds the whole flow, not just the call.
func (m *Manager) Start(ctx context.Context, key Key, replier Replier) (*Flow, error) {
	m.flowsMu.Lock()
	defer m.flowsMu.Unlock()

	if _, ok := m.flows[key]; ok {
		return nil, ErrFlowInProgress
	}

	f := newFlow(key, replier, m.stepTimeout)
	m.flows[key] = f
	m.metrics.IncrementActiveIntakeFlows(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx, f)
	}()
	return f, nil
}

// Deliver hands text to the flow awaiting a reply for key. It reports false
// without blocking when no such flow exists or it is not awaiting a reply.
// Otherwise it blocks until the flow takes the reply, the flow ends or ctx is
// done.
func (m *Manager) Deliver(ctx context.Context, key Key, text string) bool {
	m.flowsMu.Lock()
	f, ok := m.flows[key]
	m.flowsMu.Unlock()

	if !ok || !f.State().Awaiting() {
		return false
	}

	select {
	case f.replies <- text:
		return true
	case <-f.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Active reports whether a flow is running for key.
func (m *Manager) Active(key Key) bool {
	m.flowsMu.Lock()
	defer m.flowsMu.Unlock()
	_, ok := m.flows[key]
	return ok
}

// Wait blocks until every started flow has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, f *Flow) {
	logger := m.logger.With(logging.UserHash(f.key.Author), logging.Channel(f.key.Channel))
	ctx, span := instrumentation.StartFlowSpan(ctx, f.key.Channel, f.key.Author)
	defer span.End()

	out := f.run(ctx, m)

	m.flowsMu.Lock()
	delete(m.flows, f.key)
	m.flowsMu.Unlock()

	f.finish(out)
	m.metrics.DecrementActiveIntakeFlows(ctx)
	m.metrics.RecordIntakeOutcome(ctx, outcomeLabel(out), stateLabel(out))

	if out.Err != nil {
		instrumentation.SetSpanError(span, out.Err)
		logger.Info("meeting setup failed", logging.State(out.FailedAt), logging.Err(out.Err))
		return
	}
	instrumentation.SetSpanSuccess(span)
	logger.Info("meeting setup completed", slog.String("platform", string(f.req.Platform)))
}

func (m *Manager) provider(p meeting.Platform) (meeting.Provider, bool) {
	prov, ok := m.providers[p]
	return prov, ok
}
