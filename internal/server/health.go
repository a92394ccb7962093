package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// checkTimeout bounds every health check.
const checkTimeout = 2 * time.Second

// Health status values.
const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
	healthStatusUnavailable  = "unavailable"
	healthStatusDegraded     = "degraded"
)

// Check is one named dependency probe. A failing critical check takes the
// server out of readiness; a failing informational check only shows up as
// degraded.
type Check struct {
	Name     string
	Critical bool
	Probe    func(ctx context.Context) error
}

// HealthChecker serves the /healthz, /readyz and /healthz/detailed probes.
// The database reachable through the ServerContext is always checked.
type HealthChecker struct {
	ready         atomic.Bool
	serverContext *ServerContext
	startTime     time.Time
	version       string

	mu     sync.RWMutex
	checks []Check
}

// HealthOption configures a HealthChecker.
type HealthOption func(*HealthChecker)

// WithVersion reports version in the detailed health response.
func WithVersion(version string) HealthOption {
	return func(h *HealthChecker) { h.version = version }
}

// WithCheck adds a check.
func WithCheck(c Check) HealthOption {
	return func(h *HealthChecker) { h.checks = append(h.checks, c) }
}

// NewHealthChecker creates a HealthChecker. It starts ready.
func NewHealthChecker(sc *ServerContext, opts ...HealthOption) *HealthChecker {
	h := &HealthChecker{
		serverContext: sc,
		startTime:     time.Now(),
	}
	if sc != nil {
		h.checks = append(h.checks, Check{Name: "database", Critical: true, Probe: sc.Ping})
	}
	for _, opt := range opts {
		opt(h)
	}
	h.ready.Store(true)
	return h
}

// AddCheck registers c after construction, e.g. once an integration is up.
func (h *HealthChecker) AddCheck(c Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, c)
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

func (h *HealthChecker) isServerShuttingDown() bool {
	return h.serverContext != nil && h.serverContext.IsShutdown()
}

// report is the outcome of one evaluation of all checks.
type report struct {
	checks   map[string]string
	ready    bool
	degraded bool
}

// evaluate runs every check concurrently.
func (h *HealthChecker) evaluate(ctx context.Context) report {
	h.mu.RLock()
	checks := append([]Check(nil), h.checks...)
	h.mu.RUnlock()

	r := report{checks: make(map[string]string, len(checks)+2), ready: true}

	if h.ready.Load() {
		r.checks["ready"] = healthStatusOK
	} else {
		r.checks["ready"] = healthStatusNotReady
		r.ready = false
	}
	if h.isServerShuttingDown() {
		r.checks["shutdown"] = healthStatusShuttingDown
		r.ready = false
	} else {
		r.checks["shutdown"] = healthStatusOK
	}

	errs := make([]error, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			errs[i] = c.Probe(cctx)
		}()
	}
	wg.Wait()

	for i, c := range checks {
		switch {
		case errs[i] == nil:
			r.checks[c.Name] = healthStatusOK
		case c.Critical:
			r.checks[c.Name] = healthStatusUnavailable
			r.ready = false
		default:
			r.checks[c.Name] = healthStatusDegraded
			r.degraded = true
		}
	}
	return r
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse adds uptime and version to the readiness checks.
type DetailedHealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Uptime  string            `json:"uptime"`
	Checks  map[string]string `json:"checks"`
}

// LivenessHandler returns the /healthz handler. It only tells whether the
// process is serving and never runs checks.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler returns the /readyz handler. Informational checks never
// fail readiness.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rep := h.evaluate(r.Context())
		if !rep.ready {
			writeHealth(w, http.StatusServiceUnavailable, HealthResponse{Status: healthStatusNotReady, Checks: rep.checks})
			return
		}
		writeHealth(w, http.StatusOK, HealthResponse{Status: healthStatusOK, Checks: rep.checks})
	})
}

// DetailedHealthHandler returns the /healthz/detailed handler.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rep := h.evaluate(r.Context())
		resp := DetailedHealthResponse{
			Status:  healthStatusOK,
			Version: h.version,
			Uptime:  time.Since(h.startTime).Truncate(time.Second).String(),
			Checks:  rep.checks,
		}

		status := http.StatusOK
		switch {
		case h.isServerShuttingDown():
			resp.Status = healthStatusShuttingDown
			status = http.StatusServiceUnavailable
		case !rep.ready:
			resp.Status = healthStatusNotReady
			status = http.StatusServiceUnavailable
		case rep.degraded:
			resp.Status = healthStatusDegraded
		}
		writeHealth(w, status, resp)
	})
}

// RegisterHealthEndpoints registers health check endpoints on the given mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
	mux.Handle("/healthz/detailed", h.DetailedHealthHandler())
}

func writeHealth(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
