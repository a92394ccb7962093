package server

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/officebot/internal/meeting"
)

func checks(body map[string]any) map[string]any {
	c, _ := body["checks"].(map[string]any)
	return c
}

func TestHealthEndpoints(t *testing.T) {
	sc := NewServerContext(context.Background(), WithDatabase(fakePinger{}))
	health := NewHealthChecker(sc, WithVersion("1.2.3"))
	h := NewHTTPServer(HTTPServerConfig{Health: health}).Handler()

	rec, body := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, body = get(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", checks(body)["database"])

	rec, body = get(t, h, "/healthz/detailed")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
	assert.Equal(t, "ok", checks(body)["database"])

	health.SetReady(false)
	rec, _ = get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	health.SetReady(true)

	require.NoError(t, sc.Shutdown())
	rec, body = get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "shutting down", checks(body)["shutdown"])

	rec, body = get(t, h, "/healthz/detailed")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "shutting down", body["status"])

	rec, _ = get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code, "liveness ignores shutdown")
}

func TestReadiness_DatabaseDown(t *testing.T) {
	sc := NewServerContext(context.Background(), WithDatabase(fakePinger{err: errors.New("database is closed")}))
	h := NewHTTPServer(HTTPServerConfig{Health: NewHealthChecker(sc)}).Handler()

	rec, body := get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "unavailable", checks(body)["database"])

	rec, body = get(t, h, "/healthz/detailed")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", checks(body)["database"])
}

func TestReadiness_InformationalCheck(t *testing.T) {
	sc := NewServerContext(context.Background())
	health := NewHealthChecker(sc, WithCheck(Check{
		Name:  "google_authorization",
		Probe: func(context.Context) error { return meeting.ErrAuthenticationRequired },
	}))
	h := NewHTTPServer(HTTPServerConfig{Health: health}).Handler()

	rec, body := get(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code, "informational checks do not fail readiness")
	assert.Equal(t, "degraded", checks(body)["google_authorization"])

	rec, body = get(t, h, "/healthz/detailed")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", body["status"])
}

func TestHealthChecker_AddCheck(t *testing.T) {
	health := NewHealthChecker(nil)
	h := NewHTTPServer(HTTPServerConfig{Health: health}).Handler()

	rec, _ := get(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)

	probed := make(chan struct{}, 1)
	health.AddCheck(Check{
		Name:     "discord",
		Critical: true,
		Probe: func(ctx context.Context) error {
			probed <- struct{}{}
			_, ok := ctx.Deadline()
			if !ok {
				return errors.New("probe without deadline")
			}
			return errors.New("gateway disconnected")
		},
	})

	rec, body := get(t, h, "/readyz")
	<-probed
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", checks(body)["discord"])
}
