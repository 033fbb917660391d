package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bayardlab/bayard-gateway/internal/ratelimit"
)

type fakeStore struct {
	keys map[string]bool
	err  error
}

func (f *fakeStore) KeyExists(_ context.Context, key string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.keys[key], nil
}

func gateApp(cfg GateConfig) *fiber.App {
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.New(ratelimit.Config{})
	}
	app := fiber.New()
	app.Use(NewGate(cfg).Middleware())
	app.Post("/api/query", func(c *fiber.Ctx) error {
		return c.SendString("handled")
	})
	app.Get("/health-check", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	return app
}

func request(t *testing.T, app *fiber.App, method, path string, header map[string]string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func errorMessage(t *testing.T, body string) string {
	t.Helper()
	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	return payload["error"]
}

func TestGate_RegisteredKeyAdmitted(t *testing.T) {
	app := gateApp(GateConfig{Store: &fakeStore{keys: map[string]bool{"good-key": true}}})

	resp, body := request(t, app, http.MethodPost, "/api/query", map[string]string{"X-API-Key": "good-key"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "handled", body)
}

func TestGate_NoCredential(t *testing.T) {
	app := gateApp(GateConfig{Store: &fakeStore{}})

	resp, body := request(t, app, http.MethodPost, "/api/query", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "API key not configured", errorMessage(t, body))
}

func TestGate_UnregisteredKey(t *testing.T) {
	app := gateApp(GateConfig{Store: &fakeStore{}})

	resp, body := request(t, app, http.MethodPost, "/api/query", map[string]string{"X-API-Key": "bad-key"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid API key", errorMessage(t, body))
}

func TestGate_StoreFailure(t *testing.T) {
	app := gateApp(GateConfig{Store: &fakeStore{err: errors.New("db locked")}})

	resp, body := request(t, app, http.MethodPost, "/api/query", map[string]string{"X-API-Key": "any"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Failed to validate API key", errorMessage(t, body))
}

func TestGate_SharedKeyOverridesCallerHeader(t *testing.T) {
	app := gateApp(GateConfig{
		SharedKey: "server-key",
		Store:     &fakeStore{keys: map[string]bool{"server-key": true}},
	})

	// The caller's unregistered key is ignored while the configured key
	// takes precedence.
	resp, _ := request(t, app, http.MethodPost, "/api/query", map[string]string{"X-API-Key": "bad-key"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGate_RateLimitExceeded(t *testing.T) {
	limiter := ratelimit.New(ratelimit.Config{MaxRequests: 2, WindowSeconds: 3600})
	app := gateApp(GateConfig{
		Store:   &fakeStore{keys: map[string]bool{"good-key": true}},
		Limiter: limiter,
	})
	header := map[string]string{"X-API-Key": "good-key"}

	for i := 0; i < 2; i++ {
		resp, _ := request(t, app, http.MethodPost, "/api/query", header)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := request(t, app, http.MethodPost, "/api/query", header)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "Rate limit exceeded", errorMessage(t, body))
}

func TestGate_ExemptPathSkipsChecks(t *testing.T) {
	app := gateApp(GateConfig{
		Store:       &fakeStore{},
		ExemptPaths: []string{"/health-check"},
	})

	resp, body := request(t, app, http.MethodGet, "/health-check", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body)
}
