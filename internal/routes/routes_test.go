package routes

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pigeon-sms/pigeon/internal/auth"
	"github.com/pigeon-sms/pigeon/internal/config"
	"github.com/pigeon-sms/pigeon/internal/logging"
	"github.com/pigeon-sms/pigeon/internal/metrics"
	"github.com/pigeon-sms/pigeon/internal/middleware"
	"github.com/pigeon-sms/pigeon/internal/registry"
)

func setupApp(t *testing.T) (*fiber.App, *auth.TokenService) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	reg := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(reg)
	require.NoError(t, err)

	tokens := auth.NewTokenService("routes-secret", time.Hour)
	app := fiber.New()
	err = Setup(app, Deps{
		Cfg: config.Config{
			AppEnv:            "production",
			StoreBackend:      config.StoreMemory,
			MutationRateLimit: 100,
			IdempotencyTTL:    time.Minute,
		},
		Cache:    cache,
		Logger:   logging.Discard(),
		Registry: registry.NewService(registry.NewMemoryStore(), nil, recorder),
		Tokens:   tokens,
		Metrics:  reg,
	})
	require.NoError(t, err)
	return app, tokens
}

func send(t *testing.T, app *fiber.App, req *http.Request) (int, string) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func authed(t *testing.T, tokens *auth.TokenService, method, path, body string) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	token, err := tokens.Issue("admin-key")
	require.NoError(t, err)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	return req
}

func TestSetupRequiresServices(t *testing.T) {
	assert.Error(t, Setup(fiber.New(), Deps{}))
}

func TestOpsRoutes(t *testing.T) {
	app, _ := setupApp(t)

	status, body := send(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"status":"ok"`)

	status, body = send(t, app, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"store":"memory"`)
	assert.Contains(t, body, `"redis":"ok"`)
}

func TestRegistryFlowThroughRoutes(t *testing.T) {
	app, tokens := setupApp(t)

	status, _ := send(t, app, httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(`{"phone":"1"}`)))
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = send(t, app, authed(t, tokens, http.MethodPost, "/api/v1/registry/initialize", ""))
	require.Equal(t, http.StatusCreated, status)

	onboard := authed(t, tokens, http.MethodPost, "/api/v1/users", `{"phone":"15551234","address":"0xA","encrypted_mnemonic":"enc1","created_at":1000}`)
	onboard.Header.Set(middleware.IdempotencyKeyHeader, "onboard-1")
	status, _ = send(t, app, onboard)
	require.Equal(t, http.StatusCreated, status)

	retry := authed(t, tokens, http.MethodPost, "/api/v1/users", `{"phone":"15551234","address":"0xA","encrypted_mnemonic":"enc1","created_at":1000}`)
	retry.Header.Set(middleware.IdempotencyKeyHeader, "onboard-1")
	status, _ = send(t, app, retry)
	assert.Equal(t, http.StatusCreated, status, "retry with the same key replays the first response")

	status, _ = send(t, app, authed(t, tokens, http.MethodPost, "/api/v1/users", `{"phone":"15551234"}`))
	assert.Equal(t, http.StatusConflict, status)

	status, body := send(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/users/15551234", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"address":"0xA"`)

	status, body = send(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/registry/total-users", nil))
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"total_users":1}`, body)

	status, body = send(t, app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `pigeon_registry_operations_total{operation="onboard_user",outcome="already_exists"} 1`)
	assert.Contains(t, body, "pigeon_registry_users 1")
}
