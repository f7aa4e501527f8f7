package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pigeon-sms/pigeon/internal/logging"
)

func setupIdempotentApp(t *testing.T, calls *atomic.Int32) *fiber.App {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/users", func(c *fiber.Ctx) error {
		n := calls.Add(1)
		if c.Query("fail") != "" {
			return fiber.NewError(fiber.StatusConflict, "account already exists")
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": n})
	})
	return app
}

func postUsers(t *testing.T, app *fiber.App, target, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, target, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestIdempotencyWithoutHeaderPassesThrough(t *testing.T) {
	var calls atomic.Int32
	app := setupIdempotentApp(t, &calls)

	status, _ := postUsers(t, app, "/users", "")
	assert.Equal(t, fiber.StatusCreated, status)
	status, _ = postUsers(t, app, "/users", "")
	assert.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	var calls atomic.Int32
	app := setupIdempotentApp(t, &calls)

	status, first := postUsers(t, app, "/users", "abc123")
	require.Equal(t, fiber.StatusCreated, status)

	status, second := postUsers(t, app, "/users", "abc123")
	assert.Equal(t, fiber.StatusCreated, status)
	assert.JSONEq(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	var calls atomic.Int32
	app := setupIdempotentApp(t, &calls)

	status, _ := postUsers(t, app, "/users?fail=1", "retry-me")
	require.Equal(t, fiber.StatusConflict, status)

	status, _ = postUsers(t, app, "/users?fail=1", "retry-me")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, int32(2), calls.Load())
}
