package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/pigeon-sms/pigeon/internal/auth"
	"github.com/pigeon-sms/pigeon/internal/config"
	"github.com/pigeon-sms/pigeon/internal/middleware"
	"github.com/pigeon-sms/pigeon/internal/registry"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Registry *registry.Service
	Tokens   *auth.TokenService
	Metrics  prometheus.Gatherer
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Registry == nil {
		return fmt.Errorf("registry service is required")
	}
	if d.Tokens == nil {
		return fmt.Errorf("token service is required")
	}
	if d.Metrics == nil {
		d.Metrics = prometheus.DefaultGatherer
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	RegisterMetricsRoute(app, d.Metrics)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.RequestIDHeader).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	handler := registry.NewHandler(d.Registry)
	RegisterRegistryReadRoutes(api, handler)

	// Everything below requires a caller token.
	gated := []fiber.Handler{
		middleware.Caller(d.Tokens),
		middleware.MutationRateLimit(d.Cache, d.Cfg.MutationRateLimit, d.Logger),
	}
	if d.Cache != nil {
		gated = append(gated, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterRegistryMutationRoutes(api.Group("", gated...), handler)

	return nil
}
