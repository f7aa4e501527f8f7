package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/pigeon-sms/pigeon/internal/auth"
	"github.com/pigeon-sms/pigeon/internal/config"
	"github.com/pigeon-sms/pigeon/internal/infra"
	"github.com/pigeon-sms/pigeon/internal/logging"
	"github.com/pigeon-sms/pigeon/internal/metrics"
	"github.com/pigeon-sms/pigeon/internal/notification"
	"github.com/pigeon-sms/pigeon/internal/registry"
	"github.com/pigeon-sms/pigeon/internal/routes"
	"github.com/pigeon-sms/pigeon/internal/server"
)

const eventStreamMaxLen = 100_000

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.IsDev())

	ctx := context.Background()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL, cfg.AppName)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	store, err := infra.NewStore(ctx, cfg, db, cache)
	if err != nil {
		logger.Error("open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewRecorder(reg)
	if err != nil {
		logger.Error("register metrics", "error", err)
		os.Exit(1)
	}

	notifier := notification.Fanout{notification.NewLoggerNotifier(logger)}
	if cache != nil {
		notifier = append(notifier, notification.NewRedisStreamNotifier(cache, cfg.EventStream, eventStreamMaxLen))
	}

	svc := registry.NewService(store, notifier, recorder)
	if err := bootstrapAdmin(ctx, svc, registry.Identity(cfg.RegistryAdmin), logger); err != nil {
		logger.Error("bootstrap registry admin", "error", err)
		os.Exit(1)
	}
	if err := svc.PublishTotalUsers(ctx); err != nil && !errors.Is(err, registry.ErrNotInitialized) {
		logger.Warn("publish total users", "error", err)
	}

	srv, err := server.New(routes.Deps{
		Cfg:      cfg,
		DB:       db,
		Cache:    cache,
		Logger:   logger,
		Registry: svc,
		Tokens:   auth.NewTokenService(cfg.TokenSecret, cfg.TokenTTL),
		Metrics:  reg,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	logger.Info("registry listening", "addr", cfg.Address(), "store", cfg.StoreBackend)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}

// bootstrapAdmin initializes the registry with admin when one is configured.
// A registry already owned by admin is left alone; one owned by someone else
// is reported and kept.
func bootstrapAdmin(ctx context.Context, svc *registry.Service, admin registry.Identity, logger *slog.Logger) error {
	if admin.IsZero() {
		return nil
	}
	_, err := svc.Initialize(ctx, admin)
	switch {
	case err == nil:
		logger.Info("registry initialized", "admin", admin.String())
		return nil
	case errors.Is(err, registry.ErrAlreadyExists):
		state, err := svc.GetState(ctx)
		if err != nil {
			return err
		}
		if state.Admin != admin {
			logger.Warn("registry already owned by a different admin", "configured", admin.String(), "recorded", state.Admin.String())
		}
		return nil
	default:
		return err
	}
}
