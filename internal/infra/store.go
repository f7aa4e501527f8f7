package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/pigeon-sms/pigeon/internal/config"
	"github.com/pigeon-sms/pigeon/internal/registry"
)

// NewStore returns the account store selected by cfg.StoreBackend. db and
// cache must be connected when their backend is selected.
func NewStore(ctx context.Context, cfg config.Config, db *pgxpool.Pool, cache *redis.Client) (registry.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return registry.NewMemoryStore(), nil
	case config.StorePostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres store requires a database pool")
		}
		return registry.NewPostgresStore(ctx, db)
	case config.StoreRedis:
		if cache == nil {
			return nil, fmt.Errorf("redis store requires a redis client")
		}
		return registry.NewRedisStore(cache), nil
	case config.StoreSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		return registry.NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
