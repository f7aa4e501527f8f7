package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_NAME", "APP_ENV", "PORT", "LOG_LEVEL", "STORE_BACKEND", "DATABASE_URL", "REDIS_URL",
		"SQLITE_PATH", "TOKEN_SECRET", "REGISTRY_ADMIN", "EVENT_STREAM",
		tokenTTLEnvVar, mutationLimitEnvVar, shutdownSecondsEnvVar, shutdownDurationEnvVar,
		idemTTLSecondsEnvVar, idemTTLDurEnvVar,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, defaultShutdownDelay, cfg.ShutdownPeriod)
	assert.Equal(t, defaultIdempotencyTTL, cfg.IdempotencyTTL)
	assert.Equal(t, defaultMutationLimit, cfg.MutationRateLimit)
	assert.NotEmpty(t, cfg.TokenSecret)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", ":9090")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/pigeon")
	t.Setenv(shutdownSecondsEnvVar, "3")
	t.Setenv(idemTTLDurEnvVar, "90m")
	t.Setenv(tokenTTLEnvVar, "15m")
	t.Setenv("REGISTRY_ADMIN", " admin-key ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Address())
	assert.Equal(t, StorePostgres, cfg.StoreBackend)
	assert.Equal(t, 3*time.Second, cfg.ShutdownPeriod)
	assert.Equal(t, 90*time.Minute, cfg.IdempotencyTTL)
	assert.Equal(t, 15*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "admin-key", cfg.RegistryAdmin)
}

func TestLoadRequiresBackendURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", StoreRedis)

	_, err := Load()
	assert.ErrorContains(t, err, "REDIS_URL")
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "etcd")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresSecretOutsideDev(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	assert.ErrorContains(t, err, "TOKEN_SECRET")
}

func TestLoadInvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv(shutdownDurationEnvVar, "soon")

	_, err := Load()
	assert.Error(t, err)
}
