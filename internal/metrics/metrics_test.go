package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/pigeon-sms/pigeon/internal/registry"
)

func TestRecorderTracksRegistryOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewRecorder(reg)
	require.NoError(t, err)

	svc := registry.NewService(registry.NewMemoryStore(), nil, rec)
	ctx := context.Background()

	_, err = svc.Initialize(ctx, "admin")
	require.NoError(t, err)
	_, err = svc.OnboardUser(ctx, "admin", registry.OnboardInput{Phone: "15551234567", Address: "addrX", EncryptedMnemonic: "cipherY", CreatedAt: 1000})
	require.NoError(t, err)
	_, err = svc.OnboardUser(ctx, "intruder", registry.OnboardInput{Phone: "15550000000"})
	require.ErrorIs(t, err, registry.ErrUnauthorized)

	require.Equal(t, float64(1), testutil.ToFloat64(rec.users))
	require.Equal(t, float64(1), testutil.ToFloat64(rec.operations.WithLabelValues(registry.OpOnboardUser, "ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(rec.operations.WithLabelValues(registry.OpOnboardUser, "unauthorized")))
}

func TestRecorderRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRecorder(reg)
	require.NoError(t, err)

	_, err = NewRecorder(reg)
	require.Error(t, err)
}
