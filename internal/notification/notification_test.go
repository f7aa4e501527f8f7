package notification

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerNotifierWritesEvent(t *testing.T) {
	var buf bytes.Buffer
	n := NewLoggerNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := n.Send(context.Background(), Event{Kind: KindUserDeleted, Actor: "admin-key", Phone: "15551234", ReclaimedSpace: 616})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"kind":"user.deleted"`)
	assert.Contains(t, out, `"phone":"15551234"`)
	assert.Contains(t, out, `"reclaimed_space":616`)
}

func TestRedisStreamNotifierAppends(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	n := NewRedisStreamNotifier(client, "registry-events", 0)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, n.Send(ctx, Event{Kind: KindUserOnboarded, Actor: "admin-key", Phone: "15551234", TotalUsers: 1, At: at}))
	require.NoError(t, n.Send(ctx, Event{Kind: KindUserUpdated, Actor: "admin-key", Phone: "15551234", TotalUsers: 1, At: at}))

	entries, err := client.XRange(ctx, "registry-events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, KindUserOnboarded, entries[0].Values["kind"])
	assert.Equal(t, "1", entries[0].Values["total_users"])
	assert.Equal(t, at.Format(time.RFC3339Nano), entries[0].Values["at"])
	assert.Equal(t, KindUserUpdated, entries[1].Values["kind"])
}

type failingNotifier struct{ err error }

func (f failingNotifier) Send(context.Context, Event) error { return f.err }

type countingNotifier struct{ n int }

func (c *countingNotifier) Send(context.Context, Event) error {
	c.n++
	return nil
}

func TestFanoutDeliversToAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	counter := &countingNotifier{}
	fan := Fanout{failingNotifier{err: boom}, nil, counter}

	err := fan.Send(context.Background(), Event{Kind: KindRegistryInitialized})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, counter.n)
}
