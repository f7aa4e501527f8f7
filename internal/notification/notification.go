package notification

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KindRegistryInitialized is emitted once, when the admin is recorded.
	KindRegistryInitialized = "registry.initialized"
	// KindUserOnboarded is emitted after a user account is created.
	KindUserOnboarded = "user.onboarded"
	// KindUserUpdated is emitted after a user's wallet data is replaced.
	KindUserUpdated = "user.updated"
	// KindUserDeleted is emitted after a user account is released.
	KindUserDeleted = "user.deleted"
)

// Event describes a committed registry mutation.
type Event struct {
	Kind           string
	Actor          string
	Phone          string
	TotalUsers     uint64
	ReclaimedSpace int
	At             time.Time
}

// Notifier delivers events to downstream systems.
type Notifier interface {
	Send(ctx context.Context, event Event) error
}

// LoggerNotifier writes events to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the event to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, event Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	attrs := []any{
		slog.String("kind", event.Kind),
		slog.String("actor", event.Actor),
		slog.Uint64("total_users", event.TotalUsers),
	}
	if event.Phone != "" {
		attrs = append(attrs, slog.String("phone", event.Phone))
	}
	if event.ReclaimedSpace > 0 {
		attrs = append(attrs, slog.Int("reclaimed_space", event.ReclaimedSpace), slog.String("reclaimed_to", event.Actor))
	}
	n.logger.InfoContext(ctx, "registry event", attrs...)
	return nil
}

// RedisStreamNotifier appends events to a Redis stream.
type RedisStreamNotifier struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamNotifier builds a notifier writing to stream, trimmed to
// roughly maxLen entries when maxLen is positive.
func NewRedisStreamNotifier(client *redis.Client, stream string, maxLen int64) *RedisStreamNotifier {
	return &RedisStreamNotifier{client: client, stream: stream, maxLen: maxLen}
}

// Send appends the event with XADD.
func (n *RedisStreamNotifier) Send(ctx context.Context, event Event) error {
	args := &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]any{
			"kind":            event.Kind,
			"actor":           event.Actor,
			"phone":           event.Phone,
			"total_users":     strconv.FormatUint(event.TotalUsers, 10),
			"reclaimed_space": event.ReclaimedSpace,
			"at":              event.At.UTC().Format(time.RFC3339Nano),
		},
	}
	if n.maxLen > 0 {
		args.MaxLen = n.maxLen
		args.Approx = true
	}
	return n.client.XAdd(ctx, args).Err()
}

// Fanout delivers every event to each notifier in order.
type Fanout []Notifier

// Send forwards event to all notifiers and joins their errors.
func (f Fanout) Send(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
