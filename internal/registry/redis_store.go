package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	redisAccountPrefix = "registry:account:"
	maxWatchAttempts   = 3
)

// RedisStore keeps one hash per account and commits updates with
// WATCH/MULTI/EXEC on the declared addresses.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Update implements Store.Update. When another writer touches a watched key
// the whole transaction, including fn, is evaluated again from fresh state.
func (s *RedisStore) Update(ctx context.Context, accounts []Address, fn func(ctx context.Context, tx Tx) error) error {
	keys := make([]string, len(accounts))
	for i, addr := range accounts {
		keys[i] = redisAccountKey(addr)
	}

	txf := func(rtx *redis.Tx) error {
		staged := newStagedTx(func(ctx context.Context, addr Address) (Account, bool, error) {
			return readRedisAccount(ctx, rtx, addr)
		}, false)
		if err := fn(ctx, staged); err != nil {
			return err
		}
		if len(staged.writes) == 0 {
			return nil
		}
		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, w := range staged.writes {
				key := redisAccountKey(w.addr)
				switch w.op {
				case opCreate, opPut:
					pipe.HSet(ctx, key,
						"kind", int(w.acct.Kind),
						"space", w.acct.Space,
						"data", w.acct.Data,
					)
				case opDelete:
					pipe.Del(ctx, key)
				}
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxWatchAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return ErrConflict
}

// View implements Store.View.
func (s *RedisStore) View(ctx context.Context, _ []Address, fn func(ctx context.Context, tx Tx) error) error {
	return fn(ctx, newStagedTx(func(ctx context.Context, addr Address) (Account, bool, error) {
		return readRedisAccount(ctx, s.client, addr)
	}, true))
}

// Close is a no-op; the client is owned by the caller.
func (s *RedisStore) Close() error { return nil }

func redisAccountKey(addr Address) string {
	return redisAccountPrefix + addr.String()
}

type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func readRedisAccount(ctx context.Context, c hashReader, addr Address) (Account, bool, error) {
	fields, err := c.HGetAll(ctx, redisAccountKey(addr)).Result()
	if err != nil {
		return Account{}, false, fmt.Errorf("read account %s: %w", addr, err)
	}
	if len(fields) == 0 {
		return Account{}, false, nil
	}
	kind, err := strconv.ParseUint(fields["kind"], 10, 8)
	if err != nil {
		return Account{}, false, fmt.Errorf("account %s kind: %v: %w", addr, err, ErrCorruptAccount)
	}
	space, err := strconv.Atoi(fields["space"])
	if err != nil {
		return Account{}, false, fmt.Errorf("account %s space: %v: %w", addr, err, ErrCorruptAccount)
	}
	return Account{Kind: Kind(kind), Space: space, Data: []byte(fields["data"])}, true, nil
}
