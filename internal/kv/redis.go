package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisRetries bounds how many times Update re-runs its callback
// after a concurrent writer invalidated a watched key.
const DefaultRedisRetries = 8

// ErrConflict is returned when Update could not commit within the retry
// budget because other writers kept changing the keys it read.
var ErrConflict = errors.New("kv: transaction conflict")

// Redis is a Store over a Redis server. Keys are namespaced by prefix so
// several deployments can share one database.
//
// Update uses optimistic concurrency: every key read inside the callback is
// WATCHed, writes are buffered and flushed in MULTI/EXEC. If a watched key
// changed, the callback runs again with fresh reads.
type Redis struct {
	client  redis.UniversalClient
	prefix  string
	retries int
}

// NewRedis wraps a connected client.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix, retries: DefaultRedisRetries}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr, prefix string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return NewRedis(client, prefix), nil
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

// View reads directly; Redis offers no read snapshot without a transaction,
// and all readers here tolerate per-key consistency.
func (r *Redis) View(ctx context.Context, fn func(Reader) error) error {
	return fn(r)
}

func (r *Redis) Update(ctx context.Context, fn func(Txn) error) error {
	for attempt := 0; attempt < r.retries; attempt++ {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			t := &redisTxn{r: r, tx: tx, writes: map[string]*string{}}
			if err := fn(t); err != nil {
				return err
			}
			if len(t.writes) == 0 {
				return nil
			}
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for k, v := range t.writes {
					if v == nil {
						pipe.Del(ctx, r.key(k))
						continue
					}
					pipe.Set(ctx, r.key(k), *v, 0)
				}
				return nil
			})
			return err
		})
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}

func (r *Redis) Close() error {
	return r.client.Close()
}

type redisTxn struct {
	r      *Redis
	tx     *redis.Tx
	writes map[string]*string
}

func (t *redisTxn) Get(ctx context.Context, key string) (string, bool, error) {
	if v, staged := t.writes[key]; staged {
		if v == nil {
			return "", false, nil
		}
		return *v, true, nil
	}

	full := t.r.key(key)
	if err := t.tx.Watch(ctx, full).Err(); err != nil {
		return "", false, fmt.Errorf("watch %q: %w", key, err)
	}
	v, err := t.tx.Get(ctx, full).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return v, true, nil
}

func (t *redisTxn) Set(ctx context.Context, key, value string) error {
	t.writes[key] = &value
	return nil
}

func (t *redisTxn) Remove(ctx context.Context, key string) error {
	t.writes[key] = nil
	return nil
}
