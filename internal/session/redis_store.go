// internal/session/redis_store.go
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps solo state in Redis so several clients of one user can
// share it. Every Set is also published on a per-key channel.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore stores keys as prefix+key.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(k string) string     { return s.prefix + k }
func (s *RedisStore) channel(k string) string { return s.prefix + "changes:" + k }

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(key), value, 0)
		pipe.Publish(ctx, s.channel(key), value)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Subscribe returns once the subscription is confirmed by the server, so
// no write that happens after it is missed.
func (s *RedisStore) Subscribe(ctx context.Context, key string, fn func([]byte)) (func(), error) {
	ps := s.rdb.Subscribe(ctx, s.channel(key))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", key, err)
	}

	ch := ps.Channel()
	go func() {
		for msg := range ch {
			fn([]byte(msg.Payload))
		}
	}()
	return func() { _ = ps.Close() }, nil
}
