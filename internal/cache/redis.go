// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by GetJSON when the key does not exist.
var ErrMiss = errors.New("cache miss")

// Connect builds a Redis client for addr/db and pings it once with a short
// timeout so misconfiguration surfaces at startup.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:                  addr,
		DB:                    db,
		ContextTimeoutEnabled: true,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// JSON stores JSON-encoded values under a key prefix.
type JSON struct {
	rdb    redis.Cmdable
	prefix string
}

// NewJSON wraps a Redis client. Every key is stored as prefix+key.
func NewJSON(rdb redis.Cmdable, prefix string) *JSON {
	return &JSON{rdb: rdb, prefix: prefix}
}

// GetJSON decodes the value stored at key into dst.
func (c *JSON) GetJSON(ctx context.Context, key string, dst any) error {
	data, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("redis GET %s: %w", c.prefix+key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode cached %s: %w", c.prefix+key, err)
	}
	return nil
}

// SetJSON encodes v and stores it at key. A zero ttl keeps it forever.
func (c *JSON) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.prefix+key, err)
	}
	if err := c.rdb.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", c.prefix+key, err)
	}
	return nil
}

// Delete removes key.
func (c *JSON) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis DEL %s: %w", c.prefix+key, err)
	}
	return nil
}
