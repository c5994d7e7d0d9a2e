package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/THoguet/random-lol/internal/random"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, "user:42:"), mr
}

func TestRedisStore_GetSet(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	_, ok, err := store.Get(ctx, KeyRerollBank)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, KeyRerollBank, []byte("4")))
	v, ok, err := store.Get(ctx, KeyRerollBank)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "4", string(v))

	raw, err := mr.Get("user:42:" + KeyRerollBank)
	require.NoError(t, err)
	assert.Equal(t, "4", raw)
}

func TestRedisStore_Subscribe(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)

	got := make(chan string, 1)
	cancel, err := store.Subscribe(ctx, KeyFearless, func(v []byte) { got <- string(v) })
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, store.Set(ctx, KeyFearless, []byte("false")))
	select {
	case v := <-got:
		assert.Equal(t, "false", v)
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestRedisStore_SharedBetweenSessions(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)
	writer := newState(t, store)

	reader, err := New(ctx, store, random.NewSecure(), quietLogger())
	require.NoError(t, err)
	assert.Equal(t, writer.View().Assignments, reader.View().Assignments)

	stop, err := reader.Watch(ctx)
	require.NoError(t, err)
	defer stop()

	var mu sync.Mutex
	updates := 0
	reader.Subscribe(func(View) {
		mu.Lock()
		updates++
		mu.Unlock()
	})

	require.NoError(t, writer.SetFearlessDraft(ctx, false))
	assert.Eventually(t, func() bool { return !reader.View().Fearless }, 2*time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Positive(t, updates)
	mu.Unlock()
}
