package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisStorePutGet(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	s := NewRedisStore(client, WithStoreKeyPrefix("test"))

	val, ok, err := s.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, val)

	assert.NoError(t, s.Put(ctx, "k", []byte("v"), time.Minute))
	val, ok, err = s.Get(ctx, "k")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), val)
}

func TestRedisStoreTTL(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	s := NewRedisStore(client)

	assert.NoError(t, s.Put(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(time.Minute + time.Second)

	ok, err := s.Has(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreForeverHasNoTTL(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	s := NewRedisStore(client)

	assert.NoError(t, s.Put(ctx, "k", []byte("v"), 0))
	mr.FastForward(24 * time.Hour)

	ok, err := s.Has(ctx, "k")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStoreForget(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	s := NewRedisStore(client)

	assert.NoError(t, s.Put(ctx, "k", []byte("v"), time.Minute))
	ok, err := s.Forget(ctx, "k")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Forget(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreFlushOnlyOwnKeys(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	s := NewRedisStore(client, WithStoreKeyPrefix("mine"))

	assert.NoError(t, s.Put(ctx, "k", []byte("v"), time.Minute))
	mr.Set("cotenant", "untouched")

	assert.NoError(t, s.Flush(ctx))
	ok, _ := s.Has(ctx, "k")
	assert.False(t, ok)
	assert.True(t, mr.Exists("cotenant"))
}

func TestRedisStoreSize(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	s := NewRedisStore(client)

	assert.NoError(t, s.Put(ctx, "a", []byte("12"), time.Minute))
	assert.NoError(t, s.Put(ctx, "b", []byte("3456"), time.Minute))

	info, err := s.Size(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), info.Count)
	assert.Equal(t, int64(6), info.Bytes)
}

func TestRedisStoreSizeSelfHealsExpired(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	s := NewRedisStore(client)

	assert.NoError(t, s.Put(ctx, "gone", []byte("v"), time.Second))
	assert.NoError(t, s.Put(ctx, "live", []byte("v"), time.Hour))
	mr.FastForward(2 * time.Second)

	info, err := s.Size(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), info.Count)
}

func TestRedisStoreExpiresIn(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	s := NewRedisStore(client).(*redisStore)

	assert.NoError(t, s.Put(ctx, "bounded", []byte("v"), time.Minute))
	assert.NoError(t, s.Put(ctx, "forever", []byte("v"), 0))

	rem, bounded, err := s.ExpiresIn(ctx, "bounded")
	assert.NoError(t, err)
	assert.True(t, bounded)
	assert.Positive(t, rem)

	_, bounded, err = s.ExpiresIn(ctx, "forever")
	assert.NoError(t, err)
	assert.False(t, bounded)

	rem, bounded, err = s.ExpiresIn(ctx, "missing")
	assert.NoError(t, err)
	assert.True(t, bounded)
	assert.LessOrEqual(t, rem, time.Duration(0))
}
