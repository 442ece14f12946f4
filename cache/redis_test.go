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
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return mr, client
}

func TestRedisSetGet(t *testing.T) {
	_, client := newTestRedis(t)
	defer client.Close()
	ctx := context.Background()
	c := NewRedis(client, WithPrefix("test"))
	defer c.Close()

	found, val, err := c.Get(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, val)

	assert.NoError(t, c.Set(ctx, "key", "value", time.Minute))
	found, val, err = c.Get(ctx, "key")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.NotNil(t, val)

	// Typed read deserializes the msgpack payload.
	ok, str, err := GetTyped[string](ctx, c, "key")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "value", str)
}

func TestRedisExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	defer client.Close()
	ctx := context.Background()
	c := NewRedis(client, WithPrefix("test"))
	defer c.Close()

	assert.NoError(t, c.Set(ctx, "key", "value", time.Second))
	mr.FastForward(2 * time.Second)

	found, _, err := c.Get(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestRedisHasDeleteKeys(t *testing.T) {
	_, client := newTestRedis(t)
	defer client.Close()
	ctx := context.Background()
	c := NewRedis(client, WithPrefix("clinic"))
	defer c.Close()

	assert.NoError(t, c.Set(ctx, "a", 1, time.Minute))
	assert.NoError(t, c.Set(ctx, "b", 2, time.Minute))

	found, err := c.Has(ctx, "a")
	assert.NoError(t, err)
	assert.True(t, found)

	keys, err := c.Keys(ctx)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	size, err := c.Size(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, size)

	ok, err := c.Delete(ctx, "a")
	assert.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.Delete(ctx, "a")
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, c.Clear(ctx))
	size, err = c.Size(ctx)
	assert.NoError(t, err)
	assert.Zero(t, size)
}

func TestRedisStats(t *testing.T) {
	_, client := newTestRedis(t)
	defer client.Close()
	ctx := context.Background()
	c := NewRedis(client, WithPrefix("stats"))
	defer c.Close()

	assert.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	c.Get(ctx, "k")
	c.Get(ctx, "missing")

	stats, err := c.Stats(ctx)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.0001)
	assert.Equal(t, 1, stats.Size)
}

func TestRedisMemoize(t *testing.T) {
	_, client := newTestRedis(t)
	defer client.Close()
	ctx := context.Background()
	c := NewRedis(client, WithPrefix("memo"))
	defer c.Close()

	calls := 0
	fn := Memoize(c, "lookup", func(_ context.Context, id string) (string, error) {
		calls++
		return "record-" + id, nil
	})

	for i := 0; i < 2; i++ {
		v, err := fn(ctx, "p-1")
		assert.NoError(t, err)
		assert.Equal(t, "record-p-1", v)
	}
	assert.Equal(t, 1, calls)
}
