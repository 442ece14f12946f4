package cache

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

type redisCache struct {
	client *redis.Client
	cfg    config

	hits   atomic.Uint64
	misses atomic.Uint64
}

var _ Cache = (*redisCache)(nil)

// NewRedis returns a Cache backed by Redis. Values are msgpack-serialized
// into hashes and expire via native Redis TTL, so eviction strategies and
// the background sweep do not apply. Configure WithPrefix when the Redis
// instance is shared, otherwise Keys, Size and Clear operate on the whole
// keyspace. The caller owns the redis.Client lifecycle — Close is a no-op
// on the client.
func NewRedis(client *redis.Client, opts ...Option) Cache {
	return &redisCache{
		client: client,
		cfg:    applyOptions(opts),
	}
}

func (c *redisCache) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.cfg.queryTimeout)
}

func (c *redisCache) prefixKey(key string) string {
	if c.cfg.prefix == "" {
		return key
	}
	return c.cfg.prefix + ":" + key
}

func (c *redisCache) scanPattern() string {
	if c.cfg.prefix == "" {
		return "*"
	}
	return c.cfg.prefix + ":*"
}

func (c *redisCache) Get(ctx context.Context, key string) (bool, any, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	k := c.prefixKey(key)
	data, err := c.client.HGet(qctx, k, "v").Bytes()
	if err == redis.Nil {
		if !c.cfg.statsOff {
			c.misses.Add(1)
		}
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	if !c.cfg.statsOff {
		c.hits.Add(1)
	}
	// Increment the stored hit counter (fire-and-forget, don't fail the Get).
	c.client.HIncrBy(qctx, k, "h", 1)
	return true, data, nil
}

func (c *redisCache) Set(ctx context.Context, key string, val any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.cfg.ttl
	}
	data, err := msgpack.Marshal(val)
	if err != nil {
		return err
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	k := c.prefixKey(key)
	pipe := c.client.Pipeline()
	pipe.HSet(qctx, k, "v", data, "h", 0)
	pipe.Expire(qctx, k, ttl)
	_, err = pipe.Exec(qctx)
	return err
}

func (c *redisCache) Has(ctx context.Context, key string) (bool, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	n, err := c.client.Exists(qctx, c.prefixKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *redisCache) Delete(ctx context.Context, key string) (bool, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	result, err := c.client.Del(qctx, c.prefixKey(key)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

func (c *redisCache) Keys(ctx context.Context) ([]string, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	var keys []string
	iter := c.client.Scan(qctx, 0, c.scanPattern(), 0).Iterator()
	for iter.Next(qctx) {
		key := iter.Val()
		if c.cfg.prefix != "" {
			key = strings.TrimPrefix(key, c.cfg.prefix+":")
		}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (c *redisCache) Size(ctx context.Context) (int, error) {
	keys, err := c.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (c *redisCache) Clear(ctx context.Context) error {
	keys, err := c.Keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = c.prefixKey(key)
	}
	return c.client.Del(qctx, full...).Err()
}

// Cleanup is a no-op — Redis expires keys natively.
func (c *redisCache) Cleanup(_ context.Context) error {
	return nil
}

// Stats reports hit/miss counters observed by this client. Size requires a
// keyspace scan; memory is not estimated for remote storage.
func (c *redisCache) Stats(ctx context.Context) (Stats, error) {
	size, err := c.Size(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   size,
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats, nil
}

// Close is a no-op — the caller owns the redis.Client lifecycle.
func (c *redisCache) Close() error {
	return nil
}
