package cache

import (
	"context"
	"time"
)

type compositeCache struct {
	caches []Cache
}

var _ Cache = (*compositeCache)(nil)

// NewComposite returns a Cache that chains multiple caches together, e.g.
// an in-memory L1 in front of a Redis L2.
// Get checks caches in order and returns the first hit.
// Set, Delete, Clear and Cleanup apply to all caches.
// At least one cache must be provided; panics if empty.
func NewComposite(caches ...Cache) Cache {
	if len(caches) == 0 {
		panic("cache: NewComposite requires at least one cache")
	}
	return &compositeCache{caches: caches}
}

func (c *compositeCache) Get(ctx context.Context, key string) (bool, any, error) {
	for _, cache := range c.caches {
		found, val, err := cache.Get(ctx, key)
		if err != nil {
			return false, nil, err
		}
		if found {
			return true, val, nil
		}
	}
	return false, nil, nil
}

func (c *compositeCache) Set(ctx context.Context, key string, val any, ttl time.Duration) error {
	var firstErr error
	for _, cache := range c.caches {
		if err := cache.Set(ctx, key, val, ttl); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *compositeCache) Has(ctx context.Context, key string) (bool, error) {
	for _, cache := range c.caches {
		found, err := cache.Has(ctx, key)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
	return false, nil
}

func (c *compositeCache) Delete(ctx context.Context, key string) (bool, error) {
	anyFound := false
	for _, cache := range c.caches {
		found, err := cache.Delete(ctx, key)
		if err != nil {
			return anyFound, err
		}
		if found {
			anyFound = true
		}
	}
	return anyFound, nil
}

// Keys returns the union of keys across the chain, first occurrence wins.
func (c *compositeCache) Keys(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var keys []string
	for _, cache := range c.caches {
		layer, err := cache.Keys(ctx)
		if err != nil {
			return nil, err
		}
		for _, key := range layer {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (c *compositeCache) Size(ctx context.Context) (int, error) {
	keys, err := c.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (c *compositeCache) Clear(ctx context.Context) error {
	var firstErr error
	for _, cache := range c.caches {
		if err := cache.Clear(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *compositeCache) Cleanup(ctx context.Context) error {
	var firstErr error
	for _, cache := range c.caches {
		if err := cache.Cleanup(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats sums counters across the chain. Size is the union key count.
func (c *compositeCache) Stats(ctx context.Context) (Stats, error) {
	var out Stats
	for _, cache := range c.caches {
		stats, err := cache.Stats(ctx)
		if err != nil {
			return Stats{}, err
		}
		out.Hits += stats.Hits
		out.Misses += stats.Misses
		out.Evictions += stats.Evictions
		out.MemoryBytes += stats.MemoryBytes
	}
	size, err := c.Size(ctx)
	if err != nil {
		return Stats{}, err
	}
	out.Size = size
	if total := out.Hits + out.Misses; total > 0 {
		out.HitRate = float64(out.Hits) / float64(total)
	}
	return out, nil
}

func (c *compositeCache) Close() error {
	var firstErr error
	for _, cache := range c.caches {
		if err := cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
