package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Strategy selects which entry is removed when the cache is full.
type Strategy string

const (
	// StrategyLRU removes the entry with the oldest last access.
	StrategyLRU Strategy = "lru"
	// StrategyLFU removes the entry with the smallest access count.
	StrategyLFU Strategy = "lfu"
	// StrategyFIFO removes the entry with the oldest creation time,
	// irrespective of access.
	StrategyFIFO Strategy = "fifo"
)

type Cache interface {
	// Get retrieves a value from the cache. Expired entries are removed
	// lazily and reported as a miss.
	Get(ctx context.Context, key string) (bool, any, error)

	// Set stores a value with a TTL. If ttl <= 0, the cache's configured
	// default TTL is used. Any existing entry for the key is replaced
	// with fresh access metadata.
	Set(ctx context.Context, key string, val any, ttl time.Duration) error

	// Has reports whether a live entry exists for the key without
	// touching statistics or access metadata.
	Has(ctx context.Context, key string) (bool, error)

	// Delete removes a key, reporting whether it was present.
	Delete(ctx context.Context, key string) (bool, error)

	// Keys returns the live keys in insertion order.
	Keys(ctx context.Context) ([]string, error)

	// Size returns the number of stored entries, including entries that
	// have expired but not yet been swept.
	Size(ctx context.Context) (int, error)

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Cleanup performs one expiry sweep. Backends that expire natively
	// treat this as a no-op.
	Cleanup(ctx context.Context) error

	// Stats returns a snapshot of cache statistics.
	Stats(ctx context.Context) (Stats, error)

	// Close shuts down the cache and any background work it owns.
	Close() error
}

// Stats is a point-in-time snapshot of cache performance counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
	// HitRate is Hits / (Hits + Misses), zero when no lookups have happened.
	HitRate float64
	// MemoryBytes is a rough estimate of the stored data size, for
	// diagnostics only. Zero for backends that do not track it.
	MemoryBytes int64
}

const (
	// DefaultMaxSize is the entry capacity used when none is configured.
	DefaultMaxSize = 1000
	// DefaultTTL is the entry lifetime used when none is configured.
	DefaultTTL = 5 * time.Minute
	// DefaultQueryTimeout is the per-operation timeout for cache backends
	// that perform I/O (Redis). Prevents indefinite hangs on slow or
	// unresponsive storage.
	DefaultQueryTimeout = 5 * time.Second
)

// config holds the resolved configuration for a cache implementation.
type config struct {
	maxSize      int
	ttl          time.Duration
	strategy     Strategy
	sweep        time.Duration
	statsOff     bool
	queryTimeout time.Duration
	prefix       string
}

// Option configures a Cache implementation.
type Option func(*config)

func applyOptions(opts []Option) config {
	cfg := config{
		maxSize:      DefaultMaxSize,
		ttl:          DefaultTTL,
		strategy:     StrategyLRU,
		queryTimeout: DefaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	// Forgiving validation: degenerate values fall back to defaults
	// instead of erroring.
	if cfg.maxSize <= 0 {
		cfg.maxSize = DefaultMaxSize
	}
	if cfg.ttl <= 0 {
		cfg.ttl = DefaultTTL
	}
	switch cfg.strategy {
	case StrategyLRU, StrategyLFU, StrategyFIFO:
	default:
		cfg.strategy = StrategyLRU
	}
	if cfg.sweep <= 0 {
		cfg.sweep = cfg.ttl / 2
	}
	return cfg
}

// WithMaxSize sets the entry capacity. Defaults to DefaultMaxSize (1000).
func WithMaxSize(n int) Option {
	return func(c *config) { c.maxSize = n }
}

// WithTTL sets the default entry lifetime. Defaults to DefaultTTL (5 minutes).
func WithTTL(d time.Duration) Option {
	return func(c *config) { c.ttl = d }
}

// WithStrategy sets the eviction strategy. Defaults to StrategyLRU.
func WithStrategy(s Strategy) Option {
	return func(c *config) { c.strategy = s }
}

// WithSweepInterval sets the interval for background expired entry cleanup.
// Defaults to half the configured TTL.
func WithSweepInterval(d time.Duration) Option {
	return func(c *config) { c.sweep = d }
}

// WithStatsDisabled turns off hit/miss accounting.
func WithStatsDisabled() Option {
	return func(c *config) { c.statsOff = true }
}

// WithQueryTimeout sets the per-operation timeout for I/O-backed caches.
// Defaults to DefaultQueryTimeout (5 seconds).
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// WithPrefix sets the key prefix for namespacing cache keys.
// Applies to the Redis backend. Defaults to empty (no prefix).
func WithPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}

// GetTyped retrieves a typed value from the cache.
// For in-memory caches, it performs a direct type assertion.
// For serialized caches (like Redis), it deserializes from []byte using msgpack.
func GetTyped[T any](ctx context.Context, c Cache, key string) (bool, T, error) {
	found, val, err := c.Get(ctx, key)
	if !found || err != nil {
		var zero T
		return false, zero, err
	}
	// Direct type assertion (works for in-memory cache)
	if typed, ok := val.(T); ok {
		return true, typed, nil
	}
	// Deserialize from []byte (works for serialized caches like Redis)
	if data, ok := val.([]byte); ok {
		var result T
		if err := msgpack.Unmarshal(data, &result); err != nil {
			var zero T
			return false, zero, fmt.Errorf("cache: failed to unmarshal value: %w", err)
		}
		return true, result, nil
	}
	var zero T
	return false, zero, fmt.Errorf("cache: cannot convert value of type %T to %T", val, zero)
}

// Invoker is a function that produces a value of type T.
// The bool return indicates whether a value was found. Return false to signal
// "not found" without caching a zero value (e.g. a record that does not exist).
type Invoker[T any] func(ctx context.Context) (T, bool, error)

// ExecConfig configures the Exec helper.
type ExecConfig struct {
	// Key is the cache key. Required.
	Key string
	// TTL for the cached value. The cache default is used if zero.
	TTL time.Duration
}

// Exec is a cache-aside helper. It checks the cache for config.Key first.
// On a cache hit, it returns the cached value with found=true.
// On a cache miss, it calls invoke to produce the value. If invoke returns
// found=true, the value is stored in the cache and returned with found=true.
// If invoke returns found=false, nothing is cached and found=false is returned.
// If invoke or the cache returns an error, the error is propagated.
// If the cache Set fails after a successful invoke, the value is still
// returned (the Set error is swallowed since the primary operation succeeded).
func Exec[T any](ctx context.Context, config ExecConfig, c Cache, invoke Invoker[T]) (bool, T, error) {
	// Try cache first.
	found, val, err := GetTyped[T](ctx, c, config.Key)
	if err != nil {
		var zero T
		return false, zero, err
	}
	if found {
		return true, val, nil
	}

	// Cache miss — invoke the function.
	result, ok, err := invoke(ctx)
	if err != nil {
		var zero T
		return false, zero, err
	}

	// Invoker said "not found" — do not cache.
	if !ok {
		var zero T
		return false, zero, nil
	}

	// Set errors are not fatal; the computed value is still returned.
	_ = c.Set(ctx, config.Key, result, config.TTL)

	return true, result, nil
}
