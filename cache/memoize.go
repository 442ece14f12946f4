package cache

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Func is the shape of a memoizable function: a context plus one argument.
// Functions with multiple inputs pack them into a struct so the key
// derivation sees a single value.
type Func[A any, R any] func(ctx context.Context, arg A) (R, error)

// KeyFunc derives a cache key from a function argument.
type KeyFunc func(arg any) (string, error)

type memoConfig struct {
	keyFunc KeyFunc
	ttl     time.Duration
}

// MemoOption configures Memoize and MemoizeShared.
type MemoOption func(*memoConfig)

// WithKeyFunc overrides the default key derivation. The returned key is
// still prefixed with the wrapped function's name. Recommended for
// arguments whose encoded form is not stable (e.g. types with unexported
// state).
func WithKeyFunc(fn KeyFunc) MemoOption {
	return func(c *memoConfig) { c.keyFunc = fn }
}

// WithMemoTTL sets the TTL for memoized results. The cache default is used
// when unset.
func WithMemoTTL(d time.Duration) MemoOption {
	return func(c *memoConfig) { c.ttl = d }
}

func applyMemoOptions(opts []MemoOption) memoConfig {
	var cfg memoConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// memoKey builds "name:<key>" where <key> is either the custom KeyFunc
// output or the xxhash of the msgpack-encoded argument. The name prefix
// keeps distinct functions from colliding and gives Invalidate a handle on
// everything one function produced.
func memoKey(name string, arg any, cfg memoConfig) (string, error) {
	if cfg.keyFunc != nil {
		k, err := cfg.keyFunc(arg)
		if err != nil {
			return "", err
		}
		return name + ":" + k, nil
	}
	data, err := msgpack.Marshal(arg)
	if err != nil {
		return "", fmt.Errorf("cache: cannot derive key from %T: %w", arg, err)
	}
	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], xxhash.Sum64(data))
	return name + ":" + hex.EncodeToString(sum[:]), nil
}

// Memoize wraps fn so results are cached in c under keys derived from the
// argument. All results are cached, including zero values; only a true
// cache miss re-invokes fn. Errors from fn propagate unchanged and are
// never cached. The name is required and becomes the key prefix used for
// invalidation.
func Memoize[A any, R any](c Cache, name string, fn Func[A, R], opts ...MemoOption) Func[A, R] {
	cfg := applyMemoOptions(opts)
	return func(ctx context.Context, arg A) (R, error) {
		var zero R
		key, err := memoKey(name, arg, cfg)
		if err != nil {
			return zero, err
		}
		found, val, err := GetTyped[R](ctx, c, key)
		if err != nil {
			return zero, err
		}
		if found {
			return val, nil
		}
		result, err := fn(ctx, arg)
		if err != nil {
			return zero, err
		}
		// Set errors are not fatal; the computed value is still returned.
		_ = c.Set(ctx, key, result, cfg.ttl)
		return result, nil
	}
}

// MemoizeShared is Memoize plus in-flight de-duplication: concurrent calls
// with equal keys share a single invocation of fn and receive the same
// result. A failed invocation is not cached, so the next call re-invokes.
func MemoizeShared[A any, R any](c Cache, name string, fn Func[A, R], opts ...MemoOption) Func[A, R] {
	cfg := applyMemoOptions(opts)
	var group singleflight.Group
	return func(ctx context.Context, arg A) (R, error) {
		var zero R
		key, err := memoKey(name, arg, cfg)
		if err != nil {
			return zero, err
		}
		found, val, err := GetTyped[R](ctx, c, key)
		if err != nil {
			return zero, err
		}
		if found {
			return val, nil
		}
		v, err, _ := group.Do(key, func() (any, error) {
			// A concurrent caller may have populated the cache while
			// this call waited on the flight.
			found, val, err := GetTyped[R](ctx, c, key)
			if err == nil && found {
				return val, nil
			}
			result, err := fn(ctx, arg)
			if err != nil {
				return nil, err
			}
			_ = c.Set(ctx, key, result, cfg.ttl)
			return result, nil
		})
		if err != nil {
			return zero, err
		}
		return v.(R), nil
	}
}

// Warm precomputes fn for every argument with bounded concurrency, priming
// the cache behind a memoized function. The first error cancels the
// remaining work and is returned.
func Warm[A any, R any](ctx context.Context, fn Func[A, R], args []A, parallelism int) error {
	if parallelism <= 0 {
		parallelism = 4
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, arg := range args {
		arg := arg
		g.Go(func() error {
			_, err := fn(ctx, arg)
			return err
		})
	}
	return g.Wait()
}
