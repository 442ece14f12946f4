package cache

import "context"

// DepFunc extracts one dependency value from a source.
type DepFunc[S any] func(source S) any

// NewSelector composes dependency extractors with a combiner into a
// memoized function. The cache key is derived from the tuple of dependency
// outputs, so the combiner only runs again when at least one dependency
// output changes for a given source.
func NewSelector[S any, R any](c Cache, name string, deps []DepFunc[S], combine func(vals []any) (R, error), opts ...MemoOption) func(ctx context.Context, source S) (R, error) {
	cfg := applyMemoOptions(opts)
	return func(ctx context.Context, source S) (R, error) {
		var zero R
		vals := make([]any, len(deps))
		for i, dep := range deps {
			vals[i] = dep(source)
		}
		key, err := memoKey(name, vals, cfg)
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
		result, err := combine(vals)
		if err != nil {
			return zero, err
		}
		_ = c.Set(ctx, key, result, cfg.ttl)
		return result, nil
	}
}
