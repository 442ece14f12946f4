package cache

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

var ErrDuplicateCache = errors.New("cache already registered under that name")

// Registry tracks a set of named caches so call sites that share caches
// (general memoization, selectors, API responses) can inspect and reset
// them as a group. Construct one per application instead of relying on
// package-level globals; tests get isolated registries for free.
type Registry struct {
	mu     sync.RWMutex
	caches map[string]Cache
}

func NewRegistry() *Registry {
	return &Registry{caches: make(map[string]Cache)}
}

// Register adds a cache under a unique name.
func (r *Registry) Register(name string, c Cache) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.caches[name]; ok {
		return errors.Wrapf(ErrDuplicateCache, "%s", name)
	}
	r.caches[name] = c
	return nil
}

// Lookup returns the cache registered under name, if any.
func (r *Registry) Lookup(name string) (Cache, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.caches[name]
	return c, ok
}

// Stats returns a snapshot per registered cache.
func (r *Registry) Stats(ctx context.Context) (map[string]Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Stats, len(r.caches))
	for name, c := range r.caches {
		stats, err := c.Stats(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "stats for %s", name)
		}
		out[name] = stats
	}
	return out, nil
}

// ClearAll empties every registered cache.
func (r *Registry) ClearAll(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, c := range r.caches {
		if err := c.Clear(ctx); err != nil {
			return errors.Wrapf(err, "clear %s", name)
		}
	}
	return nil
}

// CloseAll shuts down every registered cache and forgets them.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, c := range r.caches {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.caches = make(map[string]Cache)
	return firstErr
}
