package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

type entry struct {
	value        any
	createdAt    time.Time
	expiresAt    time.Time
	lastAccessed time.Time
	accessCount  int
	seq          uint64
}

type inMemoryCache struct {
	ctx       context.Context
	cancel    context.CancelFunc
	entries   map[string]*entry
	mutex     sync.Mutex
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config

	// insertion counter, disambiguates FIFO order when creation
	// timestamps collide
	seq uint64

	hits      uint64
	misses    uint64
	evictions uint64
}

var _ Cache = (*inMemoryCache)(nil)

// NewInMemory returns an in-process Cache with a bounded number of entries,
// per-entry TTL and a pluggable eviction strategy (LRU, LFU or FIFO).
// Expired entries are removed lazily on access and by a background sweep;
// Close stops the sweep.
func NewInMemory(parent context.Context, opts ...Option) Cache {
	cfg := applyOptions(opts)
	ctx, cancel := context.WithCancel(parent)
	c := &inMemoryCache{
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry),
		cfg:     cfg,
	}
	c.waitGroup.Add(1)
	go c.run()
	return c
}

func (c *inMemoryCache) Get(_ context.Context, key string) (bool, any, error) {
	now := time.Now()
	c.mutex.Lock()
	defer c.mutex.Unlock()
	e, ok := c.entries[key]
	if !ok {
		c.recordMiss()
		return false, nil, nil
	}
	if e.expiresAt.Before(now) {
		delete(c.entries, key)
		c.recordMiss()
		return false, nil, nil
	}
	e.accessCount++
	e.lastAccessed = now
	c.recordHit()
	return true, e.value, nil
}

func (c *inMemoryCache) Set(_ context.Context, key string, val any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.cfg.ttl
	}
	now := time.Now()
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.cfg.maxSize {
		c.evictLocked(now)
	}
	c.seq++
	// Overwrite replaces, never merges: fresh metadata every time.
	c.entries[key] = &entry{
		value:        val,
		createdAt:    now,
		expiresAt:    now.Add(ttl),
		lastAccessed: now,
		accessCount:  1,
		seq:          c.seq,
	}
	return nil
}

func (c *inMemoryCache) Has(_ context.Context, key string) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return e.expiresAt.After(time.Now()), nil
}

func (c *inMemoryCache) Delete(_ context.Context, key string) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	_, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	return ok, nil
}

func (c *inMemoryCache) Keys(_ context.Context) ([]string, error) {
	now := time.Now()
	c.mutex.Lock()
	defer c.mutex.Unlock()
	live := make([]*entry, 0, len(c.entries))
	names := make(map[*entry]string, len(c.entries))
	for key, e := range c.entries {
		if e.expiresAt.Before(now) {
			continue
		}
		live = append(live, e)
		names[e] = key
	}
	sort.Slice(live, func(i, j int) bool { return live[i].seq < live[j].seq })
	keys := make([]string, len(live))
	for i, e := range live {
		keys[i] = names[e]
	}
	return keys, nil
}

func (c *inMemoryCache) Size(_ context.Context) (int, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.entries), nil
}

func (c *inMemoryCache) Clear(_ context.Context) error {
	c.mutex.Lock()
	c.entries = make(map[string]*entry)
	c.mutex.Unlock()
	return nil
}

func (c *inMemoryCache) Cleanup(_ context.Context) error {
	c.mutex.Lock()
	c.sweepLocked(time.Now())
	c.mutex.Unlock()
	return nil
}

func (c *inMemoryCache) Stats(_ context.Context) (Stats, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	stats := Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      len(c.entries),
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	if !c.cfg.statsOff {
		for key, e := range c.entries {
			stats.MemoryBytes += entryOverhead + estimateSize(key) + estimateSize(e.value)
		}
	}
	return stats, nil
}

func (c *inMemoryCache) Close() error {
	c.once.Do(func() {
		c.cancel()
		c.waitGroup.Wait()
	})
	return nil
}

func (c *inMemoryCache) recordHit() {
	if !c.cfg.statsOff {
		c.hits++
	}
}

func (c *inMemoryCache) recordMiss() {
	if !c.cfg.statsOff {
		c.misses++
	}
}

// evictLocked removes the entry chosen by the configured strategy.
// Ties go to whichever qualifying entry map iteration reaches first.
func (c *inMemoryCache) evictLocked(now time.Time) {
	// Reclaim dead entries first so a live key is not evicted while
	// expired ones linger.
	c.sweepLocked(now)
	if len(c.entries) < c.cfg.maxSize {
		return
	}
	var victim string
	var candidate *entry
	for key, e := range c.entries {
		if candidate == nil || c.outranks(e, candidate) {
			victim = key
			candidate = e
		}
	}
	if candidate != nil {
		delete(c.entries, victim)
		c.evictions++
	}
}

// outranks reports whether a should be evicted before b under the
// configured strategy.
func (c *inMemoryCache) outranks(a, b *entry) bool {
	switch c.cfg.strategy {
	case StrategyLFU:
		return a.accessCount < b.accessCount
	case StrategyFIFO:
		return a.seq < b.seq
	default: // StrategyLRU
		return a.lastAccessed.Before(b.lastAccessed)
	}
}

func (c *inMemoryCache) sweepLocked(now time.Time) {
	for key, e := range c.entries {
		if e.expiresAt.Before(now) {
			delete(c.entries, key)
		}
	}
}

func (c *inMemoryCache) run() {
	defer c.waitGroup.Done()
	ticker := time.NewTicker(c.cfg.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case now := <-ticker.C:
			c.mutex.Lock()
			c.sweepLocked(now)
			c.mutex.Unlock()
		}
	}
}
