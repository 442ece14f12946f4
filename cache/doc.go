// Package cache provides the in-process memoization cache used across
// ClinicBoost services: a bounded key/value store with pluggable eviction,
// TTL expiry, function memoization and coarse-grained invalidation.
//
// # Cache Interface
//
// The [Cache] interface defines the store operations: [Cache.Get],
// [Cache.Set], [Cache.Has], [Cache.Delete], [Cache.Keys], [Cache.Size],
// [Cache.Clear], [Cache.Cleanup], [Cache.Stats] and [Cache.Close]. All
// implementations satisfy this interface, so backends can be swapped
// without changing application code.
//
// The interface uses [any] for values rather than generics because Go does
// not allow generic methods on interfaces. Type safety is provided by the
// package-level generic functions [GetTyped], [Exec], [Memoize] and
// [MemoizeShared].
//
// # Implementations
//
//   - [NewInMemory] — In-process map guarded by a mutex, bounded by a
//     configurable capacity with an eviction strategy chosen at
//     construction: [StrategyLRU] removes the least recently accessed
//     entry, [StrategyLFU] the least frequently accessed, [StrategyFIFO]
//     the oldest by creation regardless of access. Expired entries are
//     dropped lazily on access and by a background sweep that runs at half
//     the TTL; correctness never depends on sweep timing. Lost on process
//     restart.
//
//   - [NewRedis] — Backed by Redis using [github.com/redis/go-redis/v9].
//     Values are serialized to msgpack and stored in Redis hashes (fields
//     "v" for value, "h" for hit count). Expiry uses native Redis TTL, so
//     capacity eviction and the sweep do not apply. An optional key prefix
//     supports namespacing multiple caches on the same Redis instance. The
//     caller owns the [redis.Client] lifecycle. Each operation uses a
//     per-query timeout ([DefaultQueryTimeout]).
//
//   - [NewComposite] — Chains multiple [Cache] implementations in order:
//     Get returns the first hit checked left to right, writes go to every
//     layer. This enables in-memory L1 backed by Redis L2 so one clinic
//     process keeps hot patient lookups local while sharing the cache
//     across instances.
//
// # Memoization
//
// [Memoize] wraps a function so its results are cached by argument:
//
//	lookup := cache.Memoize(c, "patients", fetchPatient)
//	p, err := lookup(ctx, patientID)
//
// The default key is the function name plus an xxhash of the
// msgpack-encoded argument; [WithKeyFunc] substitutes an explicit key
// derivation, which is recommended whenever the argument is more than a
// primitive. Every successful result is cached, including zero values —
// only a true miss re-invokes. Errors propagate unchanged and nothing is
// cached for a failed call.
//
// [MemoizeShared] adds in-flight de-duplication via
// [golang.org/x/sync/singleflight]: concurrent calls with the same key
// share one underlying invocation and all receive its result. A failed
// flight is dropped, so a later call re-invokes rather than observing a
// cached error.
//
// [NewSelector] composes dependency extractors with a combiner, re-running
// the combiner only when a dependency output changes. [Warm] precomputes a
// memoized function over a list of arguments with bounded concurrency.
//
// # Invalidation and Registry
//
// [Invalidate] removes entries whose key contains a substring and
// [InvalidateMatch] those matching a regular expression. Because memoized
// keys are prefixed by function name, invalidating one API resource is a
// single substring call.
//
// [Registry] holds named caches so an application can snapshot statistics
// or clear everything at once. There are deliberately no package-level
// singleton caches: construct instances and pass them to call sites, and
// tests stay isolated.
//
// # Statistics
//
// [Cache.Stats] returns hit/miss/eviction counters, hit rate and an
// estimated memory footprint. The estimate charges two bytes per string
// character, eight per number, four per bool and a fixed per-entry
// overhead — a diagnostic approximation, not a tight bound.
//
// # Error Handling
//
// Cache read errors are always propagated. [Exec] and the memoization
// wrappers return read errors immediately without invoking the wrapped
// function. Write errors after a successful invocation are swallowed — the
// caller got their value; failing to cache it is a degradation, not a
// failure.
package cache
