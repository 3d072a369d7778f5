// Package cache provides an in-process key/value cache assembled from small
// layers that all implement the same [Cache] interface.
//
// # Cache Interface
//
// The [Cache] interface defines six operations: [Cache.ID], [Cache.Size],
// [Cache.Get], [Cache.Put], [Cache.Remove] and [Cache.Clear]. The innermost
// layer is a store; every other layer is a decorator that exclusively owns
// the Cache it wraps and forwards to it while adding one behaviour. Layers
// can be stacked in any order by hand, or assembled by a [Builder].
//
// Values are [any]. The package-level generic [Get] adds a type assertion:
//
//	found, user, err := cache.Get[User](ctx, c, key)
//
// A nil value can be stored and counts toward Size, but reads as a miss.
//
// # Keys
//
// Any comparable value can be a key. [CacheKey] builds a key from an ordered
// list of components (statement id, parameters, offsets) and is compared by
// content: two keys built from the same components are equal. A key freezes
// the first time it is used for a lookup. [NewNullCacheKey] returns a
// sentinel that rejects updates and never equals anything but itself.
//
// # Layers
//
//   - [PerpetualCache]: unbounded map, the default store.
//   - [LruCache]: evicts the least recently used key once over capacity.
//   - [FifoCache]: evicts the oldest inserted key once over capacity.
//   - [BlockingCache]: per-key locks. A Get that misses keeps the key
//     locked until the same owner calls Put or Remove, so concurrent misses
//     on one key populate it once. Remove only releases the lock.
//   - [ScheduledCache]: clears everything once the clear interval has
//     passed, checked lazily on access.
//   - [TransactionalCache]: stages writes of one unit of work until
//     Commit; Rollback releases keys that missed.
//   - [WeakCache]: lets the garbage collector reclaim values, keeping the
//     most recently read ones pinned.
//   - [SerializedCache]: hands out msgpack copies instead of shared values.
//   - [LoggingCache]: hit ratio in debug logs and OpenTelemetry counters.
//   - [SynchronizedCache]: a single mutex around the delegate.
//
// LruCache, FifoCache, WeakCache's hard links and TransactionalCache are not
// safe for concurrent use. The Builder always places a SynchronizedCache
// around the shared layers; a TransactionalCache belongs to one session.
//
// # Building
//
//	c, err := cache.NewBuilder("users").
//	    AddDecorator(cache.LruDecorator).
//	    Size(512).
//	    ClearInterval(30 * time.Minute).
//	    Blocking(true).
//	    Properties(cache.Properties{"timeout": "250"}).
//	    Build()
//
// Without an implementation the Builder uses [PerpetualCache] and, if no
// decorators were added, [LruCache]. The standard layers always follow in
// the same order: Scheduled, Serialized, Logging, Synchronized, Blocking.
// A custom implementation skips all of them except Logging.
//
// The same chain can be described in YAML and loaded with [LoadConfig];
// names are resolved through a [Registry].
//
// # Blocking and Ownership
//
// Goroutines have no identity, so lock ownership travels in the context.
// [WithOwner] (or [NewOwner]) marks every call made with that context as
// belonging to one owner. A context without an owner uses the shared
// anonymous owner, which cannot re-enter a lock it already holds. Cancelling
// the context while waiting fails the Get with [ErrLockInterrupted];
// exceeding the configured timeout fails it with [ErrLockTimeout].
//
// [Exec] implements the populate protocol: Get, and on a miss invoke, then
// Put on success or Remove on failure so the lock is always released.
//
// # Sessions
//
// [TxManager] keeps one TransactionalCache per shared cache for a session
// and tags every call with the session's owner, so locks taken by the
// session's misses are released by its Commit or Rollback.
//
// # Errors
//
// Errors match the sentinels in this package with errors.Is:
// [ErrLockTimeout], [ErrLockInterrupted], [ErrConfiguration],
// [ErrIllegalMutation], [ErrSerialization] and [ErrUnhashableKey].
package cache
