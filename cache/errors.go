package cache

import "github.com/cockroachdb/errors"

// Sentinel errors. Call sites wrap these with context, so compare with errors.Is.
var (
	// ErrLockTimeout is returned by BlockingCache when a per-key lock could not be acquired in time.
	ErrLockTimeout = errors.New("cache: lock timeout")
	// ErrLockInterrupted is returned when the context is cancelled while waiting for a per-key lock.
	ErrLockInterrupted = errors.New("cache: interrupted while waiting for lock")
	// ErrConfiguration is returned when a cache chain cannot be assembled.
	ErrConfiguration = errors.New("cache: configuration error")
	// ErrIllegalMutation is returned when updating a frozen or null CacheKey.
	ErrIllegalMutation = errors.New("cache: illegal mutation")
	// ErrSerialization is returned when a value cannot be copied by SerializedCache.
	ErrSerialization = errors.New("cache: serialization error")
	// ErrUnhashableKey is returned for keys that cannot be used as a map key.
	ErrUnhashableKey = errors.New("cache: unhashable key")
)

func configErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}
