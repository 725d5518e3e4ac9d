// Package provider defines the backing-store abstraction used by rwcache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// bytes previously passed to Set for a key. If a store transforms values internally
// (e.g. compression), the transform must be fully reversed on Get.
//
// The keys "<ns>:<id>" and "<ns>:count" are owned by rwcache. Foreign writes under
// them are reported as corrupt entries on read; they are never deleted automatically.
package provider

import (
	"context"
	"errors"
)

// ErrRejected is returned by stores that may refuse a write (admission policies).
// The cache reports it as an unavailable backend, the same as any I/O failure.
var ErrRejected = errors.New("provider: write rejected by store")

// Provider is a minimal byte store. It must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// IO/remote failures return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, replacing any previous value. No TTL: entries
	// live until deleted.
	Set(ctx context.Context, key string, value []byte) error

	// Del removes key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Counter is implemented by stores with a native atomic integer. When present,
// the collection counter uses it instead of read-modify-write.
// Counter keys are not required to share the Get/Set keyspace encoding.
type Counter interface {
	// Load returns the counter; a missing counter is 0.
	Load(ctx context.Context, key string) (uint64, error)
	// Add atomically adds delta and returns the new value. The result never
	// drops below zero: decrementing a zero counter leaves it at zero.
	Add(ctx context.Context, key string, delta int64) (uint64, error)
	// Store sets the counter unconditionally.
	Store(ctx context.Context, key string, n uint64) error
}

// BatchGetter is implemented by stores that can fetch many keys in one round trip.
// The result contains hits only.
type BatchGetter interface {
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
}
