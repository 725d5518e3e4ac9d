// Package verstore hands out entry versions. A version store remembers the last
// version issued per storage key, so a key that is deleted and written again
// continues from where it left off instead of restarting at 1. Once a store
// forgets a key (Local retention, Redis TTL) the key restarts above a per-store
// high-water mark rather than at 1. Local holds that mark only for the life
// of the process; Redis keeps it without TTL.
package verstore

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when a key has used up the uint32 version space.
var ErrExhausted = errors.New("verstore: version space exhausted")

// Store abstracts where issued versions live.
// Use Local (default) for in-process memory, or Redis to share across replicas.
type Store interface {
	// Next returns a version strictly greater than both floor and every version
	// previously returned for storageKey, and records it.
	Next(ctx context.Context, storageKey string, floor uint32) (uint32, error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
