package rwcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/rwcache/codec"
	pr "github.com/unkn0wn-root/rwcache/provider"
	"github.com/unkn0wn-root/rwcache/verstore"
)

// Entry is a decoded value together with its storage key and version.
type Entry[V any] struct {
	Key     string
	Version uint32
	Value   V
}

// RemoveMode selects what RemoveSequential does with the hole it leaves.
type RemoveMode int

const (
	// RemoveLeaveGap deletes the entry and decrements the counter. IDs are stable;
	// the collection can develop gaps that readers skip.
	RemoveLeaveGap RemoveMode = iota
	// RemoveSwapLast moves the last entry into the hole before shrinking, keeping
	// 0..count-1 dense. The moved entry changes ID.
	RemoveSwapLast
)

func (m RemoveMode) String() string {
	switch m {
	case RemoveLeaveGap:
		return "leave_gap"
	case RemoveSwapLast:
		return "swap_last"
	default:
		return "unknown"
	}
}

// Cache is the versioned cache facade. V is the caller's value type.
type Cache[V any] interface {
	Close(context.Context) error

	// Single keys
	Get(ctx context.Context, key string) (v V, ok bool, err error)
	GetEntry(ctx context.Context, key string) (e Entry[V], ok bool, err error)
	Version(ctx context.Context, key string) (uint32, error) // 0 when absent
	Put(ctx context.Context, key string, value V) (version uint32, err error)
	Delete(ctx context.Context, key string) error

	// Sequential collection
	Count(ctx context.Context) (uint64, error)
	ResetCount(ctx context.Context) error
	InsertSequential(ctx context.Context, value V) (id uint64, err error)
	RemoveSequential(ctx context.Context, id uint64) error
	Clear(ctx context.Context) error

	// Read sets
	DeriveFullReadSet(ctx context.Context) ([]string, error)
	DerivePageReadSet(page, size int) ([]string, error)
	ReadCollection(ctx context.Context, readSet []string) ([]V, error)
	ReadEntries(ctx context.Context, readSet []string) ([]Entry[V], error)
	Versions(ctx context.Context, readSet []string) (VersionVector, error)
}

// Options tune the cache. Provider and Codec are required.
type Options[V any] struct {
	Namespace string // optional key prefix, e.g. "blog:posts"; empty => bare keys
	Provider  pr.Provider
	Codec     c.Codec[V]

	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks

	Versions         verstore.Store // nil => verstore.Local
	CleanupInterval  time.Duration  // Local version store sweep; 0 => 1h
	VersionRetention time.Duration  // Local version store retention; 0 => 30d

	RemoveMode        RemoveMode // default RemoveLeaveGap
	SkipCorrupt       bool       // collection reads omit corrupt members instead of failing
	MaxPageSize       int        // DerivePageReadSet limit; 0 => DefaultMaxPageSize
	MaxCollectionSize int        // DeriveFullReadSet/Clear limit on the counter; 0 => DefaultMaxCollectionSize

	// DisableAtomicCounter forces read-modify-write on the counter even when the
	// provider implements provider.Counter.
	DisableAtomicCounter bool
}

func New[V any](opts Options[V]) (Cache[V], error) {
	return newCache[V](opts)
}
