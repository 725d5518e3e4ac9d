package rwcache

import "time"

const (
	defaultVersionRetention = 30 * 24 * time.Hour
	defaultSweep            = time.Hour

	// DefaultMaxPageSize caps DerivePageReadSet when Options.MaxPageSize is 0.
	DefaultMaxPageSize = 10_000
	// DefaultMaxCollectionSize caps full-collection reads and Clear when
	// Options.MaxCollectionSize is 0.
	DefaultMaxCollectionSize = 1_000_000
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
