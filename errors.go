package rwcache

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/rwcache/internal/wire"
)

var (
	// ErrBackendUnavailable matches any failure talking to the provider or the
	// version store. The concrete error is a *BackendError.
	ErrBackendUnavailable = errors.New("rwcache: backend unavailable")
	// ErrCorruptEntry: stored bytes failed to decode. The entry is left in place.
	ErrCorruptEntry = wire.ErrCorrupt
	// ErrInvalidPageRequest: page number or size below 1, or a page out of range.
	ErrInvalidPageRequest = errors.New("rwcache: invalid page request")
	// ErrInvalidKey: empty key or the reserved counter key.
	ErrInvalidKey = errors.New("rwcache: invalid key")
	// ErrCollectionTooLarge: the counter is above the cache's MaxCollectionSize.
	ErrCollectionTooLarge = errors.New("rwcache: collection too large")
)

type BackendError struct {
	Op  string // get, put, delete, read, count
	Key string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("rwcache: %s %q: backend unavailable: %v", e.Op, e.Key, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func (e *BackendError) Is(target error) bool { return target == ErrBackendUnavailable }

// SequenceError reports a sequential insert/remove whose entry step succeeded but
// whose counter step failed. The counter may be off by one; verify before retrying.
type SequenceError struct {
	Op  string // insert, remove
	ID  uint64
	Err error
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("rwcache: %s #%d: entry updated but counter update failed: %v", e.Op, e.ID, e.Err)
}

func (e *SequenceError) Unwrap() error { return e.Err }

func backendErr(op, key string, err error) error {
	return &BackendError{Op: op, Key: key, Err: err}
}

func corruptErr(key string, cause error) error {
	if cause == nil || errors.Is(cause, wire.ErrCorrupt) {
		return fmt.Errorf("rwcache: key %q: %w", key, ErrCorruptEntry)
	}
	return fmt.Errorf("rwcache: key %q: %w: %w", key, ErrCorruptEntry, cause)
}
