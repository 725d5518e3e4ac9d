package rwcache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/unkn0wn-root/rwcache/codec"
	"github.com/unkn0wn-root/rwcache/internal/wire"
	pr "github.com/unkn0wn-root/rwcache/provider"
	"github.com/unkn0wn-root/rwcache/verstore"
)

// countKey is the reserved key of the collection counter.
const countKey = "count"

type cache[V any] struct {
	ns       string
	provider pr.Provider
	batch    pr.BatchGetter // nil => one Get per key
	counter  pr.Counter     // nil => read-modify-write on the counter entry
	codec    codec.Codec[V]
	log      Logger
	hooks    Hooks
	versions verstore.Store

	removeMode        RemoveMode
	skipCorrupt       bool
	maxPageSize       int
	maxCollectionSize int

	locks keyLocks
	seqMu sync.Mutex // single writer for the sequential collection

	closeOnce sync.Once
	closeErr  error
}

func newCache[V any](opts Options[V]) (*cache[V], error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("rwcache: provider is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("rwcache: codec is required")
	}
	if opts.RemoveMode != RemoveLeaveGap && opts.RemoveMode != RemoveSwapLast {
		return nil, fmt.Errorf("rwcache: unknown remove mode %d", opts.RemoveMode)
	}
	if opts.MaxPageSize < 0 {
		return nil, fmt.Errorf("rwcache: negative max page size")
	}
	if opts.MaxCollectionSize < 0 || opts.MaxCollectionSize > MaxReadSetLen {
		return nil, fmt.Errorf("rwcache: max collection size must be in [0, %d]", MaxReadSetLen)
	}

	c := &cache[V]{
		ns:          opts.Namespace,
		provider:    opts.Provider,
		codec:       opts.Codec,
		removeMode:  opts.RemoveMode,
		skipCorrupt: opts.SkipCorrupt,
	}

	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.maxPageSize = coalesce(opts.MaxPageSize, DefaultMaxPageSize)
	c.maxCollectionSize = coalesce(opts.MaxCollectionSize, DefaultMaxCollectionSize)

	if b, ok := opts.Provider.(pr.BatchGetter); ok {
		c.batch = b
	}
	if ctr, ok := opts.Provider.(pr.Counter); ok && !opts.DisableAtomicCounter {
		c.counter = ctr
	}

	if opts.Versions != nil {
		c.versions = opts.Versions
	} else {
		c.versions = verstore.NewLocal(
			coalesce(opts.CleanupInterval, defaultSweep),
			coalesce(opts.VersionRetention, defaultVersionRetention),
		)
	}

	c.log.Debug("cache ready", Fields{
		"ns":            c.ns,
		"atomicCounter": c.counter != nil,
		"batchReads":    c.batch != nil,
		"removeMode":    c.removeMode.String(),
	})
	return c, nil
}

func (c *cache[V]) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		verErr := c.versions.Close(ctx)
		provErr := c.provider.Close(ctx)
		c.closeErr = errors.Join(verErr, provErr)
	})
	return c.closeErr
}

func (c *cache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	e, ok, err := c.GetEntry(ctx, key)
	return e.Value, ok, err
}

func (c *cache[V]) GetEntry(ctx context.Context, key string) (Entry[V], bool, error) {
	if err := checkKey(key); err != nil {
		return Entry[V]{}, false, err
	}
	k := c.storageKey(key)
	raw, ok, err := c.provider.Get(ctx, k)
	if err != nil {
		return Entry[V]{}, false, backendErr("get", key, err)
	}
	if !ok {
		return Entry[V]{}, false, nil
	}
	e, err := c.decode(key, k, raw)
	if err != nil {
		return Entry[V]{}, false, err
	}
	return e, true, nil
}

func (c *cache[V]) Version(ctx context.Context, key string) (uint32, error) {
	if err := checkKey(key); err != nil {
		return 0, err
	}
	k := c.storageKey(key)
	raw, ok, err := c.provider.Get(ctx, k)
	if err != nil {
		return 0, backendErr("get", key, err)
	}
	if !ok {
		return 0, nil
	}
	ver, err := wire.PeekVersion(raw)
	if err != nil {
		c.reportCorrupt(key, k, "wire")
		return 0, corruptErr(key, err)
	}
	return ver, nil
}

func (c *cache[V]) Put(ctx context.Context, key string, value V) (uint32, error) {
	if err := checkKey(key); err != nil {
		return 0, err
	}
	payload, err := c.codec.Encode(value)
	if err != nil {
		return 0, fmt.Errorf("rwcache: encode %q: %w", key, err)
	}
	k := c.storageKey(key)
	mu := c.locks.forKey(k)
	mu.Lock()
	defer mu.Unlock()
	return c.writeLocked(ctx, key, k, payload)
}

// writeLocked stamps the next version and writes the entry. Caller holds the key lock.
func (c *cache[V]) writeLocked(ctx context.Context, key, k string, payload []byte) (uint32, error) {
	floor, err := c.storedVersion(ctx, key, k)
	if err != nil {
		return 0, err
	}
	ver, err := c.versions.Next(ctx, k, floor)
	if err != nil {
		c.hooks.VersionStoreError(k, err)
		if errors.Is(err, verstore.ErrExhausted) {
			return 0, fmt.Errorf("rwcache: put %q: %w", key, err)
		}
		return 0, backendErr("put", key, err)
	}
	if err := c.provider.Set(ctx, k, wire.EncodeEntry(ver, payload)); err != nil {
		return 0, backendErr("put", key, err)
	}
	c.log.Debug("entry written", Fields{"key": key, "version": ver})
	return ver, nil
}

// storedVersion is the version currently stored under k, 0 if absent. A corrupt
// entry also counts as 0: the write about to happen replaces it.
func (c *cache[V]) storedVersion(ctx context.Context, key, k string) (uint32, error) {
	raw, ok, err := c.provider.Get(ctx, k)
	if err != nil {
		return 0, backendErr("put", key, err)
	}
	if !ok {
		return 0, nil
	}
	ver, err := wire.PeekVersion(raw)
	if err != nil {
		c.reportCorrupt(key, k, "wire")
		c.log.Warn("overwriting corrupt entry", Fields{"key": key})
		return 0, nil
	}
	return ver, nil
}

func (c *cache[V]) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	k := c.storageKey(key)
	mu := c.locks.forKey(k)
	mu.Lock()
	defer mu.Unlock()
	return c.deleteLocked(ctx, key, k)
}

func (c *cache[V]) deleteLocked(ctx context.Context, key, k string) error {
	if err := c.provider.Del(ctx, k); err != nil {
		return backendErr("delete", key, err)
	}
	c.log.Debug("entry deleted", Fields{"key": key})
	return nil
}

func (c *cache[V]) decode(key, k string, raw []byte) (Entry[V], error) {
	ver, payload, err := wire.DecodeEntry(raw)
	if err != nil {
		c.reportCorrupt(key, k, "wire")
		return Entry[V]{}, corruptErr(key, err)
	}
	v, err := c.codec.Decode(payload)
	if err != nil {
		c.reportCorrupt(key, k, "payload")
		return Entry[V]{}, corruptErr(key, err)
	}
	return Entry[V]{Key: key, Version: ver, Value: v}, nil
}

func (c *cache[V]) reportCorrupt(key, k, reason string) {
	c.hooks.CorruptEntry(k, reason)
	c.log.Warn("corrupt entry", Fields{"key": key, "reason": reason})
}

func (c *cache[V]) storageKey(userKey string) string {
	if c.ns == "" {
		return userKey
	}
	return c.ns + ":" + userKey
}

func checkKey(key string) error {
	if key == "" || key == countKey {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
