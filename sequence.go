package rwcache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/unkn0wn-root/rwcache/internal/wire"
)

// The sequential collection lives at keys "0".."count-1" and is tracked by the
// counter under countKey. Mutations follow two ordering rules:
//
//   - insert writes the entry before incrementing, remove deletes before
//     decrementing. A crash between the steps leaves the counter undercounting,
//     which readers tolerate, rather than overcounting.
//   - all mutations of one cache run under seqMu. Across processes two inserts
//     can still pick the same id; the counter itself is exact when the provider
//     implements provider.Counter.

func (c *cache[V]) Count(ctx context.Context) (uint64, error) {
	return c.loadCount(ctx)
}

func (c *cache[V]) ResetCount(ctx context.Context) error {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()
	return c.storeCount(ctx, 0)
}

func (c *cache[V]) InsertSequential(ctx context.Context, value V) (uint64, error) {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()

	id, err := c.loadCount(ctx)
	if err != nil {
		return 0, err
	}
	key := strconv.FormatUint(id, 10)
	payload, err := c.codec.Encode(value)
	if err != nil {
		return 0, fmt.Errorf("rwcache: encode %q: %w", key, err)
	}

	k := c.storageKey(key)
	mu := c.locks.forKey(k)
	mu.Lock()
	ver, err := c.writeLocked(ctx, key, k, payload)
	mu.Unlock()
	if err != nil {
		return 0, err
	}

	if _, err := c.addCount(ctx, 1); err != nil {
		return id, c.sequenceFailed("insert", id, err)
	}
	c.log.Debug("sequential insert", Fields{"id": id, "version": ver})
	return id, nil
}

// RemoveSequential decrements the counter exactly once per successful call, even
// when the entry was already absent.
func (c *cache[V]) RemoveSequential(ctx context.Context, id uint64) error {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()

	key := strconv.FormatUint(id, 10)
	if c.removeMode == RemoveSwapLast {
		if err := c.swapLastInto(ctx, id); err != nil {
			return err
		}
	} else {
		k := c.storageKey(key)
		mu := c.locks.forKey(k)
		mu.Lock()
		err := c.deleteLocked(ctx, key, k)
		mu.Unlock()
		if err != nil {
			return err
		}
	}

	if _, err := c.addCount(ctx, -1); err != nil {
		return c.sequenceFailed("remove", id, err)
	}
	c.log.Debug("sequential remove", Fields{"id": id, "mode": c.removeMode.String()})
	return nil
}

// swapLastInto fills the hole at id with the entry at count-1 and deletes the
// latter. The moved payload gets a fresh version at its new key. When id is the
// last slot, out of range, or the last slot is empty, it is a plain delete.
func (c *cache[V]) swapLastInto(ctx context.Context, id uint64) error {
	n, err := c.loadCount(ctx)
	if err != nil {
		return err
	}
	key := strconv.FormatUint(id, 10)
	k := c.storageKey(key)
	if n == 0 || id >= n-1 {
		return c.deleteUnderLock(ctx, key, k)
	}

	last := n - 1
	lastKey := strconv.FormatUint(last, 10)
	lk := c.storageKey(lastKey)
	raw, ok, err := c.provider.Get(ctx, lk)
	if err != nil {
		return backendErr("get", lastKey, err)
	}
	if !ok {
		return c.deleteUnderLock(ctx, key, k)
	}
	_, payload, err := wire.DecodeEntry(raw)
	if err != nil {
		c.reportCorrupt(lastKey, lk, "wire")
		return corruptErr(lastKey, err)
	}

	mu := c.locks.forKey(k)
	mu.Lock()
	_, err = c.writeLocked(ctx, key, k, payload)
	mu.Unlock()
	if err != nil {
		return err
	}
	if err := c.deleteUnderLock(ctx, lastKey, lk); err != nil {
		return err
	}
	c.hooks.Relocated(c.ns, last, id)
	c.log.Info("relocated entry", Fields{"from": last, "to": id})
	return nil
}

// Clear deletes every entry in 0..count-1 and then resets the counter.
func (c *cache[V]) Clear(ctx context.Context) error {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()

	n, err := c.loadCount(ctx)
	if err != nil {
		return err
	}
	if err := c.checkCollectionSize(n); err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		key := strconv.FormatUint(i, 10)
		if err := c.deleteUnderLock(ctx, key, c.storageKey(key)); err != nil {
			return err
		}
	}
	if err := c.storeCount(ctx, 0); err != nil {
		return err
	}
	c.log.Info("collection cleared", Fields{"ns": c.ns, "deleted": n})
	return nil
}

func (c *cache[V]) deleteUnderLock(ctx context.Context, key, k string) error {
	mu := c.locks.forKey(k)
	mu.Lock()
	defer mu.Unlock()
	return c.deleteLocked(ctx, key, k)
}

// checkCollectionSize rejects counter values no real collection of this cache
// reaches. ResetCount recovers from such a counter.
func (c *cache[V]) checkCollectionSize(n uint64) error {
	if n <= uint64(c.maxCollectionSize) {
		return nil
	}
	c.log.Warn("counter exceeds max collection size", Fields{"ns": c.ns, "count": n, "max": c.maxCollectionSize})
	return fmt.Errorf("%w: count %d exceeds %d", ErrCollectionTooLarge, n, c.maxCollectionSize)
}

func (c *cache[V]) sequenceFailed(op string, id uint64, err error) error {
	c.hooks.CounterUpdateFailed(op, id, err)
	c.log.Error("counter update failed; counter state unknown", Fields{"op": op, "id": id, "err": err})
	return &SequenceError{Op: op, ID: id, Err: err}
}

func (c *cache[V]) loadCount(ctx context.Context) (uint64, error) {
	k := c.storageKey(countKey)
	if c.counter != nil {
		n, err := c.counter.Load(ctx, k)
		if err != nil {
			return 0, backendErr("count", countKey, err)
		}
		return n, nil
	}
	raw, ok, err := c.provider.Get(ctx, k)
	if err != nil {
		return 0, backendErr("count", countKey, err)
	}
	if !ok {
		return 0, nil
	}
	n, err := wire.DecodeCounter(raw)
	if err != nil {
		c.reportCorrupt(countKey, k, "counter")
		return 0, corruptErr(countKey, err)
	}
	return n, nil
}

// addCount moves the counter by delta, never below zero.
func (c *cache[V]) addCount(ctx context.Context, delta int64) (uint64, error) {
	k := c.storageKey(countKey)
	if c.counter != nil {
		n, err := c.counter.Add(ctx, k, delta)
		if err != nil {
			return 0, backendErr("count", countKey, err)
		}
		return n, nil
	}

	n, err := c.loadCount(ctx)
	if err != nil {
		return 0, err
	}
	switch {
	case delta >= 0:
		n += uint64(delta)
	case uint64(-delta) >= n:
		n = 0
	default:
		n -= uint64(-delta)
	}
	if err := c.storeCount(ctx, n); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *cache[V]) storeCount(ctx context.Context, n uint64) error {
	k := c.storageKey(countKey)
	var err error
	if c.counter != nil {
		err = c.counter.Store(ctx, k, n)
	} else {
		err = c.provider.Set(ctx, k, wire.EncodeCounter(n))
	}
	if err != nil {
		return backendErr("count", countKey, err)
	}
	return nil
}
