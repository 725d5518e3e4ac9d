package rwcache

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/unkn0wn-root/rwcache/internal/wire"
)

// MaxReadSetLen bounds the read sets built by FullReadSet and PageReadSet.
const MaxReadSetLen = 1 << 24

// FullReadSet returns ["0", "1", ..., str(count-1)]. Counts above MaxReadSetLen
// fail with ErrCollectionTooLarge.
func FullReadSet(count uint64) ([]string, error) {
	if count > MaxReadSetLen {
		return nil, fmt.Errorf("%w: count %d exceeds %d", ErrCollectionTooLarge, count, MaxReadSetLen)
	}
	keys := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		keys = append(keys, strconv.FormatUint(i, 10))
	}
	return keys, nil
}

// PageReadSet returns the keys of 1-based page `page` with `size` entries per
// page: str((page-1)*size) .. str(page*size-1). It does not look at the counter;
// a page past the end yields keys that simply read as absent.
func PageReadSet(page, size int) ([]string, error) {
	if page < 1 || size < 1 {
		return nil, fmt.Errorf("%w: page=%d size=%d", ErrInvalidPageRequest, page, size)
	}
	if size > MaxReadSetLen {
		return nil, fmt.Errorf("%w: size %d exceeds %d", ErrInvalidPageRequest, size, MaxReadSetLen)
	}
	if uint64(page) > math.MaxUint64/uint64(size) {
		return nil, fmt.Errorf("%w: page=%d size=%d overflows the id space", ErrInvalidPageRequest, page, size)
	}
	first := uint64(page-1) * uint64(size)
	keys := make([]string, size)
	for i := range keys {
		keys[i] = strconv.FormatUint(first+uint64(i), 10)
	}
	return keys, nil
}

func (c *cache[V]) DeriveFullReadSet(ctx context.Context) ([]string, error) {
	n, err := c.loadCount(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.checkCollectionSize(n); err != nil {
		return nil, err
	}
	return FullReadSet(n)
}

func (c *cache[V]) DerivePageReadSet(page, size int) ([]string, error) {
	if size > c.maxPageSize {
		return nil, fmt.Errorf("%w: size %d exceeds max page size %d", ErrInvalidPageRequest, size, c.maxPageSize)
	}
	return PageReadSet(page, size)
}

func (c *cache[V]) ReadCollection(ctx context.Context, readSet []string) ([]V, error) {
	entries, err := c.ReadEntries(ctx, readSet)
	if err != nil {
		return nil, err
	}
	out := make([]V, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out, nil
}

// ReadEntries reads the keys of readSet in order and returns the present ones.
// Absent keys are skipped silently; a corrupt member fails the call unless
// Options.SkipCorrupt is set.
func (c *cache[V]) ReadEntries(ctx context.Context, readSet []string) ([]Entry[V], error) {
	raws, err := c.fetch(ctx, readSet)
	if err != nil {
		return nil, err
	}
	out := make([]Entry[V], 0, len(raws))
	for _, key := range readSet {
		raw, ok := raws[key]
		if !ok {
			continue
		}
		e, err := c.decode(key, c.storageKey(key), raw)
		if err != nil {
			if c.skipCorrupt {
				continue
			}
			return nil, err
		}
		out = append(out, e)
	}
	if len(out) < len(readSet) {
		c.hooks.CollectionGap(c.ns, len(readSet), len(out))
	}
	return out, nil
}

// Versions reads only the version of each key in readSet; absent keys map to 0.
func (c *cache[V]) Versions(ctx context.Context, readSet []string) (VersionVector, error) {
	raws, err := c.fetch(ctx, readSet)
	if err != nil {
		return nil, err
	}
	vv := make(VersionVector, len(readSet))
	for _, key := range readSet {
		raw, ok := raws[key]
		if !ok {
			vv[key] = 0
			continue
		}
		ver, err := wire.PeekVersion(raw)
		if err != nil {
			c.reportCorrupt(key, c.storageKey(key), "wire")
			if c.skipCorrupt {
				vv[key] = 0
				continue
			}
			return nil, corruptErr(key, err)
		}
		vv[key] = ver
	}
	return vv, nil
}

// fetch returns raw bytes of present keys, keyed by user key.
func (c *cache[V]) fetch(ctx context.Context, readSet []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(readSet))
	if len(readSet) == 0 {
		return out, nil
	}
	storage := make([]string, len(readSet))
	for i, key := range readSet {
		if err := checkKey(key); err != nil {
			return nil, err
		}
		storage[i] = c.storageKey(key)
	}

	if c.batch != nil {
		m, err := c.batch.GetMany(ctx, storage)
		if err != nil {
			return nil, backendErr("read", fmt.Sprintf("%d keys", len(readSet)), err)
		}
		for i, k := range storage {
			if raw, ok := m[k]; ok {
				out[readSet[i]] = raw
			}
		}
		return out, nil
	}

	for i, k := range storage {
		raw, ok, err := c.provider.Get(ctx, k)
		if err != nil {
			return nil, backendErr("read", readSet[i], err)
		}
		if ok {
			out[readSet[i]] = raw
		}
	}
	return out, nil
}

// VersionVector maps read-set keys to their stored version; 0 means absent.
type VersionVector map[string]uint32

// Stale returns, in sorted order, the keys whose version in current differs
// from v, including keys present in only one of the two vectors.
func (v VersionVector) Stale(current VersionVector) []string {
	var out []string
	for k, ver := range v {
		if cur, ok := current[k]; !ok || cur != ver {
			out = append(out, k)
		}
	}
	for k := range current {
		if _, ok := v[k]; !ok {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// Digest hashes the vector into one token; equal vectors give equal digests
// regardless of map order.
func (v VersionVector) Digest() uint64 {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	d := xxhash.New()
	var buf []byte
	for _, k := range keys {
		buf = buf[:0]
		buf = append(buf, k...)
		buf = append(buf, '=')
		buf = strconv.AppendUint(buf, uint64(v[k]), 10)
		buf = append(buf, ';')
		_, _ = d.Write(buf)
	}
	return d.Sum64()
}
