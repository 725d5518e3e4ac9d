// Package memcache adapts bradfitz/gomemcache to provider.Provider.
//
// Memcached has native incr/decr with a floor at zero, which maps directly onto
// provider.Counter. Memcached may still evict items under memory pressure, so
// run it with eviction disabled (-M) when it is the only copy of the posts.
package memcache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bradfitz/gomemcache/memcache"

	pr "github.com/unkn0wn-root/rwcache/provider"
)

type Memcache struct {
	mc *memcache.Client
}

var (
	_ pr.Provider    = (*Memcache)(nil)
	_ pr.Counter     = (*Memcache)(nil)
	_ pr.BatchGetter = (*Memcache)(nil)
)

// New connects to the given "host:port" servers.
func New(servers ...string) (*Memcache, error) {
	if len(servers) == 0 {
		return nil, errors.New("memcache provider: no servers")
	}
	return &Memcache{mc: memcache.New(servers...)}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(c *memcache.Client) *Memcache { return &Memcache{mc: c} }

func (p *Memcache) Get(_ context.Context, key string) ([]byte, bool, error) {
	it, err := p.mc.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return it.Value, true, nil
}

func (p *Memcache) Set(_ context.Context, key string, value []byte) error {
	return p.mc.Set(&memcache.Item{Key: key, Value: value})
}

func (p *Memcache) Del(_ context.Context, key string) error {
	if err := p.mc.Delete(key); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return err
	}
	return nil
}

func (p *Memcache) GetMany(_ context.Context, keys []string) (map[string][]byte, error) {
	items, err := p.mc.GetMulti(keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(items))
	for k, it := range items {
		out[k] = it.Value
	}
	return out, nil
}

func (p *Memcache) Load(_ context.Context, key string) (uint64, error) {
	it, err := p.mc.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return parseCounter(it.Value)
}

// Add maps onto incr/decr. A missing counter is created with ADD so two racing
// first writers do not overwrite each other; the loser retries the incr.
func (p *Memcache) Add(_ context.Context, key string, delta int64) (uint64, error) {
	for attempt := 0; attempt < 2; attempt++ {
		var (
			n   uint64
			err error
		)
		if delta >= 0 {
			n, err = p.mc.Increment(key, uint64(delta))
		} else {
			n, err = p.mc.Decrement(key, uint64(-delta))
		}
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, memcache.ErrCacheMiss) {
			return 0, err
		}

		initial := uint64(0)
		if delta > 0 {
			initial = uint64(delta)
		}
		err = p.mc.Add(&memcache.Item{Key: key, Value: []byte(strconv.FormatUint(initial, 10))})
		if err == nil {
			return initial, nil
		}
		if !errors.Is(err, memcache.ErrNotStored) {
			return 0, err
		}
	}
	return 0, fmt.Errorf("memcache provider: counter %q kept disappearing", key)
}

func (p *Memcache) Store(_ context.Context, key string, n uint64) error {
	return p.mc.Set(&memcache.Item{Key: key, Value: []byte(strconv.FormatUint(n, 10))})
}

func (p *Memcache) Close(_ context.Context) error { return nil }

// memcached may space-pad a counter whose digit count shrank after decr.
func parseCounter(b []byte) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("memcache counter parse: %w", err)
	}
	return n, nil
}
