package rwcache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	c "github.com/unkn0wn-root/rwcache/codec"
	pr "github.com/unkn0wn-root/rwcache/provider"
)

// memProvider is a bare Provider: no Counter, no BatchGetter, so the cache falls
// back to read-modify-write and per-key reads.
type memProvider struct {
	mu sync.Mutex
	m  map[string][]byte
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string][]byte)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte) error {
	p.mu.Lock()
	p.m[key] = append([]byte(nil), value...)
	p.mu.Unlock()
	return nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

func (p *memProvider) Close(_ context.Context) error { return nil }

func (p *memProvider) raw(key string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.m[key]
	return v, ok
}

var errBoom = errors.New("boom: connection refused")

// failProvider wraps a Provider and fails operations on keys matching a suffix.
type failProvider struct {
	pr.Provider
	mu      sync.Mutex
	failGet string
	failSet string
	failDel string
}

func (p *failProvider) match(pattern, key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return pattern != "" && (pattern == "*" || strings.HasSuffix(key, pattern))
}

func (p *failProvider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if p.match(p.failGet, key) {
		return nil, false, errBoom
	}
	return p.Provider.Get(ctx, key)
}

func (p *failProvider) Set(ctx context.Context, key string, value []byte) error {
	if p.match(p.failSet, key) {
		return errBoom
	}
	return p.Provider.Set(ctx, key, value)
}

func (p *failProvider) Del(ctx context.Context, key string) error {
	if p.match(p.failDel, key) {
		return errBoom
	}
	return p.Provider.Del(ctx, key)
}

type recHooks struct {
	NopHooks
	mu        sync.Mutex
	corrupt   []string
	counter   []string
	gaps      [][2]int
	relocated [][2]uint64
}

func (h *recHooks) CorruptEntry(k, reason string) {
	h.mu.Lock()
	h.corrupt = append(h.corrupt, k+"/"+reason)
	h.mu.Unlock()
}

func (h *recHooks) CounterUpdateFailed(op string, _ uint64, _ error) {
	h.mu.Lock()
	h.counter = append(h.counter, op)
	h.mu.Unlock()
}

func (h *recHooks) CollectionGap(_ string, requested, returned int) {
	h.mu.Lock()
	h.gaps = append(h.gaps, [2]int{requested, returned})
	h.mu.Unlock()
}

func (h *recHooks) Relocated(_ string, from, to uint64) {
	h.mu.Lock()
	h.relocated = append(h.relocated, [2]uint64{from, to})
	h.mu.Unlock()
}

type post struct {
	ID    uint64 `json:"id"`
	Title string `json:"title"`
}

func newTestCache(t *testing.T, p pr.Provider, optsOpt func(*Options[post])) *cache[post] {
	t.Helper()
	opts := Options[post]{
		Provider: p,
		Codec:    newTestCodec(),
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	cc, err := New[post](opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	impl, ok := cc.(*cache[post])
	if !ok {
		t.Fatalf("unexpected concrete type for Cache")
	}
	t.Cleanup(func() { _ = cc.Close(context.Background()) })
	return impl
}

func newTestCodec() c.Codec[post] { return c.JSON[post]{} }
