// Package asynchook moves rwcache.Hooks callbacks off the request path. Events
// are queued to a small worker pool; when the queue is full they are dropped.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{GapEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000)
//	defer hooks.Close()
//
//	posts, _ := rwcache.New[Post](rwcache.Options[Post]{
//	    Namespace: "blog:posts",
//	    Provider:  memory.New(),
//	    Codec:     codec.JSON[Post]{},
//	    Hooks:     hooks,
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/rwcache"
)

type Hooks struct {
	inner   rwcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

var _ rwcache.Hooks = (*Hooks)(nil)

func New(inner rwcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events fired after Close
// are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded because the queue was full.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	defer func() {
		// send on closed queue after Close
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) CorruptEntry(k, reason string) { h.try(func() { h.inner.CorruptEntry(k, reason) }) }
func (h *Hooks) VersionStoreError(k string, err error) {
	h.try(func() { h.inner.VersionStoreError(k, err) })
}
func (h *Hooks) CounterUpdateFailed(op string, id uint64, err error) {
	h.try(func() { h.inner.CounterUpdateFailed(op, id, err) })
}
func (h *Hooks) CollectionGap(ns string, requested, returned int) {
	h.try(func() { h.inner.CollectionGap(ns, requested, returned) })
}
func (h *Hooks) Relocated(ns string, from, to uint64) {
	h.try(func() { h.inner.Relocated(ns, from, to) })
}
