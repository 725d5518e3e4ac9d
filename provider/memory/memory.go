// Package memory is an in-process Provider backed by a map. It implements
// provider.Counter and provider.BatchGetter, and is what the tests and the demo
// server's default configuration run against.
package memory

import (
	"context"
	"sync"

	pr "github.com/unkn0wn-root/rwcache/provider"
)

type Store struct {
	mu       sync.RWMutex
	m        map[string][]byte
	counters map[string]uint64
}

var (
	_ pr.Provider    = (*Store)(nil)
	_ pr.Counter     = (*Store)(nil)
	_ pr.BatchGetter = (*Store)(nil)
)

func New() *Store {
	return &Store{m: make(map[string][]byte), counters: make(map[string]uint64)}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	v, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.m[key] = clone(value)
	s.mu.Unlock()
	return nil
}

func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.m, key)
	delete(s.counters, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) GetMany(_ context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	s.mu.RLock()
	for _, k := range keys {
		if v, ok := s.m[k]; ok {
			out[k] = clone(v)
		}
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Store) Load(_ context.Context, key string) (uint64, error) {
	s.mu.RLock()
	n := s.counters[key]
	s.mu.RUnlock()
	return n, nil
}

func (s *Store) Add(_ context.Context, key string, delta int64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.counters[key]
	switch {
	case delta >= 0:
		n += uint64(delta)
	case uint64(-delta) >= n:
		n = 0
	default:
		n -= uint64(-delta)
	}
	s.counters[key] = n
	return n, nil
}

func (s *Store) Store(_ context.Context, key string, n uint64) error {
	s.mu.Lock()
	s.counters[key] = n
	s.mu.Unlock()
	return nil
}

func (s *Store) Close(_ context.Context) error { return nil }

// Len reports the number of stored values (counters excluded).
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
