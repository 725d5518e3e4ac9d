package verstore

import (
	"context"
	"math"
	"sync"
	"time"
)

type localEntry struct {
	Version   uint32
	UpdatedAt time.Time
}

// Local keeps issued versions in-process. An optional cleanup loop forgets keys
// that have not been written for longer than retention. Cleanup keeps the
// highest version it pruned, and a key Local does not know starts above it, so
// a pruned key never gets a version it was issued before. All of this is lost
// when the process exits; use Redis when versions must outlive it.
type Local struct {
	mu     sync.Mutex
	vers   map[string]localEntry
	pruned uint32 // highest version dropped by Cleanup
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ Store = (*Local)(nil)

func NewLocal(cleanupInterval, retention time.Duration) *Local {
	s := &Local{vers: make(map[string]localEntry)}
	if cleanupInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Cleanup(retention)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Local) Next(_ context.Context, k string, floor uint32) (uint32, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.vers[k]
	if !ok {
		e.Version = s.pruned
	}
	if e.Version < floor {
		e.Version = floor
	}
	if e.Version == math.MaxUint32 {
		return 0, ErrExhausted
	}
	e.Version++
	e.UpdatedAt = now
	s.vers[k] = e
	return e.Version, nil
}

func (s *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	for k, e := range s.vers {
		if e.UpdatedAt.Before(cutoff) {
			s.pruned = max(s.pruned, e.Version)
			delete(s.vers, k)
		}
	}
	s.mu.Unlock()
}

func (s *Local) Close(_ context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			s.ticker.Stop()
			close(s.stopCh)
			s.wg.Wait()
		}
	})
	return nil
}
