package ristretto

import (
	"bytes"
	"context"
	"errors"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/rwcache/provider"
)

// Provider stores entries in a Ristretto cache. Ristretto admits writes
// probabilistically and may evict under MaxCost, so this provider suits a
// read-through cache in front of a durable store, not the only copy of posts.
// Every Set waits for the write buffer to drain and then reads the key back.
// Ristretto's admission policy can drop a buffered write after accepting it;
// Set reports that, like an outright refusal, as provider.ErrRejected.
type Provider struct {
	c *rc.Cache
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64 // in bytes; cost of an entry is its encoded length
	BufferItems int64
	Metrics     bool
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// unexpected entry shape; treat as miss
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	if !p.c.Set(key, stored, int64(len(stored))) {
		return pr.ErrRejected
	}
	p.c.Wait()
	got, ok := p.c.Get(key)
	if b, _ := got.([]byte); !ok || !bytes.Equal(b, stored) {
		return pr.ErrRejected
	}
	return nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Provider) Close(_ context.Context) error {
	p.c.Wait()
	p.c.Close()
	return nil
}

// Metrics exposes Ristretto's counters to the application.
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }
