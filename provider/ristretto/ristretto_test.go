package ristretto

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pr "github.com/unkn0wn-root/rwcache/provider"
)

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestProviderRoundTrip(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(ctx) })

	require.NoError(t, p.Set(ctx, "1", []byte("post")))
	got, ok, err := p.Get(ctx, "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("post"), got)

	require.NoError(t, p.Del(ctx, "1"))
	_, ok, err = p.Get(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetReportsDroppedWrite(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{NumCounters: 100, MaxCost: 8, BufferItems: 64})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close(ctx) })

	err = p.Set(ctx, "1", make([]byte, 64))
	assert.ErrorIs(t, err, pr.ErrRejected)
	_, ok, err := p.Get(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)
}
