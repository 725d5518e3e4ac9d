package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetSetDel(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	in := []byte("v")
	require.NoError(t, s.Set(ctx, "k", in))
	in[0] = 'x' // caller mutation must not leak into the store

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, s.Del(ctx, "k"))
	require.NoError(t, s.Del(ctx, "k"), "deleting an absent key is a no-op")
	assert.Equal(t, 0, s.Len())
}

func TestStoreGetMany(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "a", []byte("1")))
	require.NoError(t, s.Set(ctx, "c", []byte("3")))

	got, err := s.GetMany(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("1"), "c": []byte("3")}, got)
}

func TestCounterFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	s := New()

	n, err := s.Add(ctx, "count", -1)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Add(ctx, "count", 2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = s.Add(ctx, "count", -5)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.Store(ctx, "count", 7))
	n, err = s.Load(ctx, "count")
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
}

func TestCounterConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Add(ctx, "count", 1)
		}()
	}
	wg.Wait()
	n, err := s.Load(ctx, "count")
	require.NoError(t, err)
	assert.EqualValues(t, 50, n)
}
