package rwcache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pr "github.com/unkn0wn-root/rwcache/provider"
	"github.com/unkn0wn-root/rwcache/provider/memory"
)

// counterModes runs fn against the atomic counter path and the
// read-modify-write path.
func counterModes(t *testing.T, fn func(t *testing.T, p pr.Provider)) {
	t.Run("atomic", func(t *testing.T) { fn(t, memory.New()) })
	t.Run("rmw", func(t *testing.T) { fn(t, newMemProvider()) })
}

func TestInsertSequentialAssignsDenseIDs(t *testing.T) {
	counterModes(t, func(t *testing.T, p pr.Provider) {
		ctx := context.Background()
		c := newTestCache(t, p, nil)

		for want := uint64(0); want < 3; want++ {
			id, err := c.InsertSequential(ctx, post{ID: want, Title: "v"})
			require.NoError(t, err)
			assert.Equal(t, want, id)
		}
		n, err := c.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), n)

		rs, err := c.DeriveFullReadSet(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"0", "1", "2"}, rs)

		got, err := c.ReadCollection(ctx, rs)
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i, v := range got {
			assert.Equal(t, uint64(i), v.ID)
		}
	})
}

func TestRemoveLeavesGap(t *testing.T) {
	counterModes(t, func(t *testing.T, p pr.Provider) {
		ctx := context.Background()
		h := &recHooks{}
		c := newTestCache(t, p, func(o *Options[post]) { o.Hooks = h })

		for i := 0; i < 3; i++ {
			_, err := c.InsertSequential(ctx, post{ID: uint64(i + 1)})
			require.NoError(t, err)
		}
		before, err := c.DeriveFullReadSet(ctx)
		require.NoError(t, err)

		require.NoError(t, c.RemoveSequential(ctx, 1))

		n, err := c.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), n)

		// the read set taken before the removal still sees both survivors
		got, err := c.ReadCollection(ctx, before)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, uint64(1), got[0].ID)
		assert.Equal(t, uint64(3), got[1].ID)

		// the counter now undercounts: entry "2" is beyond it and invisible
		after, err := c.DeriveFullReadSet(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"0", "1"}, after)
		got, err = c.ReadCollection(ctx, after)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, uint64(1), got[0].ID)

		assert.NotEmpty(t, h.gaps)
	})
}

func TestRemoveSwapLastKeepsCollectionDense(t *testing.T) {
	counterModes(t, func(t *testing.T, p pr.Provider) {
		ctx := context.Background()
		h := &recHooks{}
		c := newTestCache(t, p, func(o *Options[post]) {
			o.RemoveMode = RemoveSwapLast
			o.Hooks = h
		})

		for i := 0; i < 3; i++ {
			_, err := c.InsertSequential(ctx, post{ID: uint64(i + 1)})
			require.NoError(t, err)
		}
		v2Before, err := c.Version(ctx, "2")
		require.NoError(t, err)

		require.NoError(t, c.RemoveSequential(ctx, 1))

		rs, err := c.DeriveFullReadSet(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"0", "1"}, rs)

		got, err := c.ReadCollection(ctx, rs)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, uint64(1), got[0].ID)
		assert.Equal(t, uint64(3), got[1].ID)

		_, ok, err := c.Get(ctx, "2")
		require.NoError(t, err)
		assert.False(t, ok, "last slot must be deleted after the move")

		moved, err := c.Version(ctx, "1")
		require.NoError(t, err)
		assert.Greater(t, moved, uint32(0))
		assert.NotZero(t, v2Before)
		assert.Equal(t, [][2]uint64{{2, 1}}, h.relocated)
	})
}

func TestRemoveSwapLastOnLastSlot(t *testing.T) {
	ctx := context.Background()
	h := &recHooks{}
	c := newTestCache(t, memory.New(), func(o *Options[post]) {
		o.RemoveMode = RemoveSwapLast
		o.Hooks = h
	})
	for i := 0; i < 2; i++ {
		_, err := c.InsertSequential(ctx, post{ID: uint64(i)})
		require.NoError(t, err)
	}
	require.NoError(t, c.RemoveSequential(ctx, 1))

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	assert.Empty(t, h.relocated)
}

func TestRemoveDecrementsEvenWhenAbsent(t *testing.T) {
	counterModes(t, func(t *testing.T, p pr.Provider) {
		ctx := context.Background()
		c := newTestCache(t, p, nil)

		for i := 0; i < 2; i++ {
			_, err := c.InsertSequential(ctx, post{})
			require.NoError(t, err)
		}
		require.NoError(t, c.RemoveSequential(ctx, 7))
		n, err := c.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), n)
	})
}

func TestCounterNeverGoesNegative(t *testing.T) {
	counterModes(t, func(t *testing.T, p pr.Provider) {
		ctx := context.Background()
		c := newTestCache(t, p, nil)

		n, err := c.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		require.NoError(t, c.RemoveSequential(ctx, 0))
		require.NoError(t, c.RemoveSequential(ctx, 5))

		n, err = c.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		id, err := c.InsertSequential(ctx, post{})
		require.NoError(t, err)
		assert.Zero(t, id)
	})
}

func TestConcurrentInsertsStayDense(t *testing.T) {
	counterModes(t, func(t *testing.T, p pr.Provider) {
		ctx := context.Background()
		c := newTestCache(t, p, nil)

		const workers = 32
		ids := make([]uint64, workers)
		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func(i int) {
				defer wg.Done()
				id, err := c.InsertSequential(ctx, post{ID: uint64(i)})
				assert.NoError(t, err)
				ids[i] = id
			}(i)
		}
		wg.Wait()

		sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
		for i, id := range ids {
			assert.Equal(t, uint64(i), id)
		}
		n, err := c.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(workers), n)
	})
}

func TestInsertEntryWriteFailureLeavesCounter(t *testing.T) {
	ctx := context.Background()
	p := &failProvider{Provider: newMemProvider(), failSet: "0"}
	c := newTestCache(t, p, nil)

	_, err := c.InsertSequential(ctx, post{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendUnavailable)

	var se *SequenceError
	assert.False(t, errors.As(err, &se), "counter was never touched")

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInsertCounterFailureReportsSequenceError(t *testing.T) {
	ctx := context.Background()
	p := &failProvider{Provider: newMemProvider(), failSet: "count"}
	h := &recHooks{}
	c := newTestCache(t, p, func(o *Options[post]) { o.Hooks = h })

	id, err := c.InsertSequential(ctx, post{Title: "orphan"})
	require.Error(t, err)
	assert.Zero(t, id)

	var se *SequenceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "insert", se.Op)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, []string{"insert"}, h.counter)

	// the entry landed; the counter did not move
	v, ok, err := c.Get(ctx, "0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "orphan", v.Title)
	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRemoveCounterFailureReportsSequenceError(t *testing.T) {
	ctx := context.Background()
	fp := &failProvider{Provider: newMemProvider()}
	h := &recHooks{}
	c := newTestCache(t, fp, func(o *Options[post]) { o.Hooks = h })

	for i := 0; i < 2; i++ {
		_, err := c.InsertSequential(ctx, post{ID: uint64(i)})
		require.NoError(t, err)
	}

	fp.mu.Lock()
	fp.failSet = "count"
	fp.mu.Unlock()

	err := c.RemoveSequential(ctx, 0)
	require.Error(t, err)

	var se *SequenceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "remove", se.Op)
	assert.Equal(t, uint64(0), se.ID)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, []string{"remove"}, h.counter)

	// the entry is gone; the counter did not move
	_, ok, err := c.Get(ctx, "0")
	require.NoError(t, err)
	assert.False(t, ok)
	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}

func TestRemoveDeleteFailureLeavesCounter(t *testing.T) {
	ctx := context.Background()
	fp := &failProvider{Provider: newMemProvider()}
	c := newTestCache(t, fp, nil)

	_, err := c.InsertSequential(ctx, post{})
	require.NoError(t, err)

	fp.mu.Lock()
	fp.failDel = "0"
	fp.mu.Unlock()

	err = c.RemoveSequential(ctx, 0)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestCorruptCounter(t *testing.T) {
	ctx := context.Background()
	p := newMemProvider()
	h := &recHooks{}
	c := newTestCache(t, p, func(o *Options[post]) { o.Hooks = h })

	require.NoError(t, p.Set(ctx, "count", []byte("3")))
	_, err := c.Count(ctx)
	assert.ErrorIs(t, err, ErrCorruptEntry)
	assert.Equal(t, []string{"count/counter"}, h.corrupt)

	require.NoError(t, c.ResetCount(ctx))
	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClearDeletesEntriesAndResetsCounter(t *testing.T) {
	counterModes(t, func(t *testing.T, p pr.Provider) {
		ctx := context.Background()
		c := newTestCache(t, p, nil)

		for i := 0; i < 4; i++ {
			_, err := c.InsertSequential(ctx, post{ID: uint64(i)})
			require.NoError(t, err)
		}
		require.NoError(t, c.Clear(ctx))

		n, err := c.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		got, err := c.ReadCollection(ctx, fullReadSet(t, 4))
		require.NoError(t, err)
		assert.Empty(t, got)

		id, err := c.InsertSequential(ctx, post{})
		require.NoError(t, err)
		assert.Zero(t, id)
	})
}

func TestResetCountKeepsEntries(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, memory.New(), nil)

	_, err := c.InsertSequential(ctx, post{Title: "kept"})
	require.NoError(t, err)
	require.NoError(t, c.ResetCount(ctx))

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	v, ok, err := c.Get(ctx, "0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "kept", v.Title)
}
