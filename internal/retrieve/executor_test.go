// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noShuffle([]Task) {}

func TestExecutorBoundsConcurrency(t *testing.T) {
	const n, limit = 20, 3
	ex := NewExecutor(limit)

	var cur, peak, done atomic.Int32
	for i := 0; i < n; i++ {
		ex.Queue(func(ctx context.Context) error {
			c := cur.Add(1)
			for {
				p := peak.Load()
				if c <= p || peak.CompareAndSwap(p, c) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			cur.Add(-1)
			done.Add(1)
			return nil
		})
	}

	require.NoError(t, ex.Run(context.Background()))
	assert.Equal(t, int32(n), done.Load())
	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.Greater(t, peak.Load(), int32(1))

	stats := ex.Stats()
	assert.Equal(t, int64(n), stats.Executed)
	assert.LessOrEqual(t, stats.PeakInFlight, int64(limit))
	assert.Equal(t, limit, stats.Concurrency)
}

func TestExecutorChainedTasksJoinRun(t *testing.T) {
	ex := NewExecutor(2)

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	for _, name := range []string{"a", "b", "c"} {
		ex.Queue(func(ctx context.Context) error {
			record("lookup-" + name)
			ex.Queue(func(ctx context.Context) error {
				time.Sleep(20 * time.Millisecond)
				record("chained-" + name)
				return nil
			})
			return nil
		})
	}

	require.NoError(t, ex.Run(context.Background()))

	assert.Len(t, order, 6)
	for _, name := range []string{"a", "b", "c"} {
		li := indexOf(order, "lookup-"+name)
		ci := indexOf(order, "chained-"+name)
		require.GreaterOrEqual(t, li, 0)
		require.GreaterOrEqual(t, ci, 0)
		assert.Less(t, li, ci, "chained task ran before its lookup")
	}
	assert.Equal(t, int64(6), ex.Stats().Executed)
}

func TestExecutorFailureDoesNotStopSiblings(t *testing.T) {
	ex := NewExecutor(2, WithShuffle(noShuffle))
	boom := errors.New("disk gone")

	var ran atomic.Int32
	ex.Queue(func(ctx context.Context) error { return boom })
	ex.Queue(func(ctx context.Context) error { panic("bad task") })
	for i := 0; i < 5; i++ {
		ex.Queue(func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}

	err := ex.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "panicked")
	assert.Equal(t, int32(5), ran.Load())
	assert.Equal(t, int64(2), ex.Stats().Failed)
}

func TestExecutorShufflesInitialQueue(t *testing.T) {
	var shuffled int
	ex := NewExecutor(1, WithShuffle(func(ts []Task) {
		shuffled = len(ts)
		for i, j := 0, len(ts)-1; i < j; i, j = i+1, j-1 {
			ts[i], ts[j] = ts[j], ts[i]
		}
	}))

	var order []int
	for i := 0; i < 4; i++ {
		ex.Queue(func(ctx context.Context) error {
			order = append(order, i)
			return nil
		})
	}
	require.NoError(t, ex.Run(context.Background()))

	assert.Equal(t, 4, shuffled)
	assert.Equal(t, []int{3, 2, 1, 0}, order)
}

func TestExecutorEmptyRun(t *testing.T) {
	assert.NoError(t, NewExecutor(4).Run(context.Background()))
}

func TestExecutorCancelledContextDropsPending(t *testing.T) {
	ex := NewExecutor(1, WithShuffle(noShuffle))
	ctx, cancel := context.WithCancel(context.Background())

	var ran atomic.Int32
	ex.Queue(func(ctx context.Context) error {
		ran.Add(1)
		cancel()
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	for i := 0; i < 3; i++ {
		ex.Queue(func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}

	err := ex.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), ran.Load())
}

func indexOf(ss []string, s string) int {
	for i, v := range ss {
		if v == s {
			return i
		}
	}
	return -1
}
