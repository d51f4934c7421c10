package parallel

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/spatialpred/pkg/errors"
)

func TestParallelize_CoversEveryItem(t *testing.T) {
	for _, items := range []int{0, 1, 7, 1000} {
		seen := make([]int32, items)
		Parallelize(items, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
		})
		for i, v := range seen {
			assert.Equal(t, int32(1), v, "item %d of %d", i, items)
		}
	}
}

func TestParallelizeWithThreshold_Sequential(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, 1, calls)
}

func TestPool_MapResults(t *testing.T) {
	pool := NewPool(3)
	out := make([]int, 50)

	err := pool.Map(context.Background(), len(out), func(_ context.Context, i int) error {
		out[i] = i * i
		return nil
	})
	require.NoError(t, err)
	for i, v := range out {
		assert.Equal(t, i*i, v)
	}
}

func TestPool_RespectsLimit(t *testing.T) {
	pool := NewPool(2)
	var running, peak int32

	err := pool.Map(context.Background(), 20, func(_ context.Context, _ int) error {
		cur := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, int32(2))
}

func TestPool_FirstErrorReturned(t *testing.T) {
	pool := NewPool(1)
	boom := fmt.Errorf("boom")

	var after int32
	err := pool.Map(context.Background(), 10, func(_ context.Context, i int) error {
		if i == 2 {
			return boom
		}
		if i > 2 {
			atomic.AddInt32(&after, 1)
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(0), atomic.LoadInt32(&after), "tasks after the failure must see a cancelled context")
}

func TestPool_PanicBecomesError(t *testing.T) {
	pool := NewPool(2)
	err := pool.Map(context.Background(), 4, func(_ context.Context, i int) error {
		if i == 3 {
			panic("bad fit")
		}
		return nil
	})
	var panicErr *errors.PanicError
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, "bad fit", panicErr.PanicValue)
}

func TestPoolConfig(t *testing.T) {
	assert.GreaterOrEqual(t, DefaultWorkers(), 1)
	assert.Equal(t, DefaultWorkers(), PoolConfig{}.Resolved().Workers)
	assert.Equal(t, 4, PoolConfig{Workers: 4}.Resolved().Workers)

	assert.NoError(t, PoolConfig{}.Validate())
	assert.NoError(t, PoolConfig{Nodes: []string{"10.0.0.1"}, Port: 7777}.Validate())
	assert.Error(t, PoolConfig{Nodes: []string{"10.0.0.1"}}.Validate())
	assert.Error(t, PoolConfig{Nodes: []string{""}, Port: 7777}.Validate())
	assert.Error(t, PoolConfig{Workers: -1}.Validate())
}
