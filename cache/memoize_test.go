package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestMemoizeIdempotent(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close()

	var calls atomic.Int64
	double := Memoize(c, "double", func(_ context.Context, n int) (int, error) {
		calls.Add(1)
		return n * 2, nil
	})

	for i := 0; i < 3; i++ {
		v, err := double(ctx, 21)
		assert.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, int64(1), calls.Load())

	// A different argument is a different key.
	v, err := double(ctx, 5)
	assert.NoError(t, err)
	assert.Equal(t, 10, v)
	assert.Equal(t, int64(2), calls.Load())
}

func TestMemoizeCachesZeroValues(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close()

	var calls atomic.Int64
	alwaysZero := Memoize(c, "zero", func(_ context.Context, _ string) (int, error) {
		calls.Add(1)
		return 0, nil
	})

	for i := 0; i < 2; i++ {
		v, err := alwaysZero(ctx, "x")
		assert.NoError(t, err)
		assert.Zero(t, v)
	}
	// Zero results are cached too — only a true miss recomputes.
	assert.Equal(t, int64(1), calls.Load())
}

func TestMemoizeErrorNotCached(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close()

	boom := errors.New("backend down")
	var calls atomic.Int64
	flaky := Memoize(c, "flaky", func(_ context.Context, n int) (int, error) {
		if calls.Add(1) == 1 {
			return 0, boom
		}
		return n, nil
	})

	_, err := flaky(ctx, 7)
	assert.ErrorIs(t, err, boom)

	v, err := flaky(ctx, 7)
	assert.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, int64(2), calls.Load())
}

func TestMemoizeCustomKeyFunc(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close()

	lookup := Memoize(c, "patients", func(_ context.Context, id string) (string, error) {
		return "record-" + id, nil
	}, WithKeyFunc(func(arg any) (string, error) {
		return arg.(string), nil
	}))

	v, err := lookup(ctx, "p-9")
	assert.NoError(t, err)
	assert.Equal(t, "record-p-9", v)

	// Key is the literal name:argument.
	found, err := c.Has(ctx, "patients:p-9")
	assert.NoError(t, err)
	assert.True(t, found)
}

func TestMemoizeSharedDeduplicates(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close()

	var calls atomic.Int64
	slow := MemoizeShared(c, "slow", func(_ context.Context, n int) (int, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return n * 10, nil
	})

	var wg sync.WaitGroup
	results := make([]int, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := slow(ctx, 3)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	// One underlying invocation, every caller sees its result.
	assert.Equal(t, int64(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 30, v)
	}
}

func TestMemoizeSharedErrorNotCached(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close()

	boom := errors.New("timeout")
	var calls atomic.Int64
	flaky := MemoizeShared(c, "flaky-shared", func(_ context.Context, n int) (int, error) {
		if calls.Add(1) == 1 {
			return 0, boom
		}
		return n, nil
	})

	_, err := flaky(ctx, 1)
	assert.ErrorIs(t, err, boom)

	// The failed flight was not cached; the next call re-invokes.
	v, err := flaky(ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, int64(2), calls.Load())
}

func TestWarm(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close()

	var calls atomic.Int64
	square := Memoize(c, "square", func(_ context.Context, n int) (int, error) {
		calls.Add(1)
		return n * n, nil
	})

	assert.NoError(t, Warm(ctx, square, []int{1, 2, 3, 4}, 2))
	assert.Equal(t, int64(4), calls.Load())

	// Warmed entries short-circuit.
	v, err := square(ctx, 3)
	assert.NoError(t, err)
	assert.Equal(t, 9, v)
	assert.Equal(t, int64(4), calls.Load())
}

func TestWarmPropagatesError(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close()

	boom := errors.New("warm failed")
	fn := Memoize(c, "warm-err", func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})

	assert.ErrorIs(t, Warm(ctx, fn, []int{1, 2, 3}, 1), boom)
}
