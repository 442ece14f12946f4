package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExecCacheMiss(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close()

	invoked := false
	found, val, err := Exec(ctx, ExecConfig{Key: "key", TTL: time.Minute}, c, func(ctx context.Context) (string, bool, error) {
		invoked = true
		return "fresh-value", true, nil
	})
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "fresh-value", val)
	assert.True(t, invoked)

	// Value should now be cached.
	cachedFound, cached, err := GetTyped[string](ctx, c, "key")
	assert.NoError(t, err)
	assert.True(t, cachedFound)
	assert.Equal(t, "fresh-value", cached)
}

func TestExecCacheHit(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close()

	// Pre-populate.
	c.Set(ctx, "key", "cached-value", time.Minute)

	invoked := false
	found, val, err := Exec(ctx, ExecConfig{Key: "key"}, c, func(ctx context.Context) (string, bool, error) {
		invoked = true
		return "fresh-value", true, nil
	})
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "cached-value", val)
	assert.False(t, invoked)
}

func TestExecInvokerError(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close()

	expectedErr := fmt.Errorf("invoke failed")
	found, val, err := Exec(ctx, ExecConfig{Key: "key", TTL: time.Minute}, c, func(ctx context.Context) (string, bool, error) {
		return "", false, expectedErr
	})
	assert.ErrorIs(t, err, expectedErr)
	assert.False(t, found)
	assert.Equal(t, "", val)

	// Nothing should be cached.
	ok, err := c.Has(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestExecNotFound(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory(ctx)
	defer c.Close()

	// Invoker reports not-found — nothing cached, found=false.
	found, val, err := Exec(ctx, ExecConfig{Key: "key"}, c, func(ctx context.Context) (int, bool, error) {
		return 0, false, nil
	})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, val)

	ok, err := c.Has(ctx, "key")
	assert.NoError(t, err)
	assert.False(t, ok)
}
