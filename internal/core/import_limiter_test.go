package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportLimiter_AcquireRelease(t *testing.T) {
	limiter := NewImportLimiter(2, time.Second)
	ctx := context.Background()

	require.NoError(t, limiter.Acquire(ctx))
	require.NoError(t, limiter.Acquire(ctx))

	st := limiter.Status()
	assert.Equal(t, 2, st.Active)
	assert.Equal(t, 0, st.Available)
	assert.Equal(t, 2, st.MaxConcurrent)

	limiter.Release()
	limiter.Release()
	assert.Equal(t, 0, limiter.ActiveCount())
}

func TestImportLimiter_TimesOutWhenFull(t *testing.T) {
	limiter := NewImportLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	require.True(t, limiter.TryAcquire(), "empty limiter")
	defer limiter.Release()

	require.False(t, limiter.TryAcquire(), "full limiter")
	assert.ErrorIs(t, limiter.Acquire(ctx), ErrTooManyImports)
}

func TestImportLimiter_ContextCancel(t *testing.T) {
	limiter := NewImportLimiter(1, time.Minute)
	limiter.TryAcquire()
	defer limiter.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, limiter.Acquire(ctx), context.Canceled)
}

func TestImportLimiter_WaitForDrain(t *testing.T) {
	limiter := NewImportLimiter(3, time.Second)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		require.True(t, limiter.TryAcquire())
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(20 * time.Millisecond)
			limiter.Release()
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, limiter.WaitForDrain(ctx))
	wg.Wait()
	assert.Equal(t, 0, limiter.ActiveCount())
}

func TestNewImportLimiter_Defaults(t *testing.T) {
	st := NewImportLimiter(0, 0).Status()
	assert.Equal(t, DefaultMaxConcurrentImports, st.MaxConcurrent)
}
