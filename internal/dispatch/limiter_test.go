package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/execbox/internal/apperror"
)

func TestLimiterAcquireWithinCapacity(t *testing.T) {
	l := NewLimiter(3, 0, time.Second)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(context.Background()))
	}
	for i := 0; i < 3; i++ {
		l.Release()
	}
}

func TestLimiterRejectsWhenQueueFull(t *testing.T) {
	// One slot, no queue: the second concurrent request must fail fast.
	l := NewLimiter(1, 0, time.Second)
	require.NoError(t, l.Acquire(context.Background()))
	defer l.Release()

	start := time.Now()
	err := l.Acquire(context.Background())
	assert.ErrorIs(t, err, apperror.ErrOverloaded)
	assert.Less(t, time.Since(start), 200*time.Millisecond, "queue-full rejection must not block")
}

func TestLimiterQueueWaitTimeout(t *testing.T) {
	l := NewLimiter(1, 1, 100*time.Millisecond)
	require.NoError(t, l.Acquire(context.Background()))
	defer l.Release()

	start := time.Now()
	err := l.Acquire(context.Background())
	assert.ErrorIs(t, err, apperror.ErrOverloaded)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestLimiterWaiterGetsFreedSlot(t *testing.T) {
	l := NewLimiter(1, 1, 5*time.Second)
	require.NoError(t, l.Acquire(context.Background()))

	acquired := make(chan error, 1)
	go func() {
		acquired <- l.Acquire(context.Background())
	}()

	// Give the waiter time to enter the queue, then free the slot.
	time.Sleep(50 * time.Millisecond)
	l.Release()

	select {
	case err := <-acquired:
		assert.NoError(t, err)
		l.Release()
	case <-time.After(time.Second):
		t.Fatal("queued waiter never got the freed slot")
	}
}

func TestLimiterCallerCancellation(t *testing.T) {
	l := NewLimiter(1, 1, 5*time.Second)
	require.NoError(t, l.Acquire(context.Background()))
	defer l.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := l.Acquire(ctx)
	assert.True(t, errors.Is(err, context.Canceled), "caller cancellation is not an overload: %v", err)
}

func TestLimiterConcurrentLoad(t *testing.T) {
	// 2 slots, queue of 2, 10 concurrent submissions holding slots briefly.
	// Some must be rejected, none may block indefinitely, and the limiter
	// must end up fully released.
	l := NewLimiter(2, 2, 50*time.Millisecond)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted, rejected := 0, 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Acquire(context.Background())
			if err != nil {
				mu.Lock()
				rejected++
				mu.Unlock()
				assert.ErrorIs(t, err, apperror.ErrOverloaded)
				return
			}
			mu.Lock()
			granted++
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			l.Release()
		}()
	}
	wg.Wait()

	assert.Greater(t, granted, 0)
	assert.Equal(t, 10, granted+rejected)

	// All slots must be free again.
	for i := 0; i < 2; i++ {
		require.NoError(t, l.Acquire(context.Background()))
	}
}
