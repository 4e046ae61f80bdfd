package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sakif/execbox/internal/apperror"
)

// Limiter is the counting admission gate in front of the sandbox backends.
// At most maxConcurrent executions hold a slot at once; up to queueSize
// further callers wait in FIFO order for at most waitTimeout. Everything
// beyond that fails immediately with Overloaded.
//
// The semaphore is the only shared state between concurrent executions, and
// it is released on every exit path (success, crash, timeout) by the
// dispatcher's deferred Release.
type Limiter struct {
	sem         *semaphore.Weighted
	queueSize   int64
	waitTimeout time.Duration
	waiting     atomic.Int64
}

// NewLimiter creates a Limiter with maxConcurrent slots and a wait queue of
// queueSize. semaphore.Weighted wakes waiters in the order they arrived, which
// gives the FIFO fairness guarantee: an old request is never starved by a
// newer one.
func NewLimiter(maxConcurrent, queueSize int, waitTimeout time.Duration) *Limiter {
	return &Limiter{
		sem:         semaphore.NewWeighted(int64(maxConcurrent)),
		queueSize:   int64(queueSize),
		waitTimeout: waitTimeout,
	}
}

// Acquire claims one execution slot. It returns nil once the slot is held,
// apperror.ErrOverloaded when the queue is full or the wait timed out, and
// the context error if the caller gave up first.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.sem.TryAcquire(1) {
		return nil
	}

	// Count ourselves into the queue; refuse if it is already full. The
	// counter is atomic so the check-and-enter is race-free under load.
	if l.waiting.Add(1) > l.queueSize {
		l.waiting.Add(-1)
		return apperror.Overloaded("execution queue is full")
	}
	defer l.waiting.Add(-1)

	wctx, cancel := context.WithTimeout(ctx, l.waitTimeout)
	defer cancel()

	if err := l.sem.Acquire(wctx, 1); err != nil {
		if ctx.Err() != nil {
			// The caller disappeared, not us being overloaded.
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return apperror.Overloaded("timed out waiting for an execution slot")
		}
		return apperror.Internal(err)
	}
	return nil
}

// Release frees a slot claimed by Acquire. Must be called exactly once per
// successful Acquire, typically via defer.
func (l *Limiter) Release() {
	l.sem.Release(1)
}
