// Package taskqueue caps the parallelism of background work — relay
// re-announcements, progress pumps — that the transports kick off outside
// the request/response path.
package taskqueue

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency is the default task queue width.
const DefaultConcurrency = 5

// Queue runs submitted functions with at most Concurrency of them in
// flight at once. It has no buffering of its own: Submit blocks the caller
// until a slot is free or ctx is done.
type Queue struct {
	sem *semaphore.Weighted
}

// New constructs a Queue with the given concurrency limit. A non-positive
// limit falls back to DefaultConcurrency.
func New(concurrency int) *Queue {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Queue{sem: semaphore.NewWeighted(int64(concurrency))}
}

// Submit runs fn in its own goroutine once a slot is available, and returns
// immediately after launching it. It returns an error only if ctx is
// cancelled before a slot opens up, in which case fn never runs.
func (q *Queue) Submit(ctx context.Context, fn func(ctx context.Context)) error {
	if err := q.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	go func() {
		defer q.sem.Release(1)
		fn(ctx)
	}()
	return nil
}

// Run executes fn synchronously once a slot is available, returning fn's
// error. Useful for callers that need to know when the work completes (the
// progress pump) rather than fire-and-forget re-announcements.
func (q *Queue) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := q.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer q.sem.Release(1)
	return fn(ctx)
}
