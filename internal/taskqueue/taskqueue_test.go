package taskqueue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueCapsConcurrency(t *testing.T) {
	q := New(2)
	var inFlight, maxObserved int32
	ctx := context.Background()

	done := make(chan struct{}, 6)
	for i := 0; i < 6; i++ {
		err := q.Submit(ctx, func(ctx context.Context) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				max := atomic.LoadInt32(&maxObserved)
				if n <= max || atomic.CompareAndSwapInt32(&maxObserved, max, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			done <- struct{}{}
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	for i := 0; i < 6; i++ {
		<-done
	}
	if atomic.LoadInt32(&maxObserved) > 2 {
		t.Fatalf("observed %d concurrent tasks; want <= 2", maxObserved)
	}
}

func TestQueueRunReturnsError(t *testing.T) {
	q := New(1)
	wantErr := context.Canceled
	err := q.Run(context.Background(), func(ctx context.Context) error {
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("err = %v; want %v", err, wantErr)
	}
}

func TestNewDefaultsNonPositiveConcurrency(t *testing.T) {
	q := New(0)
	if !q.sem.TryAcquire(int64(DefaultConcurrency)) {
		t.Fatal("expected DefaultConcurrency slots available")
	}
}
