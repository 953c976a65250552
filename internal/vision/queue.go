package vision

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Queue serializes access to the vision provider: a concurrency cap plus a
// sliding-window request rate. Every outbound HTTP attempt, including
// retries, goes through it.
type Queue struct {
	sem     chan struct{}
	limiter *rate.Limiter
}

// NewQueue creates a submission queue.
// Parameters:
//   - maxConcurrent: in-flight request cap.
//   - perMinute: sustained request rate per 60 seconds.
func NewQueue(maxConcurrent, perMinute int) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	if perMinute <= 0 {
		perMinute = 10
	}
	return &Queue{
		sem:     make(chan struct{}, maxConcurrent),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

// Acquire blocks until a concurrency slot and a rate token are both
// available, or the context is done. A nil return must be paired with a
// Release.
func (q *Queue) Acquire(ctx context.Context) error {
	select {
	case q.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := q.limiter.Wait(ctx); err != nil {
		<-q.sem
		return err
	}
	return nil
}

// Release frees the concurrency slot taken by Acquire.
func (q *Queue) Release() {
	<-q.sem
}
