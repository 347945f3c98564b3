package grading

import (
	"context"
	"time"
)

// retryGateway repeats transport failures with a doubling pause.
type retryGateway struct {
	inner    Gateway
	attempts int
	backoff  time.Duration
}

// WithRetry wraps g so transport failures are retried up to attempts times
// in total. Other outcomes are returned immediately.
func WithRetry(g Gateway, attempts int, backoff time.Duration) Gateway {
	if attempts <= 1 {
		return g
	}
	return &retryGateway{inner: g, attempts: attempts, backoff: backoff}
}

func (r *retryGateway) Grade(ctx context.Context, question, studentAnswer, rubric string) Result {
	wait := r.backoff
	var res Result
	for attempt := 0; attempt < r.attempts; attempt++ {
		res = r.inner.Grade(ctx, question, studentAnswer, rubric)
		if res.Kind != ErrTransport || attempt == r.attempts-1 {
			return res
		}
		select {
		case <-ctx.Done():
			return Failed(ErrTransport, ctx.Err().Error())
		case <-time.After(wait):
		}
		wait *= 2
	}
	return res
}
