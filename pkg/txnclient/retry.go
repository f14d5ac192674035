package txnclient

import (
	"context"
	"time"

	kverrors "github.com/kvperc/percolator/pkg/errors"
)

// Retry discipline for get_timestamp and Get: up to maxAttempts tries,
// sleeping backoffBase*2^(attempt-1) between them (§4.4, §5).
const (
	maxAttempts = 3
	backoffBase = 100 * time.Millisecond
)

// withRetry runs fn up to maxAttempts times, backing off exponentially on
// error, and returns a TimeoutError once the budget is exhausted.
func withRetry[T any](ctx context.Context, op string, fn func() (T, error)) (T, error) {
	var zero T
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if attempt == maxAttempts {
			break
		}

		sleep := backoffBase * time.Duration(uint(1)<<(attempt-1))
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return zero, &kverrors.TimeoutError{Op: op, Attempts: maxAttempts}
}
