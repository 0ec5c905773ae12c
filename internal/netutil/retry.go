package netutil

import (
	"context"
	"errors"
	"time"
)

// RetryDoer decorates a Doer with a fixed number of retries for transport
// failures. Status errors, setup errors and caller cancellation are returned
// immediately.
type RetryDoer struct {
	Next Doer
	// Attempts is the total number of tries, including the first. Values < 1 mean 1.
	Attempts int
	// Backoff is slept between tries (doubled each time).
	Backoff time.Duration
}

// Do executes req, retrying transport failures.
func (r *RetryDoer) Do(ctx context.Context, req Request) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := r.Backoff
	var lastErr error
	for i := 0; i < attempts; i++ {
		body, err := r.Next.Do(ctx, req)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !shouldRetry(err) || ctx.Err() != nil || i == attempts-1 {
			break
		}
		if backoff > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, lastErr
			case <-timer.C:
			}
			backoff *= 2
		}
	}
	return nil, lastErr
}

func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}

	var nonRetryable *NonRetryableError
	return !errors.As(err, &nonRetryable)
}
