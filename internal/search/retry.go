package search

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Retry bounds the exponential backoff applied to transient failures.
type Retry struct {
	MaxTries        int
	InitialInterval time.Duration
}

// DefaultRetry allows four attempts starting at half a second.
func DefaultRetry() Retry {
	return Retry{MaxTries: 4, InitialInterval: 500 * time.Millisecond}
}

// withRetry runs op until it succeeds, returns a non-transient error, or the
// attempt budget is spent.
func withRetry[T any](ctx context.Context, r Retry, op func() (T, error)) (T, error) {
	if r.MaxTries <= 0 {
		r = DefaultRetry()
	}
	b := backoff.NewExponentialBackOff()
	if r.InitialInterval > 0 {
		b.InitialInterval = r.InitialInterval
	}

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !transient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(r.MaxTries)))
}

// transient treats rate limits, 5xx and network failures as retryable.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.IsTransient()
	}
	var pe *parseError
	return !errors.As(err, &pe)
}

// parseError marks a malformed response body; retrying will not help.
type parseError struct{ err error }

func (e *parseError) Error() string { return "decode response: " + e.err.Error() }
func (e *parseError) Unwrap() error { return e.err }
