// Package retry runs an operation under a bounded retry policy with
// exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy configures retries. The zero value runs the operation once.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int

	// Backoff returns the wait after failed attempt n (1-based).
	Backoff func(attempt int) time.Duration

	// Retryable reports whether err is worth another attempt. Nil retries
	// every error.
	Retryable func(err error) bool

	// Sleep defaults to ContextSleep.
	Sleep Sleeper

	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Exponential returns base * 2^(attempt-1): base, 2*base, 4*base, ...
func Exponential(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base << (attempt - 1)
	}
}

// ContextSleep sleeps for d, returning ctx.Err() if ctx ends first.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ExhaustedError is returned when every attempt failed. It unwraps to the
// last attempt's error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do calls fn until it succeeds, the policy gives up, or ctx ends.
//
// A non-retryable error is returned as is. When attempts run out the last
// error is returned inside an *ExhaustedError. If ctx ends during a wait,
// the context error is returned joined with the last attempt's error.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, joinCause(err, lastErr)
		}

		v, err := fn(ctx, attempt)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff(attempt)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return zero, joinCause(err, lastErr)
		}
	}

	return zero, &ExhaustedError{Attempts: attempts, Err: lastErr}
}

func joinCause(ctxErr, last error) error {
	if last == nil {
		return ctxErr
	}
	return fmt.Errorf("%w (last attempt: %w)", ctxErr, last)
}
