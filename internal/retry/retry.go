// Package retry implements the bounded retry policy used for store writes.
//
// A Policy only decides whether and when to run a closure again; it knows
// nothing about what the closure writes. Callers keep business mutations
// outside the closure so a retry can never apply them twice.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 100 * time.Millisecond
)

// ErrExhausted is matched by errors.Is on the error returned when every attempt failed transiently.
var ErrExhausted = errors.New("retry attempts exhausted")

// ExhaustedError carries the last transient failure.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrExhausted, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

type Policy struct {
	// MaxAttempts counts the first try.
	MaxAttempts int
	// BaseDelay is multiplied by the attempt number that just failed.
	BaseDelay time.Duration
	// Retryable classifies an error as transient. Nil means nothing is retried.
	Retryable func(error) bool
	// Sleep waits between attempts. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

func New(retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Retryable:   retryable,
	}
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(attempt)
}

// MaxWait is the longest Do can spend sleeping.
func (p Policy) MaxWait() time.Duration {
	var total time.Duration
	for attempt := 1; attempt < p.attempts(); attempt++ {
		total += p.Backoff(attempt)
	}
	return total
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Do runs fn until it succeeds, fails with a non-retryable error, or runs out of attempts.
// Non-retryable errors are returned as-is.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	limit := p.attempts()

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		if attempt >= limit {
			return &ExhaustedError{Attempts: attempt, Last: err}
		}

		delay := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := p.sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry wait after attempt %d: %w", attempt, err)
		}
	}
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
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
