package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig configures Retry.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BackOff yields the delay before each retry. Nil means no delay.
	// Returning backoff.Stop ends the loop early.
	BackOff backoff.BackOff
	// RetryIf reports whether err may be retried. Nil retries everything
	// except context cancellation.
	RetryIf func(err error) bool
	// OnRetry runs after a failed attempt, before the delay.
	OnRetry func(attempt int, err error, delay time.Duration)
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryIf retries all errors except context cancellation.
func DefaultRetryIf(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Retry calls fn until it succeeds, returns a non-retryable error, or
// MaxAttempts is reached. fn receives the 1-based attempt number. The error
// returned is the last one fn produced, or ctx.Err() if ctx ended first.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(attempt int) (T, error)) (T, error) {
	var zero T

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = DefaultRetryIf
	}
	if cfg.Sleep == nil {
		cfg.Sleep = Sleep
	}
	if cfg.BackOff != nil {
		cfg.BackOff.Reset()
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !cfg.RetryIf(err) || attempt == cfg.MaxAttempts {
			break
		}

		var delay time.Duration
		if cfg.BackOff != nil {
			delay = cfg.BackOff.NextBackOff()
			if delay == backoff.Stop {
				break
			}
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		if delay > 0 {
			if err := cfg.Sleep(ctx, delay); err != nil {
				return zero, err
			}
		}
	}
	return zero, lastErr
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ConstantBackOff returns a BackOff that always waits d.
func ConstantBackOff(d time.Duration) backoff.BackOff {
	return backoff.NewConstantBackOff(d)
}

// ExponentialBackOff returns a BackOff starting at initial, growing by
// multiplier and capped at max. Jitter is a fraction of each delay in [0,1).
func ExponentialBackOff(initial, max time.Duration, multiplier, jitter float64) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	if multiplier > 0 {
		b.Multiplier = multiplier
	}
	b.RandomizationFactor = jitter
	b.Reset()
	return b
}
