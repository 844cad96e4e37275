package llm

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Retrier retries transient adapter failures with exponential backoff and
// jitter. It operates below the Router: a call that exhausts its retries
// surfaces as a single ProviderError and triggers fallback there.
type Retrier struct {
	config RetryConfig
}

// NewRetrier creates a retrier with the given configuration
func NewRetrier(config RetryConfig) *Retrier {
	return &Retrier{config: config}
}

// RetryOperation is an operation that can be retried
type RetryOperation[T any] func(ctx context.Context, attempt int) (T, error)

// Execute runs operation until it succeeds, fails non-retryably, or the
// retry budget is exhausted
func Execute[T any](r *Retrier, ctx context.Context, operation RetryOperation[T]) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := operation(ctx, attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt >= r.config.MaxRetries || !IsRetryableError(err) {
			return zero, err
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(r.delay(attempt)):
		}
	}

	return zero, fmt.Errorf("operation failed after %d attempts: %w", r.config.MaxRetries+1, lastErr)
}

// delay computes the backoff before the next attempt
func (r *Retrier) delay(attempt int) time.Duration {
	base := float64(r.config.InitialDelay)
	d := base * math.Pow(r.config.BackoffFactor, float64(attempt))

	// +-25% jitter; the top-level source is safe for concurrent callers
	d += 0.25 * d * (rand.Float64()*2 - 1)

	if max := float64(r.config.MaxDelay); max > 0 && d > max {
		d = max
	}
	if d < base {
		d = base
	}
	return time.Duration(d)
}
