// Package resilience provides retry with exponential backoff and a circuit
// breaker, used around outbound provider calls (mail delivery in
// particular) so a flapping dependency does not take a clinic down with it.
package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/cockroachdb/errors"
)

// RetryConfig defines retry behavior for a fallible operation.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first.
	MaxRetries int

	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff growth.
	MaxBackoff time.Duration

	// BackoffMultiplier is the exponential growth factor.
	BackoffMultiplier float64

	// Jitter adds up to 10% randomness to each backoff to avoid
	// thundering herds.
	Jitter bool

	// Retryable decides whether an error is worth retrying. When nil,
	// every error is retried.
	Retryable func(error) bool
}

// DefaultRetryConfig returns the retry settings used for provider calls:
// three retries, 100ms initial backoff doubling up to 10s, with jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
		Retryable:         DefaultRetryable,
	}
}

// DefaultRetryable retries everything except context cancellation and an
// open circuit breaker.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrCircuitTimeout) {
		return false
	}
	return true
}

// RetryableFunc is an operation that can be retried.
type RetryableFunc func() error

// Retry executes fn, retrying per config. The context cancels the wait
// between attempts, never a running attempt.
func Retry(ctx context.Context, config RetryConfig, fn RetryableFunc) error {
	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if config.Retryable != nil && !config.Retryable(err) {
			return errors.Wrap(err, "non-retryable error")
		}
		if attempt == config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "retry cancelled")
		case <-time.After(backoffFor(attempt, config)):
		}
	}
	return errors.Wrapf(lastErr, "max retries exceeded (%d)", config.MaxRetries)
}

// RetryWithBreaker runs fn through the circuit breaker on every attempt.
func RetryWithBreaker(ctx context.Context, config RetryConfig, breaker *CircuitBreaker, fn RetryableFunc) error {
	return Retry(ctx, config, func() error {
		return breaker.Execute(ctx, fn)
	})
}

func backoffFor(attempt int, config RetryConfig) time.Duration {
	backoff := float64(config.InitialBackoff) * math.Pow(config.BackoffMultiplier, float64(attempt))
	if backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}
	if config.Jitter {
		backoff += rand.Float64() * 0.1 * backoff
	}
	return time.Duration(backoff)
}
