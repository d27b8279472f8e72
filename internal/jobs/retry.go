package jobs

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/mealvault/mealvault/internal/clock"
	"github.com/mealvault/mealvault/internal/extraction"
	"github.com/mealvault/mealvault/internal/models"
)

// RetryPolicy defines how retryable item failures are retried.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	Jitter         bool
	// FixedBackoff waits InitialBackoff between every attempt.
	FixedBackoff bool
	// IgnoreRetryAfter drops the RetryAfter hint of RATE_LIMITED failures.
	IgnoreRetryAfter bool
}

// DefaultRetryPolicy returns a sensible default retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         true,
	}
}

// PolicyFromSettings converts the compliance retry settings.
func PolicyFromSettings(s models.RetrySettings) RetryPolicy {
	p := RetryPolicy{
		MaxRetries:     s.MaxRetries,
		InitialBackoff: s.InitialBackoff,
		MaxBackoff:     s.MaxBackoff,
		BackoffFactor:  s.BackoffFactor,
		Jitter:         true,
	}
	if p.BackoffFactor < 1 {
		p.BackoffFactor = 1
	}
	return p
}

// ForPlatform applies a platform's backoff flags to the policy.
func (p RetryPolicy) ForPlatform(rl models.RateLimitPolicy) RetryPolicy {
	p.FixedBackoff = !rl.ExponentialBackoff
	p.IgnoreRetryAfter = !rl.RetryAfterHeader
	return p
}

// Retry runs fn until it succeeds, fails with a kind that is not retryable,
// or runs out of attempts. A RATE_LIMITED failure waits for its RetryAfter
// hint instead of the computed backoff unless IgnoreRetryAfter is set.
func Retry(ctx context.Context, clk clock.Clock, policy RetryPolicy, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !extraction.KindOf(err).Retryable() {
			return err
		}
		if attempt == policy.MaxRetries {
			break
		}

		backoff := calculateBackoff(policy, attempt)
		var e *extraction.Error
		if !policy.IgnoreRetryAfter && errors.As(err, &e) && e.RetryAfter > 0 {
			backoff = e.RetryAfter
		}

		if err := clk.Sleep(ctx, backoff); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}

	return fmt.Errorf("max retries exceeded (%d): %w", policy.MaxRetries, lastErr)
}

// calculateBackoff computes the backoff duration for a given attempt.
func calculateBackoff(policy RetryPolicy, attempt int) time.Duration {
	backoff := float64(policy.InitialBackoff)
	if !policy.FixedBackoff {
		backoff *= math.Pow(policy.BackoffFactor, float64(attempt))
	}
	if backoff > float64(policy.MaxBackoff) {
		backoff = float64(policy.MaxBackoff)
	}

	duration := time.Duration(backoff)
	if policy.Jitter {
		// ±10%
		duration += time.Duration(float64(duration) * 0.1 * (2*rand.Float64() - 1))
	}
	return duration
}
