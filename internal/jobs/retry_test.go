package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mealvault/mealvault/internal/clock"
	"github.com/mealvault/mealvault/internal/extraction"
	"github.com/mealvault/mealvault/internal/models"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     100 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func timeoutErr() error {
	return &extraction.Error{Kind: extraction.KindTimeout, Message: "timed out"}
}

func TestRetry_Success(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), clock.NewFake(start), testPolicy(), func(context.Context) error {
		attempts++
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), clock.NewFake(start), testPolicy(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return timeoutErr()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_MaxRetriesExceeded(t *testing.T) {
	policy := testPolicy()
	policy.MaxRetries = 2

	attempts := 0
	err := Retry(context.Background(), clock.NewFake(start), policy, func(context.Context) error {
		attempts++
		return timeoutErr()
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if extraction.KindOf(err) != extraction.KindTimeout {
		t.Errorf("kind = %s, want TIMEOUT preserved", extraction.KindOf(err))
	}
}

func TestRetry_NonRetryableError(t *testing.T) {
	for _, kind := range []extraction.Kind{extraction.KindNotFound, extraction.KindPolicyViolation, extraction.KindInvalidInput} {
		attempts := 0
		err := Retry(context.Background(), clock.NewFake(start), testPolicy(), func(context.Context) error {
			attempts++
			return &extraction.Error{Kind: kind, Message: "no"}
		})
		if err == nil || attempts != 1 {
			t.Errorf("%s: attempts = %d, err = %v; want 1 attempt", kind, attempts, err)
		}
	}

	attempts := 0
	Retry(context.Background(), clock.NewFake(start), testPolicy(), func(context.Context) error {
		attempts++
		return errors.New("plain error")
	})
	if attempts != 1 {
		t.Errorf("plain error retried %d times", attempts)
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, clock.NewFake(start), testPolicy(), func(context.Context) error {
		return timeoutErr()
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCalculateBackoff(t *testing.T) {
	policy := RetryPolicy{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     1 * time.Second,
		BackoffFactor:  2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1 * time.Second},
		{5, 1 * time.Second},
	}

	for _, tt := range tests {
		if got := calculateBackoff(policy, tt.attempt); got != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}

func TestCalculateBackoffFixed(t *testing.T) {
	policy := RetryPolicy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, BackoffFactor: 2, FixedBackoff: true}
	for attempt := 0; attempt < 4; attempt++ {
		if got := calculateBackoff(policy, attempt); got != 100*time.Millisecond {
			t.Errorf("attempt %d: got %v, want constant 100ms", attempt, got)
		}
	}
}

func TestRetryIgnoresRetryAfterWhenDisabled(t *testing.T) {
	policy := testPolicy()
	policy.IgnoreRetryAfter = true
	fake := clock.NewFake(start)

	attempts := 0
	err := Retry(context.Background(), fake, policy, func(context.Context) error {
		attempts++
		if attempts == 1 {
			return &extraction.Error{Kind: extraction.KindRateLimited, Message: "slow down", RetryAfter: time.Minute}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if got := fake.Now().Sub(start); got != policy.InitialBackoff {
		t.Errorf("waited %v, want computed backoff %v", got, policy.InitialBackoff)
	}
}

func TestForPlatform(t *testing.T) {
	base := testPolicy()
	p := base.ForPlatform(models.RateLimitPolicy{RetryAfterHeader: true})
	if !p.FixedBackoff || p.IgnoreRetryAfter {
		t.Errorf("ForPlatform(retry-after only) = %+v", p)
	}
	p = base.ForPlatform(models.RateLimitPolicy{ExponentialBackoff: true})
	if p.FixedBackoff || !p.IgnoreRetryAfter {
		t.Errorf("ForPlatform(exponential only) = %+v", p)
	}
	if p.MaxRetries != base.MaxRetries || p.InitialBackoff != base.InitialBackoff {
		t.Errorf("ForPlatform changed base settings: %+v", p)
	}
}

func TestCalculateBackoffJitter(t *testing.T) {
	policy := RetryPolicy{InitialBackoff: time.Second, MaxBackoff: time.Minute, BackoffFactor: 2, Jitter: true}
	for i := 0; i < 50; i++ {
		got := calculateBackoff(policy, 0)
		if got < 900*time.Millisecond || got > 1100*time.Millisecond {
			t.Fatalf("jittered backoff %v outside ±10%%", got)
		}
	}
}

func TestPolicyFromSettings(t *testing.T) {
	p := PolicyFromSettings(models.RetrySettings{MaxRetries: 4, InitialBackoff: time.Second, MaxBackoff: 10 * time.Second, BackoffFactor: 0})
	if p.MaxRetries != 4 || p.BackoffFactor != 1 || !p.Jitter {
		t.Errorf("PolicyFromSettings() = %+v", p)
	}
}
