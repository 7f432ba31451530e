package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Policy is the shared retry schedule for provider calls: exponential
// backoff scaled by jitter, transient failures only.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultPolicy retries 4 times with sleeps of 1s, 2s, 4s, 8s before
// jitter.
var DefaultPolicy = Policy{MaxAttempts: 4, BaseDelay: time.Second}

// Do runs fn up to MaxAttempts times. Non-transient errors abort
// immediately; so does context cancellation. The sleep before attempt i is
// BaseDelay·2^(i-1) scaled by a jitter factor in [0.8, 1.2].
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultPolicy.MaxAttempts
	}
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultPolicy.BaseDelay
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			delay := time.Duration(float64(base<<uint(i-1)) * jitter())
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s aborted: %w", op, ctx.Err())
			case <-timer.C:
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsTransient(err) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s aborted: %w", op, ctx.Err())
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, lastErr)
}

func jitter() float64 {
	return 0.8 + 0.4*rand.Float64()
}

// IsTransient classifies provider failures worth retrying: rate limits,
// temporary unavailability, and timeouts. Everything else fails fast.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"rate limit", "too many requests", "429",
		"unavailable", "overloaded", "503", "502",
		"timeout", "timed out",
		"connection reset", "connection refused", "temporarily",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
