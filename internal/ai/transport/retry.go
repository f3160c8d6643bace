package transport

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

const (
	DefaultMaxAttempts      = 3
	DefaultLocalMaxAttempts = 2
	DefaultBaseDelay        = time.Second
	DefaultMaxDelay         = 10 * time.Second
)

// RetryPolicy bounds how often a provider call is attempted. MaxAttempts counts the first
// call, so MaxAttempts=3 means one call plus up to two retries.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Sleep waits between attempts. Nil uses a timer that honours ctx.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy returns a policy with the default backoff and the given attempt limit.
func NewRetryPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// Delay returns the wait after the given zero-based attempt: min(base*2^attempt, max).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	limit := p.MaxDelay
	if limit <= 0 {
		limit = DefaultMaxDelay
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	return min(d, limit)
}

// Do calls fn until it succeeds, returns a non-retryable error, ctx is done or the attempt
// limit is reached. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !Retryable(err) || ctx.Err() != nil {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		delay := p.Delay(attempt)
		slog.Warn("ai request failed, retrying",
			"attempt", attempt+1,
			"max_attempts", attempts,
			"delay", delay,
			"error", err,
		)
		if serr := sleep(ctx, delay); serr != nil {
			return err
		}
	}
	return err
}

// Retryable reports whether err may succeed on another attempt. Authentication failures and
// context cancellation are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthentication) || errors.Is(err, context.Canceled) {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "auth") || strings.Contains(msg, "invalid api key") {
		return false
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
