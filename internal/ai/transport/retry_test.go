package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noSleep records requested delays without waiting.
func noSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := NewRetryPolicy(DefaultMaxAttempts)

	assert.Equal(t, 1*time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(3))
	assert.Equal(t, 10*time.Second, p.Delay(4))
	assert.Equal(t, 10*time.Second, p.Delay(40))
}

func TestRetryPolicy_SucceedsAfterTwoFailures(t *testing.T) {
	var delays []time.Duration
	p := NewRetryPolicy(3)
	p.Sleep = noSleep(&delays)

	attempts := 0
	err := p.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return &StatusError{Provider: "openai", StatusCode: http.StatusBadGateway}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestRetryPolicy_AuthFailureIsNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"401 status", &StatusError{Provider: "openai", StatusCode: http.StatusUnauthorized, Message: "bad key"}},
		{"403 status", &StatusError{Provider: "anthropic", StatusCode: http.StatusForbidden, Message: "forbidden"}},
		{"sentinel", fmt.Errorf("calling provider: %w", ErrAuthentication)},
		{"message mentions auth", errors.New("Authentication failed")},
		{"invalid api key message", errors.New("Invalid API key provided")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var delays []time.Duration
			p := NewRetryPolicy(3)
			p.Sleep = noSleep(&delays)

			attempts := 0
			err := p.Do(context.Background(), func(context.Context) error {
				attempts++
				return tt.err
			})

			require.Error(t, err)
			assert.Equal(t, 1, attempts)
			assert.Empty(t, delays)
		})
	}
}

func TestRetryPolicy_ExhaustedReturnsLastError(t *testing.T) {
	var delays []time.Duration
	p := NewRetryPolicy(2)
	p.Sleep = noSleep(&delays)

	attempts := 0
	err := p.Do(context.Background(), func(context.Context) error {
		attempts++
		return fmt.Errorf("failure %d", attempts)
	})

	require.Error(t, err)
	assert.Equal(t, "failure 2", err.Error())
	assert.Equal(t, 2, attempts)
	assert.Len(t, delays, 1)
}

func TestRetryPolicy_ZeroAttemptsStillCallsOnce(t *testing.T) {
	p := RetryPolicy{}
	attempts := 0
	_ = p.Do(context.Background(), func(context.Context) error {
		attempts++
		return errors.New("boom")
	})
	assert.Equal(t, 1, attempts)
}

func TestRetryPolicy_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewRetryPolicy(5)
	p.Sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	attempts := 0
	err := p.Do(ctx, func(context.Context) error {
		attempts++
		return ErrProviderUnavailable
	})

	require.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, 1, attempts)
}

func TestRetryPolicy_RealSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}

	start := time.Now()
	attempts := 0
	err := p.Do(ctx, func(context.Context) error {
		attempts++
		return ErrProviderUnavailable
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(context.Canceled))
	assert.False(t, Retryable(&StatusError{StatusCode: http.StatusUnauthorized}))
	assert.True(t, Retryable(&StatusError{StatusCode: http.StatusTooManyRequests, Message: "slow down"}))
	assert.True(t, Retryable(&StatusError{StatusCode: http.StatusInternalServerError, Message: "oops"}))
	assert.True(t, Retryable(ErrInvalidResponse))
	assert.True(t, Retryable(ErrInferenceTimeout))
}

func TestStatusError(t *testing.T) {
	err := &StatusError{Provider: "openai", StatusCode: http.StatusServiceUnavailable}
	assert.Equal(t, "openai API error (503): Service Unavailable", err.Error())
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	err = &StatusError{Provider: "anthropic", StatusCode: http.StatusUnauthorized, Message: "invalid x-api-key"}
	assert.ErrorIs(t, err, ErrAuthentication)

	err = &StatusError{Provider: "ollama", StatusCode: http.StatusBadRequest, Message: "bad"}
	assert.NotErrorIs(t, err, ErrAuthentication)
	assert.NotErrorIs(t, err, ErrProviderUnavailable)
}
