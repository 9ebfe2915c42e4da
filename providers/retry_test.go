package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffPolicy_DelayGrowsExponentiallyAndCaps(t *testing.T) {
	b := defaultBackoff()
	assert.Equal(t, 500*time.Millisecond, b.delay(1))
	assert.Equal(t, 1*time.Second, b.delay(2))
	assert.Equal(t, 2*time.Second, b.delay(3))
	assert.Equal(t, b.cap, b.delay(10))
}

func TestRetry_StopsOnFirstSuccess(t *testing.T) {
	calls := 0
	result := retry(context.Background(), defaultBackoff(), func(ctx context.Context) attemptResult {
		calls++
		return attemptResult{content: "ok"}
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, "ok", result.content)
}

func TestRetry_StopsOnNonRetryableError(t *testing.T) {
	calls := 0
	result := retry(context.Background(), defaultBackoff(), func(ctx context.Context) attemptResult {
		calls++
		return attemptResult{err: errors.New("bad request"), retryable: false}
	})
	assert.Equal(t, 1, calls)
	assert.Error(t, result.err)
}

func TestRetry_ExhaustsMaxAttemptsOnRetryableError(t *testing.T) {
	policy := backoffPolicy{maxAttempts: 3, base: time.Millisecond, multiplier: 2, cap: 10 * time.Millisecond}
	calls := 0
	result := retry(context.Background(), policy, func(ctx context.Context) attemptResult {
		calls++
		return attemptResult{err: errors.New("transient"), retryable: true}
	})
	assert.Equal(t, policy.maxAttempts, calls)
	assert.Error(t, result.err)
}

func TestRetry_AbortsEarlyWhenContextCancelledBetweenAttempts(t *testing.T) {
	policy := backoffPolicy{maxAttempts: 5, base: 20 * time.Millisecond, multiplier: 1, cap: 20 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	result := retry(ctx, policy, func(ctx context.Context) attemptResult {
		calls++
		if calls == 1 {
			cancel()
		}
		return attemptResult{err: errors.New("transient"), retryable: true}
	})
	assert.Less(t, calls, policy.maxAttempts)
	assert.Error(t, result.err)
}
