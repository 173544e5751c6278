package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLimiter_BucketAndRefill(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLocalLimiter(Config{Capacity: 2, RefillTokens: 1, RefillInterval: time.Second})
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "buyer-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := l.Allow(ctx, "buyer-1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter)

	other, err := l.Allow(ctx, "buyer-2")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys have separate buckets")

	now = now.Add(time.Second)
	res, err = l.Allow(ctx, "buyer-1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLocalLimiter_Sweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewLocalLimiter(Config{TTL: time.Minute})
	l.now = func() time.Time { return now }
	_, _ = l.Allow(context.Background(), "k")

	now = now.Add(2 * time.Minute)
	l.Sweep()
	assert.Empty(t, l.visitors)
}

type failing struct{}

func (failing) Allow(context.Context, string) (Result, error) {
	return Result{}, errors.New("redis: connection refused")
}

func TestFallback(t *testing.T) {
	f := Fallback{Primary: failing{}, Secondary: NewLocalLimiter(Config{Capacity: 1})}
	res, err := f.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, "1", RetryAfterSeconds(0))
	assert.Equal(t, "1", RetryAfterSeconds(300*time.Millisecond))
	assert.Equal(t, "3", RetryAfterSeconds(2001*time.Millisecond))
}
