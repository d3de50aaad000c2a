package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisRateLimiter_NormalizesPrefix(t *testing.T) {
	assert.Equal(t, "myfans:rate_limit", NewRedisRateLimiter(nil, "  ").prefix)
	assert.Equal(t, "custom", NewRedisRateLimiter(nil, "custom:").prefix)
	assert.Equal(t, "custom:checkout_create:GFAN", rateLimitKey("custom", "checkout_create", "GFAN"))
}

func TestRedisRateLimiter_NoClientIsNoop(t *testing.T) {
	count, retryAfter, err := NewRedisRateLimiter(nil, "").ConsumeRateLimit(context.Background(), "checkout_create", "GFAN", 5, time.Minute)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, retryAfter)

	var nilLimiter *RedisRateLimiter
	_, _, err = nilLimiter.ConsumeRateLimit(context.Background(), "checkout_create", "GFAN", 5, time.Minute)
	require.NoError(t, err)
}

func TestParseWindowResult(t *testing.T) {
	count, retryAfter, err := parseWindowResult([]interface{}{int64(3), int64(1500)}, 60000)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 2, retryAfter)

	_, retryAfter, err = parseWindowResult([]interface{}{int64(1), int64(-1)}, 60000)
	require.NoError(t, err)
	assert.Equal(t, 60, retryAfter)

	_, _, err = parseWindowResult("bogus", 60000)
	require.Error(t, err)

	_, _, err = parseWindowResult([]interface{}{"1", int64(1)}, 60000)
	require.Error(t, err)
}
