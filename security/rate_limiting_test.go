package security

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowWithinLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 3, time.Minute)

	mock.ExpectIncr("ratelimit:user:alice").SetVal(1)
	mock.ExpectExpire("ratelimit:user:alice", time.Minute).SetVal(true)

	ok, err := limiter.allow(context.Background(), "user:alice")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectIncr("ratelimit:user:alice").SetVal(3)
	ok, err = limiter.allow(context.Background(), "user:alice")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllowBlocksOverLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(db, 3, time.Minute)

	mock.ExpectIncr("ratelimit:user:alice").SetVal(4)

	ok, err := limiter.allow(context.Background(), "user:alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSuspiciousUserAgents(t *testing.T) {
	limiter := NewRateLimiter(nil, 3, time.Minute)

	assert.True(t, limiter.isSuspiciousUserAgent("GoogleBot/2.1"))
	assert.True(t, limiter.isSuspiciousUserAgent("my-scraper 1.0"))
	assert.False(t, limiter.isSuspiciousUserAgent("Mozilla/5.0"))
	assert.False(t, limiter.isSuspiciousUserAgent(""))
}
