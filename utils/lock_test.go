package utils

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeetupLockAcquireAndRelease(t *testing.T) {
	db, mock := redismock.NewClientMock()
	lock := NewMeetupLock(db, 5*time.Second)

	mock.Regexp().ExpectSetNX("lock:join:meetup-1", `[0-9A-F]{32}`, 5*time.Second).SetVal(true)
	mock.Regexp().ExpectEval(regexp.QuoteMeta(releaseLockScript), []string{"lock:join:meetup-1"}, `[0-9A-F]{32}`).SetVal(int64(1))

	release, err := lock.Acquire(context.Background(), "meetup-1")
	require.NoError(t, err)
	release()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetupLockRetriesWhileHeld(t *testing.T) {
	db, mock := redismock.NewClientMock()
	lock := NewMeetupLock(db, 5*time.Second)
	lock.RetryDelay = time.Millisecond

	mock.Regexp().ExpectSetNX("lock:join:meetup-1", `[0-9A-F]{32}`, 5*time.Second).SetVal(false)
	mock.Regexp().ExpectSetNX("lock:join:meetup-1", `[0-9A-F]{32}`, 5*time.Second).SetVal(true)
	mock.Regexp().ExpectEval(regexp.QuoteMeta(releaseLockScript), []string{"lock:join:meetup-1"}, `[0-9A-F]{32}`).SetVal(int64(1))

	release, err := lock.Acquire(context.Background(), "meetup-1")
	require.NoError(t, err)
	release()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetupLockGivesUpAfterMaxRetries(t *testing.T) {
	db, mock := redismock.NewClientMock()
	lock := NewMeetupLock(db, 5*time.Second)
	lock.RetryDelay = time.Millisecond
	lock.MaxRetries = 2

	for i := 0; i < 3; i++ {
		mock.Regexp().ExpectSetNX("lock:join:meetup-1", `[0-9A-F]{32}`, 5*time.Second).SetVal(false)
	}

	_, err := lock.Acquire(context.Background(), "meetup-1")
	assert.ErrorIs(t, err, ErrLockNotAcquired)
}

func TestMeetupLockHonorsContextCancellation(t *testing.T) {
	db, mock := redismock.NewClientMock()
	lock := NewMeetupLock(db, 5*time.Second)
	lock.RetryDelay = 50 * time.Millisecond

	mock.Regexp().ExpectSetNX("lock:join:meetup-1", `[0-9A-F]{32}`, 5*time.Second).SetVal(false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := lock.Acquire(ctx, "meetup-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
