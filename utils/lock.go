package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseLockScript deletes the lock only when the caller still owns it, so a
// slow holder cannot release a lock re-acquired by someone else.
const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

var ErrLockNotAcquired = errors.New("meetup lock: not acquired")

// MeetupLock serializes join attempts per meetup id across service instances.
// Single-instance deployments are already serialized by the store transaction;
// this lock is the explicit serialization point for sharded/multi-node runs.
type MeetupLock struct {
	Redis      *redis.Client
	TTL        time.Duration
	RetryDelay time.Duration
	MaxRetries int
}

func NewMeetupLock(redisClient *redis.Client, ttl time.Duration) *MeetupLock {
	return &MeetupLock{
		Redis:      redisClient,
		TTL:        ttl,
		RetryDelay: 50 * time.Millisecond,
		MaxRetries: 20,
	}
}

// Acquire takes the per-meetup lock and returns a release func. The release
// func is safe to call exactly once and logs nothing on a lost lock.
func (l *MeetupLock) Acquire(ctx context.Context, meetupID string) (func(), error) {
	key := fmt.Sprintf("lock:join:%s", meetupID)
	token, err := GenerateCode(16)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		ok, err := l.Redis.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("meetup lock: %w", err)
		}
		if ok {
			break
		}
		if attempt >= l.MaxRetries {
			return nil, ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.RetryDelay):
		}
	}

	release := func() {
		l.Redis.Eval(context.Background(), releaseLockScript, []string{key}, token)
	}
	return release, nil
}
