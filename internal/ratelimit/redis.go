package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable is returned when Redis cannot be reached.
var ErrUnavailable = errors.New("ratelimit: redis unavailable")

const redisKeyPrefix = "ratelimit:"

// The whole read-modify-write runs inside one script, so a key is updated
// atomically.  State is a hash {count, reset_ms}; the key expires shortly
// after its window so idle actors leave nothing behind.
var checkScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local max = tonumber(ARGV[2])
	local window_ms = tonumber(ARGV[3])

	local state = redis.call('HMGET', key, 'count', 'reset_ms')
	local count = tonumber(state[1])
	local reset_ms = tonumber(state[2])

	if count == nil or reset_ms == nil or now_ms > reset_ms then
		reset_ms = now_ms + window_ms
		redis.call('HSET', key, 'count', 1, 'reset_ms', reset_ms)
		redis.call('PEXPIRE', key, window_ms + 1000)
		return {1, reset_ms}
	end

	if count >= max then
		return {0, reset_ms}
	end

	redis.call('HINCRBY', key, 'count', 1)
	return {1, reset_ms}
`)

// RedisLimiter shares windows between instances through Redis.
type RedisLimiter struct {
	rdb redis.UniversalClient
	now func() time.Time
}

func NewRedisLimiter(rdb redis.UniversalClient) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, now: time.Now}
}

// WithClock sets the time source used for window arithmetic.
func (l *RedisLimiter) WithClock(now func() time.Time) *RedisLimiter {
	l.now = now
	return l
}

func (l *RedisLimiter) CheckRate(ctx context.Context, key string, max int, win time.Duration) (bool, error) {
	vals, err := checkScript.Run(ctx, l.rdb, []string{redisKeyPrefix + key},
		l.now().UnixMilli(), max, win.Milliseconds()).Slice()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(vals) != 2 {
		return false, fmt.Errorf("ratelimit: unexpected script result %#v", vals)
	}
	return asInt64(vals[0]) == 1, nil
}

func (l *RedisLimiter) RemainingTime(ctx context.Context, key string) (time.Duration, error) {
	v, err := l.rdb.HGet(ctx, redisKeyPrefix+key, "reset_ms").Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resetMs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, nil
	}
	if d := time.Duration(resetMs-l.now().UnixMilli()) * time.Millisecond; d > 0 {
		return d, nil
	}
	return 0, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
