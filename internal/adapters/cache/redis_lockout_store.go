package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/securemsg/auth-service/internal/ports"
)

const lockoutKeyPrefix = "auth:lockout:"

// RedisLockoutStore counts failed logins per key in a Redis hash.
type RedisLockoutStore struct {
	client redis.UniversalClient
}

func NewRedisLockoutStore(client redis.UniversalClient) *RedisLockoutStore {
	return &RedisLockoutStore{client: client}
}

func (s *RedisLockoutStore) Get(ctx context.Context, key string) (ports.LockoutState, error) {
	data, err := s.client.HGetAll(ctx, lockoutKeyPrefix+key).Result()
	if err != nil {
		return ports.LockoutState{}, unavailable("lockout_get", err)
	}
	if len(data) == 0 {
		return ports.LockoutState{}, nil
	}

	state := ports.LockoutState{}
	if raw, ok := data["failed_count"]; ok {
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			state.FailedCount = n
		}
	}
	if raw, ok := data["locked_until"]; ok && raw != "" {
		if unix, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil && unix > 0 {
			t := time.Unix(unix, 0).UTC()
			state.LockedUntil = &t
		}
	}
	return state, nil
}

// RecordFailure bumps the counter; the hash lives for one window after the last failure.
func (s *RedisLockoutStore) RecordFailure(ctx context.Context, key string, now time.Time, threshold int, lockoutWindow time.Duration) (ports.LockoutState, error) {
	redisKey := lockoutKeyPrefix + key

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.HIncrBy(ctx, redisKey, "failed_count", 1)
		p.Expire(ctx, redisKey, lockoutWindow)
		return nil
	})
	if err != nil {
		return ports.LockoutState{}, unavailable("lockout_record", err)
	}

	count := int(incr.Val())
	state := ports.LockoutState{FailedCount: count}
	if threshold > 0 && count >= threshold {
		lockedUntil := now.Add(lockoutWindow).UTC()
		if err := s.client.HSet(ctx, redisKey, "locked_until", lockedUntil.Unix()).Err(); err != nil {
			return ports.LockoutState{}, unavailable("lockout_lock", err)
		}
		state.LockedUntil = &lockedUntil
	}
	return state, nil
}

func (s *RedisLockoutStore) Clear(ctx context.Context, key string) error {
	return unavailable("lockout_clear", s.client.Del(ctx, lockoutKeyPrefix+key).Err())
}
