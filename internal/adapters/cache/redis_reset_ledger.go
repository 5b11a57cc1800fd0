package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const resetUsedKeyPrefix = "auth:reset:used:"

// RedisResetTokenLedger records consumed reset token ids until the token itself would expire.
type RedisResetTokenLedger struct {
	client redis.UniversalClient
}

func NewRedisResetTokenLedger(client redis.UniversalClient) *RedisResetTokenLedger {
	return &RedisResetTokenLedger{client: client}
}

func (l *RedisResetTokenLedger) Consume(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	fresh, err := l.client.SetNX(ctx, resetUsedKeyPrefix+tokenID, 1, ttl).Result()
	if err != nil {
		return false, unavailable("reset_consume", err)
	}
	return fresh, nil
}

func (l *RedisResetTokenLedger) Release(ctx context.Context, tokenID string) error {
	return unavailable("reset_release", l.client.Del(ctx, resetUsedKeyPrefix+tokenID).Err())
}
