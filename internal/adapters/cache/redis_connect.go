package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/securemsg/auth-service/internal/domain"
)

// RetryOptions bound how hard the client retries a failing command before giving up.
type RetryOptions struct {
	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
	DialTimeout     time.Duration
}

// Connect initializes a Redis client from URL or host:port input.
func Connect(_ context.Context, redisURL string, retry RetryOptions) (*redis.Client, error) {
	var opt *redis.Options
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{Addr: redisURL}
	}
	if retry.MaxRetries != 0 {
		opt.MaxRetries = retry.MaxRetries
	}
	if retry.MinRetryBackoff > 0 {
		opt.MinRetryBackoff = retry.MinRetryBackoff
	}
	if retry.MaxRetryBackoff > 0 {
		opt.MaxRetryBackoff = retry.MaxRetryBackoff
	}
	if retry.DialTimeout > 0 {
		opt.DialTimeout = retry.DialTimeout
	}
	return redis.NewClient(opt), nil
}

// unavailable marks a command failure that survived the client's retries.
func unavailable(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: redis %s: %v", domain.ErrUpstreamUnavailable, operation, err)
}
