package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/securemsg/auth-service/internal/domain"
	"gorm.io/gorm"
)

// RetryPolicy bounds retries of transient database failures.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
	}
}

type retrier struct {
	policy RetryPolicy
}

// do runs fn until it succeeds, fails permanently, or attempts run out.
// Exhausted transient failures come back wrapped in domain.ErrUpstreamUnavailable.
func (r retrier) do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return backoff.Permanent(err)
		}
		slog.Default().WarnContext(ctx, "transient postgres failure",
			"module", "postgres",
			"layer", "adapter",
			"operation", operation,
			"outcome", "retry",
			"attempt", attempts,
			"error", err,
		)
		return err
	}, backoff.WithContext(r.newBackOff(), ctx))
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	if isTransient(err) {
		return fmt.Errorf("%s: %w: %w", operation, domain.ErrUpstreamUnavailable, err)
	}
	return err
}

func (r retrier) newBackOff() backoff.BackOff {
	policy := r.policy
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	eb := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		eb.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		eb.MaxInterval = policy.MaxInterval
	}
	eb.MaxElapsedTime = 0
	return backoff.WithMaxRetries(eb, uint64(policy.MaxAttempts-1))
}

// isTransient reports connection-level failures worth another attempt.
// Constraint violations, missing rows and domain errors are final.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
