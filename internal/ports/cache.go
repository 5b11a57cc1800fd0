package ports

import (
	"context"
	"time"
)

// SessionStore holds refresh sessions as session_id -> user_id plus a per-user index.
// Every key it writes carries a TTL.
type SessionStore interface {
	Create(ctx context.Context, userID, sessionID string, ttl time.Duration) error
	Lookup(ctx context.Context, sessionID string) (userID string, found bool, err error)
	RevokeOne(ctx context.Context, sessionID string) error
	RevokeAll(ctx context.Context, userID string) error
	ListByUser(ctx context.Context, userID string) ([]string, error)
}

// LockoutState is the current lockout envelope for a login key.
type LockoutState struct {
	FailedCount int
	LockedUntil *time.Time
}

// LockoutStore handles short-lived brute-force protection state.
type LockoutStore interface {
	Get(ctx context.Context, key string) (LockoutState, error)
	RecordFailure(ctx context.Context, key string, now time.Time, threshold int, lockoutWindow time.Duration) (LockoutState, error)
	Clear(ctx context.Context, key string) error
}

// ResetTokenLedger marks reset tokens as consumed. Consume returns false when the
// token id was already used.
type ResetTokenLedger interface {
	Consume(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)
	// Release drops the marker so a reset that failed midway can be retried.
	Release(ctx context.Context, tokenID string) error
}
