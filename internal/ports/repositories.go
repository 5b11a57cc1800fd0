package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/securemsg/auth-service/internal/domain"
)

// CreateUserParams is the persisted shape of a new account.
type CreateUserParams struct {
	Username            string
	Email               string
	PasswordHash        string
	PublicKey           string
	EncryptedPrivateKey string
	CreatedAt           time.Time
}

// UpdateCredentialsParams replaces the password hash and client key pair after a reset.
type UpdateCredentialsParams struct {
	UserID              uuid.UUID
	PasswordHash        string
	PublicKey           string
	EncryptedPrivateKey string
	UpdatedAt           time.Time
}

// UserRepository persists accounts. Lookups return domain.ErrNotFound when absent;
// Create returns domain.ErrAccountConflict on a duplicate email or username.
type UserRepository interface {
	// CreateWithOutboxTx stores the user and event in one transaction. The event
	// payload is built from the stored row; event.Payload is ignored.
	CreateWithOutboxTx(ctx context.Context, params CreateUserParams, event OutboxEvent) (domain.UserAccount, error)
	GetByEmail(ctx context.Context, email string) (domain.UserAccount, error)
	GetByID(ctx context.Context, userID uuid.UUID) (domain.UserAccount, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	UpdateCredentials(ctx context.Context, params UpdateCredentialsParams) error
	// UpdateTOTP stores the encrypted seed; a nil secret clears it.
	UpdateTOTP(ctx context.Context, userID uuid.UUID, secretEncrypted []byte, enabled bool, at time.Time) error
}

// LoginAudit is the outcome of recording a login.
type LoginAudit struct {
	IsNewDevice bool
}

// AuditSink stores security events.
type AuditSink interface {
	RecordLogin(ctx context.Context, userID uuid.UUID, ipAddress, userAgent string, at time.Time) (LoginAudit, error)
	RecordHoneypotHit(ctx context.Context, event domain.HoneypotEvent) error
}

// MessageKeyInvalidator flags stored messages as undecryptable once a user's key pair is replaced.
type MessageKeyInvalidator interface {
	MarkUndecryptable(ctx context.Context, userID uuid.UUID) (int64, error)
}

// OutboxEvent is an integration event written in the same transaction as its cause.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord is an outbox row as claimed by the publisher worker.
type OutboxRecord struct {
	OutboxID       uuid.UUID
	EventType      string
	PartitionKey   string
	Payload        []byte
	RetryCount     int
	LastError      *string
	CreatedAt      time.Time
	PublishedAt    *time.Time
	LastErrorAt    *time.Time
	ClaimToken     *string
	ClaimUntil     *time.Time
	DeadLetteredAt *time.Time
}

// OutboxRepository stores and leases pending integration events.
type OutboxRepository interface {
	Enqueue(ctx context.Context, event OutboxEvent) error
	// ClaimUnpublished never returns an event that has outlived its delivery window.
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
