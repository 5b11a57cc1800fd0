package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserAccount is the authentication view of a messenger user.
// Key material is opaque here; the client encrypts its private key before upload.
type UserAccount struct {
	UserID              uuid.UUID
	Username            string
	Email               string
	PasswordHash        string
	TOTPSecretEncrypted []byte
	TwoFactorEnabled    bool
	PublicKey           string
	EncryptedPrivateKey string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TwoFactorState is the TOTP enrollment stage derived from stored account fields.
type TwoFactorState int

const (
	TwoFactorNoSecret TwoFactorState = iota
	TwoFactorSecretIssued
	TwoFactorEnabled
)

func (s TwoFactorState) String() string {
	switch s {
	case TwoFactorSecretIssued:
		return "secret_issued"
	case TwoFactorEnabled:
		return "enabled"
	default:
		return "no_secret"
	}
}

// TwoFactorState reports the enrollment stage. Enabled without a secret is
// treated as setup-incomplete so login never skips verification.
func (u UserAccount) TwoFactorState() TwoFactorState {
	hasSecret := len(u.TOTPSecretEncrypted) > 0
	switch {
	case u.TwoFactorEnabled && hasSecret:
		return TwoFactorEnabled
	case hasSecret, u.TwoFactorEnabled:
		return TwoFactorSecretIssued
	default:
		return TwoFactorNoSecret
	}
}

// LoginEvent is one successful login as seen by the audit trail.
type LoginEvent struct {
	ID        int64
	UserID    uuid.UUID
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// HoneypotEvent records a probe against a decoy endpoint.
type HoneypotEvent struct {
	ID        int64
	IPAddress string
	UserAgent string
	Endpoint  string
	CreatedAt time.Time
}
