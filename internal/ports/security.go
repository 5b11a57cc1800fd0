package ports

import (
	"context"
	"time"

	"github.com/securemsg/auth-service/internal/domain"
)

// PasswordHasher wraps the slow password KDF. Both calls may block waiting for a
// hashing slot and return early when ctx is cancelled.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	// Verify reports false for mismatches and for malformed or out-of-bounds hashes.
	Verify(ctx context.Context, password, encoded string) (bool, error)
}

// SecretBox is authenticated symmetric encryption for small secrets at rest.
type SecretBox interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(envelope []byte) ([]byte, error)
}

// TOTPEngine generates and checks RFC 6238 codes.
type TOTPEngine interface {
	GenerateSecret() (string, error)
	ProvisioningURI(account, secret string) (string, error)
	Verify(secret, code string, at time.Time) bool
}

// QRRenderer turns a provisioning URI into a scannable PNG.
type QRRenderer interface {
	RenderQR(uri string) ([]byte, error)
}

// TokenCodec mints and parses signed bearer tokens. Parse returns domain.ErrTokenInvalid
// for every failure kind.
type TokenCodec interface {
	Mint(claims domain.TokenClaims, ttl time.Duration) (string, error)
	Parse(raw string, expected domain.TokenType) (domain.TokenClaims, error)
}
