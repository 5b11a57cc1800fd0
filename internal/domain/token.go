package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenType is carried in every minted token and checked on parse.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
	TokenTypeReset   TokenType = "reset"
)

// TokenClaims is the decoded payload of an access, refresh or reset token.
// SessionID is empty for reset tokens; Email is only set on reset tokens.
type TokenClaims struct {
	Type      TokenType
	UserID    uuid.UUID
	SessionID string
	Email     string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
