package security

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/securemsg/auth-service/internal/domain"
)

const minHMACSecretLength = 32

// JWTCodec implements HS256 token minting/parsing with a single process-wide secret.
// Callers only ever see domain.ErrTokenInvalid; the concrete reason goes to the log.
type JWTCodec struct {
	secret []byte
	nowFn  func() time.Time
}

// NewJWTCodec rejects secrets shorter than 32 bytes.
func NewJWTCodec(secret string) (*JWTCodec, error) {
	if len(secret) < minHMACSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", minHMACSecretLength)
	}
	return &JWTCodec{
		secret: []byte(secret),
		nowFn:  time.Now,
	}, nil
}

// WithClock overrides the codec time source.
func (c *JWTCodec) WithClock(nowFn func() time.Time) *JWTCodec {
	c.nowFn = nowFn
	return c
}

type tokenJWTClaims struct {
	Type      string `json:"type"`
	SessionID string `json:"sid,omitempty"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (c *JWTCodec) Mint(claims domain.TokenClaims, ttl time.Duration) (string, error) {
	if claims.Type == "" {
		return "", errors.New("token type is required")
	}
	if claims.UserID == uuid.Nil {
		return "", errors.New("token subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}

	issuedAt := c.nowFn().UTC()
	tokenID := claims.TokenID
	if tokenID == "" {
		tokenID = uuid.NewString()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenJWTClaims{
		Type:      string(claims.Type),
		SessionID: claims.SessionID,
		Email:     claims.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID.String(),
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	})
	return token.SignedString(c.secret)
}

func (c *JWTCodec) Parse(raw string, expected domain.TokenType) (domain.TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &tokenJWTClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.nowFn),
	)
	if err != nil {
		return domain.TokenClaims{}, rejectToken(expected, parseFailureReason(err), err)
	}
	claims, ok := parsed.Claims.(*tokenJWTClaims)
	if !ok || !parsed.Valid {
		return domain.TokenClaims{}, rejectToken(expected, "malformed", nil)
	}
	if claims.Type != string(expected) {
		return domain.TokenClaims{}, rejectToken(expected, "wrong_type", nil)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.TokenClaims{}, rejectToken(expected, "missing_claims", err)
	}
	if expected != domain.TokenTypeReset && claims.SessionID == "" {
		return domain.TokenClaims{}, rejectToken(expected, "missing_claims", nil)
	}
	if expected == domain.TokenTypeReset && claims.Email == "" {
		return domain.TokenClaims{}, rejectToken(expected, "missing_claims", nil)
	}

	out := domain.TokenClaims{
		Type:      domain.TokenType(claims.Type),
		UserID:    userID,
		SessionID: claims.SessionID,
		Email:     claims.Email,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return out, nil
}

func parseFailureReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return "signature"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "missing_claims"
	default:
		return "malformed"
	}
}

func rejectToken(expected domain.TokenType, reason string, cause error) error {
	fields := []any{
		"module", "security.jwt",
		"layer", "adapter",
		"operation", "parse_token",
		"outcome", "rejected",
		"token_type", string(expected),
		"reason", reason,
	}
	if cause != nil {
		fields = append(fields, "error", cause.Error())
	}
	if reason == "expired" {
		slog.Default().Debug("token rejected", fields...)
	} else {
		slog.Default().Warn("token rejected", fields...)
	}
	return domain.ErrTokenInvalid
}
