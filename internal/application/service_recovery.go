package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/securemsg/auth-service/internal/domain"
	"github.com/securemsg/auth-service/internal/ports"
)

// RequestPasswordReset mails a reset link when the user exists.
// The result is the same for unknown users to avoid account enumeration.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	return s.observe("password_reset_request", s.requestPasswordReset(ctx, email))
}

func (s *Service) requestPasswordReset(ctx context.Context, email string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, normalized)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	token, err := s.tokens.Mint(domain.TokenClaims{
		Type:   domain.TokenTypeReset,
		UserID: user.UserID,
		Email:  user.Email,
	}, s.cfg.ResetTokenTTL)
	if err != nil {
		return fmt.Errorf("mint reset token: %w", err)
	}

	// delivery problems only happen for existing users, so they must not reach the caller
	if err := s.notifications.SendPasswordResetLink(ctx, user.Email, token); err != nil {
		appLogger().ErrorContext(ctx, "password reset notification failed",
			"operation", "password_reset_request",
			"outcome", "failure",
			"user_id", user.UserID.String(),
			"error", err,
		)
	}
	return nil
}

// ConfirmPasswordReset sets a new password and key pair, marks old messages
// undecryptable and ends every session of the user.
func (s *Service) ConfirmPasswordReset(ctx context.Context, req ConfirmPasswordResetRequest) error {
	return s.observe("password_reset_confirm", s.confirmPasswordReset(ctx, req))
}

func (s *Service) confirmPasswordReset(ctx context.Context, req ConfirmPasswordResetRequest) error {
	if strings.TrimSpace(req.Token) == "" {
		return fmt.Errorf("%w: token is required", domain.ErrInvalidInput)
	}
	if err := s.cfg.Policy.ValidatePassword(req.NewPassword); err != nil {
		return err
	}
	if strings.TrimSpace(req.NewPublicKey) == "" || strings.TrimSpace(req.NewEncryptedPrivateKey) == "" {
		return fmt.Errorf("%w: new_public_key and new_encrypted_private_key are required", domain.ErrInvalidInput)
	}

	claims, err := s.tokens.Parse(req.Token, domain.TokenTypeReset)
	if err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrTokenInvalid
	}
	if err != nil {
		return err
	}
	// a token minted before an email change must not survive it
	if !strings.EqualFold(user.Email, claims.Email) {
		return domain.ErrTokenInvalid
	}

	singleUse := s.cfg.ResetSingleUse && s.resetLedger != nil
	if singleUse {
		fresh, err := s.resetLedger.Consume(ctx, claims.TokenID, claims.ExpiresAt.Sub(s.nowFn()))
		if err != nil {
			return err
		}
		if !fresh {
			return domain.ErrTokenInvalid
		}
	}

	marked, err := s.applyReset(ctx, user, req)
	if err != nil {
		if singleUse {
			s.releaseResetToken(ctx, claims.TokenID, user)
		}
		return err
	}

	appLogger().InfoContext(ctx, "password reset completed",
		"operation", "password_reset_confirm",
		"outcome", "success",
		"user_id", user.UserID.String(),
		"messages_marked", marked,
	)
	return nil
}

// applyReset replaces credentials, ends sessions and flags old messages.
// Every step is idempotent.
func (s *Service) applyReset(ctx context.Context, user domain.UserAccount, req ConfirmPasswordResetRequest) (int64, error) {
	passwordHash, err := s.hasher.Hash(ctx, req.NewPassword)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdateCredentials(ctx, ports.UpdateCredentialsParams{
		UserID:              user.UserID,
		PasswordHash:        passwordHash,
		PublicKey:           req.NewPublicKey,
		EncryptedPrivateKey: req.NewEncryptedPrivateKey,
		UpdatedAt:           s.nowFn(),
	}); err != nil {
		return 0, err
	}
	if err := s.sessions.RevokeAll(ctx, user.UserID.String()); err != nil {
		return 0, err
	}
	return s.messages.MarkUndecryptable(ctx, user.UserID)
}

func (s *Service) releaseResetToken(ctx context.Context, tokenID string, user domain.UserAccount) {
	if err := s.resetLedger.Release(context.WithoutCancel(ctx), tokenID); err != nil {
		appLogger().ErrorContext(ctx, "failed to release reset token after aborted reset",
			"operation", "password_reset_confirm",
			"outcome", "failure",
			"user_id", user.UserID.String(),
			"error", err,
		)
	}
}
