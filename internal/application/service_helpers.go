package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/securemsg/auth-service/internal/domain"
)

const (
	serviceName = "secure-messenger-auth"
	// decoyPassword is hashed once and verified against for unknown emails.
	decoyPassword = "decoy-password-for-timing-equalization"
)

func appLogger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "application",
		"layer", "application",
	)
}

// normalizeEmail canonicalizes and validates email format before persistence/comparison.
func normalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	return trimmed, nil
}

// verifyDecoy burns one password verification so unknown emails cost the same as wrong passwords.
func (s *Service) verifyDecoy(ctx context.Context, password string) {
	s.decoyOnce.Do(func() {
		hash, err := s.hasher.Hash(context.WithoutCancel(ctx), decoyPassword)
		if err != nil {
			appLogger().WarnContext(ctx, "decoy hash unavailable",
				"operation", "login",
				"outcome", "warning",
				"error", err,
			)
			return
		}
		s.decoyHash = hash
	})
	if s.decoyHash == "" {
		return
	}
	_, _ = s.hasher.Verify(ctx, password, s.decoyHash)
}

func (s *Service) lockoutKey(email string) string {
	return "login:" + email
}

// checkLockout fails open when the lockout store is unreachable.
func (s *Service) checkLockout(ctx context.Context, email string) error {
	if s.lockouts == nil || s.cfg.LockoutThreshold <= 0 {
		return nil
	}
	state, err := s.lockouts.Get(ctx, s.lockoutKey(email))
	if err != nil {
		appLogger().WarnContext(ctx, "lockout state unavailable",
			"operation", "login",
			"outcome", "warning",
			"error", err,
		)
		return nil
	}
	if state.LockedUntil != nil && state.LockedUntil.After(s.nowFn()) {
		return domain.ErrAccountLocked
	}
	return nil
}

func (s *Service) recordLoginFailure(ctx context.Context, email, reason string) {
	if s.lockouts == nil || s.cfg.LockoutThreshold <= 0 {
		return
	}
	state, err := s.lockouts.RecordFailure(ctx, s.lockoutKey(email), s.nowFn(), s.cfg.LockoutThreshold, s.cfg.LockoutWindow)
	if err != nil {
		appLogger().WarnContext(ctx, "failed to record login failure",
			"operation", "record_login_failure",
			"outcome", "warning",
			"reason", reason,
			"error", err,
		)
		return
	}
	if state.LockedUntil != nil {
		appLogger().WarnContext(ctx, "login locked after repeated failures",
			"operation", "record_login_failure",
			"outcome", "locked",
			"reason", reason,
			"failed_count", state.FailedCount,
		)
	}
}

func (s *Service) clearLoginFailures(ctx context.Context, email string) {
	if s.lockouts == nil || s.cfg.LockoutThreshold <= 0 {
		return
	}
	if err := s.lockouts.Clear(ctx, s.lockoutKey(email)); err != nil {
		appLogger().WarnContext(ctx, "failed to clear login failures",
			"operation", "login",
			"outcome", "warning",
			"error", err,
		)
	}
}

// observe records the operation outcome and passes err through.
func (s *Service) observe(operation string, err error) error {
	s.metrics.Observe(operation, outcomeOf(err))
	return err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrSecondFactorRequired):
		return "second_factor_required"
	case errors.Is(err, domain.ErrInvalidSecondFactor):
		return "invalid_second_factor"
	case errors.Is(err, domain.ErrSecondFactorSetupIncomplete):
		return "setup_incomplete"
	case errors.Is(err, domain.ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, domain.ErrSessionRevoked):
		return "session_revoked"
	case errors.Is(err, domain.ErrAccountLocked):
		return "locked"
	case errors.Is(err, domain.ErrPolicyViolation), errors.Is(err, domain.ErrInvalidInput):
		return "rejected_input"
	case errors.Is(err, domain.ErrAccountConflict):
		return "conflict"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "upstream_unavailable"
	default:
		return "error"
	}
}
