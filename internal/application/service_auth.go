package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/securemsg/auth-service/internal/domain"
)

const tokenTypeBearer = "bearer"

// Login runs credential check, optional TOTP check and session issuance.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	res, err := s.login(ctx, req)
	return res, s.observe("login", err)
}

func (s *Service) login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return LoginResponse{}, err
	}
	if req.Password == "" {
		return LoginResponse{}, fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}
	if err := s.checkLockout(ctx, email); err != nil {
		return LoginResponse{}, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		s.verifyDecoy(ctx, req.Password)
		s.recordLoginFailure(ctx, email, "unknown_email")
		return LoginResponse{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return LoginResponse{}, err
	}

	ok, err := s.hasher.Verify(ctx, req.Password, user.PasswordHash)
	if err != nil {
		return LoginResponse{}, err
	}
	if !ok {
		s.recordLoginFailure(ctx, email, "bad_password")
		return LoginResponse{}, domain.ErrInvalidCredentials
	}

	switch user.TwoFactorState() {
	case domain.TwoFactorSecretIssued:
		return LoginResponse{}, domain.ErrSecondFactorSetupIncomplete
	case domain.TwoFactorEnabled:
		if req.TOTPCode == "" {
			return LoginResponse{}, domain.ErrSecondFactorRequired
		}
		secret, err := s.openTOTPSecret(user)
		if err != nil {
			return LoginResponse{}, err
		}
		if !s.totp.Verify(secret, req.TOTPCode, s.nowFn()) {
			s.recordLoginFailure(ctx, email, "bad_totp")
			return LoginResponse{}, domain.ErrInvalidSecondFactor
		}
	}

	s.clearLoginFailures(ctx, email)

	sessionID := uuid.NewString()
	refreshToken, err := s.tokens.Mint(domain.TokenClaims{
		Type:      domain.TokenTypeRefresh,
		UserID:    user.UserID,
		SessionID: sessionID,
		TokenID:   sessionID,
	}, s.cfg.RefreshTokenTTL)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("mint refresh token: %w", err)
	}
	accessToken, err := s.mintAccess(user.UserID, sessionID)
	if err != nil {
		return LoginResponse{}, err
	}
	if err := s.sessions.Create(ctx, user.UserID.String(), sessionID, s.cfg.RefreshTokenTTL); err != nil {
		return LoginResponse{}, err
	}

	res := LoginResponse{
		AccessToken:         accessToken,
		RefreshToken:        refreshToken,
		TokenType:           tokenTypeBearer,
		ExpiresIn:           int64(s.cfg.AccessTokenTTL.Seconds()),
		EncryptedPrivateKey: user.EncryptedPrivateKey,
	}
	if s.audit != nil {
		audit, err := s.audit.RecordLogin(ctx, user.UserID, req.IPAddress, req.UserAgent, s.nowFn())
		if err != nil {
			appLogger().WarnContext(ctx, "failed to record login event",
				"operation", "login",
				"outcome", "warning",
				"user_id", user.UserID.String(),
				"error", err,
			)
		} else {
			res.IsNewDevice = audit.IsNewDevice
		}
	}

	appLogger().InfoContext(ctx, "login succeeded",
		"operation", "login",
		"outcome", "success",
		"user_id", user.UserID.String(),
		"session_id", sessionID,
		"new_device", res.IsNewDevice,
	)
	return res, nil
}

// Refresh mints a new access token for a live session. The refresh token is not rotated.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (RefreshResponse, error) {
	res, err := s.refresh(ctx, refreshToken)
	return res, s.observe("refresh", err)
}

func (s *Service) refresh(ctx context.Context, refreshToken string) (RefreshResponse, error) {
	claims, err := s.tokens.Parse(refreshToken, domain.TokenTypeRefresh)
	if err != nil {
		return RefreshResponse{}, err
	}
	if err := s.requireLiveSession(ctx, claims); err != nil {
		return RefreshResponse{}, err
	}

	accessToken, err := s.mintAccess(claims.UserID, claims.SessionID)
	if err != nil {
		return RefreshResponse{}, err
	}
	return RefreshResponse{
		AccessToken: accessToken,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int64(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

// Logout revokes the session behind refreshToken. An unusable token is already logged out.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.Parse(refreshToken, domain.TokenTypeRefresh)
	if err != nil {
		return s.observe("logout", nil)
	}
	return s.observe("logout", s.sessions.RevokeOne(ctx, claims.SessionID))
}

// LogoutAll revokes every session of the token's owner.
func (s *Service) LogoutAll(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.Parse(refreshToken, domain.TokenTypeRefresh)
	if err != nil {
		return s.observe("logout_all", nil)
	}
	err = s.sessions.RevokeAll(ctx, claims.UserID.String())
	if err == nil {
		appLogger().InfoContext(ctx, "all sessions revoked",
			"operation", "logout_all",
			"outcome", "success",
			"user_id", claims.UserID.String(),
		)
	}
	return s.observe("logout_all", err)
}

// ValidateAccessToken authenticates a bearer access token. The session store is
// only consulted when AccessSessionCheck is on.
func (s *Service) ValidateAccessToken(ctx context.Context, raw string) (AccessIdentity, error) {
	claims, err := s.tokens.Parse(raw, domain.TokenTypeAccess)
	if err != nil {
		return AccessIdentity{}, err
	}
	if s.cfg.AccessSessionCheck {
		if err := s.requireLiveSession(ctx, claims); err != nil {
			return AccessIdentity{}, err
		}
	}
	return AccessIdentity{
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		ExpiresAt: claims.ExpiresAt.Unix(),
	}, nil
}

// ListSessions returns the caller's live sessions, flagging the one behind the current token.
func (s *Service) ListSessions(ctx context.Context, identity AccessIdentity) ([]SessionItem, error) {
	ids, err := s.sessions.ListByUser(ctx, identity.UserID.String())
	if err != nil {
		return nil, err
	}
	items := make([]SessionItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, SessionItem{SessionID: id, Current: id == identity.SessionID})
	}
	return items, nil
}

func (s *Service) requireLiveSession(ctx context.Context, claims domain.TokenClaims) error {
	owner, found, err := s.sessions.Lookup(ctx, claims.SessionID)
	if err != nil {
		return err
	}
	if !found || owner != claims.UserID.String() {
		return domain.ErrSessionRevoked
	}
	return nil
}

func (s *Service) mintAccess(userID uuid.UUID, sessionID string) (string, error) {
	token, err := s.tokens.Mint(domain.TokenClaims{
		Type:      domain.TokenTypeAccess,
		UserID:    userID,
		SessionID: sessionID,
	}, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", fmt.Errorf("mint access token: %w", err)
	}
	return token, nil
}
