package application

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"github.com/securemsg/auth-service/internal/domain"
)

// InitializeTOTP issues a TOTP secret, or re-issues the pending one if setup was
// started but never confirmed, so a secret already scanned stays valid.
func (s *Service) InitializeTOTP(ctx context.Context, userID uuid.UUID) (TOTPSetupResponse, error) {
	res, err := s.initializeTOTP(ctx, userID)
	return res, s.observe("totp_initialize", err)
}

func (s *Service) initializeTOTP(ctx context.Context, userID uuid.UUID) (TOTPSetupResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return TOTPSetupResponse{}, err
	}
	if user.TwoFactorState() == domain.TwoFactorEnabled {
		return TOTPSetupResponse{}, domain.ErrTOTPAlreadyEnabled
	}

	var secret string
	if len(user.TOTPSecretEncrypted) > 0 {
		secret, err = s.openTOTPSecret(user)
		if err != nil {
			return TOTPSetupResponse{}, err
		}
	} else {
		secret, err = s.totp.GenerateSecret()
		if err != nil {
			return TOTPSetupResponse{}, err
		}
		sealed, err := s.secretBox.Seal([]byte(secret))
		if err != nil {
			return TOTPSetupResponse{}, fmt.Errorf("seal totp secret: %w", err)
		}
		if err := s.users.UpdateTOTP(ctx, user.UserID, sealed, false, s.nowFn()); err != nil {
			return TOTPSetupResponse{}, err
		}
	}

	uri, err := s.totp.ProvisioningURI(user.Username, secret)
	if err != nil {
		return TOTPSetupResponse{}, err
	}
	png, err := s.qr.RenderQR(uri)
	if err != nil {
		return TOTPSetupResponse{}, err
	}
	return TOTPSetupResponse{
		QRCode:          "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		Secret:          secret,
		ProvisioningURI: uri,
	}, nil
}

// EnableTOTP confirms the pending secret with a first valid code.
func (s *Service) EnableTOTP(ctx context.Context, userID uuid.UUID, code string) error {
	return s.observe("totp_enable", s.enableTOTP(ctx, userID, code))
}

func (s *Service) enableTOTP(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.TwoFactorState() == domain.TwoFactorEnabled {
		return domain.ErrTOTPAlreadyEnabled
	}
	if len(user.TOTPSecretEncrypted) == 0 {
		return domain.ErrTOTPNotInitialized
	}
	secret, err := s.openTOTPSecret(user)
	if err != nil {
		return err
	}
	if !s.totp.Verify(secret, code, s.nowFn()) {
		return domain.ErrInvalidSecondFactor
	}
	if err := s.users.UpdateTOTP(ctx, user.UserID, user.TOTPSecretEncrypted, true, s.nowFn()); err != nil {
		return err
	}
	appLogger().InfoContext(ctx, "totp enabled",
		"operation", "totp_enable",
		"outcome", "success",
		"user_id", user.UserID.String(),
	)
	return nil
}

// DisableTOTP requires a fresh valid code and clears the stored secret.
func (s *Service) DisableTOTP(ctx context.Context, userID uuid.UUID, code string) error {
	return s.observe("totp_disable", s.disableTOTP(ctx, userID, code))
}

func (s *Service) disableTOTP(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.TwoFactorState() != domain.TwoFactorEnabled {
		return domain.ErrTOTPNotEnabled
	}
	secret, err := s.openTOTPSecret(user)
	if err != nil {
		return err
	}
	if !s.totp.Verify(secret, code, s.nowFn()) {
		return domain.ErrInvalidSecondFactor
	}
	if err := s.users.UpdateTOTP(ctx, user.UserID, nil, false, s.nowFn()); err != nil {
		return err
	}
	appLogger().InfoContext(ctx, "totp disabled",
		"operation", "totp_disable",
		"outcome", "success",
		"user_id", user.UserID.String(),
	)
	return nil
}

func (s *Service) openTOTPSecret(user domain.UserAccount) (string, error) {
	plaintext, err := s.secretBox.Open(user.TOTPSecretEncrypted)
	if err != nil {
		return "", fmt.Errorf("open totp secret for user %s: %w", user.UserID, err)
	}
	return string(plaintext), nil
}
