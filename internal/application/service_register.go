package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/securemsg/auth-service/internal/domain"
	"github.com/securemsg/auth-service/internal/ports"
)

const registerAcceptedMessage = "registration accepted"

// Register creates an account and its user.registered outbox event in one transaction.
// A taken username is reported; a taken email is masked when MaskEmailConflict is set.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	res, err := s.register(ctx, req)
	return res, s.observe("register", err)
}

func (s *Service) register(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	username := strings.TrimSpace(req.Username)
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return RegisterResponse{}, err
	}
	if err := s.cfg.Policy.ValidateUsername(username); err != nil {
		return RegisterResponse{}, err
	}
	if err := s.cfg.Policy.ValidateEmailLength(email); err != nil {
		return RegisterResponse{}, err
	}
	if err := s.cfg.Policy.ValidatePassword(req.Password); err != nil {
		return RegisterResponse{}, err
	}
	if strings.TrimSpace(req.PublicKey) == "" || strings.TrimSpace(req.EncryptedPrivateKey) == "" {
		return RegisterResponse{}, fmt.Errorf("%w: public_key and encrypted_private_key are required", domain.ErrInvalidInput)
	}

	// an existing email short-circuits before the username check so a repeat
	// registration with both fields unchanged still gets the masked answer
	_, err = s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return s.emailConflict(ctx)
	case !errors.Is(err, domain.ErrNotFound):
		return RegisterResponse{}, err
	}

	taken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return RegisterResponse{}, err
	}
	if taken {
		return RegisterResponse{}, fmt.Errorf("%w: username is taken", domain.ErrAccountConflict)
	}

	passwordHash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.nowFn()
	user, err := s.users.CreateWithOutboxTx(ctx, ports.CreateUserParams{
		Username:            username,
		Email:               email,
		PasswordHash:        passwordHash,
		PublicKey:           req.PublicKey,
		EncryptedPrivateKey: req.EncryptedPrivateKey,
		CreatedAt:           now,
	}, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    ports.EventTypeUserRegistered,
		PartitionKey: email,
		OccurredAt:   now,
	})
	if errors.Is(err, domain.ErrAccountConflict) {
		// lost a race with a concurrent registration; find out which field collided
		if _, lookupErr := s.users.GetByEmail(ctx, email); lookupErr == nil {
			return s.emailConflict(ctx)
		}
		return RegisterResponse{}, fmt.Errorf("%w: username is taken", domain.ErrAccountConflict)
	}
	if err != nil {
		return RegisterResponse{}, err
	}

	appLogger().InfoContext(ctx, "user registered",
		"operation", "register",
		"outcome", "success",
		"user_id", user.UserID.String(),
	)
	return RegisterResponse{Message: registerAcceptedMessage}, nil
}

func (s *Service) emailConflict(ctx context.Context) (RegisterResponse, error) {
	if !s.cfg.MaskEmailConflict {
		return RegisterResponse{}, fmt.Errorf("%w: email is already registered", domain.ErrAccountConflict)
	}
	appLogger().InfoContext(ctx, "duplicate email registration masked",
		"operation", "register",
		"outcome", "masked_conflict",
	)
	return RegisterResponse{Message: registerAcceptedMessage}, nil
}
