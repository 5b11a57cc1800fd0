package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/securemsg/auth-service/internal/domain"
	"github.com/securemsg/auth-service/internal/ports"
	"gorm.io/gorm"
)

type userRepository struct {
	db    *gorm.DB
	retry retrier
}

func (r *userRepository) CreateWithOutboxTx(ctx context.Context, params ports.CreateUserParams, outboxEvent ports.OutboxEvent) (domain.UserAccount, error) {
	var result domain.UserAccount
	err := r.retry.do(ctx, "create_user", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			rec := userModel{
				Username:            params.Username,
				Email:               params.Email,
				PasswordHash:        params.PasswordHash,
				PublicKey:           params.PublicKey,
				EncryptedPrivateKey: params.EncryptedPrivateKey,
				CreatedAt:           params.CreatedAt,
				UpdatedAt:           params.CreatedAt,
			}
			if err := tx.Create(&rec).Error; err != nil {
				if isUniqueViolation(err) {
					return domain.ErrAccountConflict
				}
				return err
			}

			payload, err := registeredPayload(rec)
			if err != nil {
				return err
			}

			partitionKey := outboxEvent.PartitionKey
			if partitionKey == "" {
				partitionKey = rec.UserID.String()
			}
			outbox := authOutboxModel{
				OutboxID:     outboxEvent.EventID,
				EventType:    outboxEvent.EventType,
				PartitionKey: partitionKey,
				Payload:      payload,
				CreatedAt:    outboxEvent.OccurredAt,
				FirstSeenAt:  outboxEvent.OccurredAt,
			}
			if err := tx.Create(&outbox).Error; err != nil {
				return err
			}

			result = toDomainUser(rec)
			return nil
		})
	})
	if err != nil {
		return domain.UserAccount{}, err
	}
	return result, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (domain.UserAccount, error) {
	var rec userModel
	err := r.retry.do(ctx, "get_user_by_email", func(ctx context.Context) error {
		return notFoundOr(r.db.WithContext(ctx).Where("email = ?", email).Take(&rec).Error)
	})
	if err != nil {
		return domain.UserAccount{}, err
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) GetByID(ctx context.Context, userID uuid.UUID) (domain.UserAccount, error) {
	var rec userModel
	err := r.retry.do(ctx, "get_user_by_id", func(ctx context.Context) error {
		return notFoundOr(r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&rec).Error)
	})
	if err != nil {
		return domain.UserAccount{}, err
	}
	return toDomainUser(rec), nil
}

func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.retry.do(ctx, "exists_by_username", func(ctx context.Context) error {
		return r.db.WithContext(ctx).
			Model(&userModel{}).
			Where("lower(username) = lower(?)", username).
			Count(&count).Error
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) UpdateCredentials(ctx context.Context, params ports.UpdateCredentialsParams) error {
	return r.updateUser(ctx, "update_credentials", params.UserID, map[string]any{
		"password_hash":         params.PasswordHash,
		"public_key":            params.PublicKey,
		"encrypted_private_key": params.EncryptedPrivateKey,
		"updated_at":            params.UpdatedAt,
	})
}

func (r *userRepository) UpdateTOTP(ctx context.Context, userID uuid.UUID, secretEncrypted []byte, enabled bool, at time.Time) error {
	if enabled && len(secretEncrypted) == 0 {
		return errors.New("cannot enable totp without a secret")
	}
	var secret any
	if len(secretEncrypted) > 0 {
		secret = secretEncrypted
	}
	return r.updateUser(ctx, "update_totp", userID, map[string]any{
		"totp_secret_encrypted": secret,
		"is_2fa_enabled":        enabled,
		"updated_at":            at,
	})
}

func (r *userRepository) updateUser(ctx context.Context, operation string, userID uuid.UUID, fields map[string]any) error {
	return r.retry.do(ctx, operation, func(ctx context.Context) error {
		res := r.db.WithContext(ctx).
			Model(&userModel{}).
			Where("user_id = ?", userID).
			Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}
