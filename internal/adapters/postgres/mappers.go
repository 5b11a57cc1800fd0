package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/securemsg/auth-service/internal/domain"
	"github.com/securemsg/auth-service/internal/ports"
	"gorm.io/gorm"
)

func toDomainUser(row userModel) domain.UserAccount {
	var secret []byte
	if len(row.TOTPSecretEncrypted) > 0 {
		secret = row.TOTPSecretEncrypted
	}
	return domain.UserAccount{
		UserID:              row.UserID,
		Username:            row.Username,
		Email:               row.Email,
		PasswordHash:        row.PasswordHash,
		TOTPSecretEncrypted: secret,
		TwoFactorEnabled:    row.TwoFactorEnabled,
		PublicKey:           row.PublicKey,
		EncryptedPrivateKey: row.EncryptedPrivateKey,
		CreatedAt:           row.CreatedAt,
		UpdatedAt:           row.UpdatedAt,
	}
}

type userRegisteredPayload struct {
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	RegisteredAt time.Time `json:"registered_at"`
}

func registeredPayload(row userModel) (string, error) {
	raw, err := json.Marshal(userRegisteredPayload{
		UserID:       row.UserID.String(),
		Username:     row.Username,
		Email:        row.Email,
		RegisteredAt: row.CreatedAt.UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal user registered payload: %w", err)
	}
	return string(raw), nil
}

func toOutboxRecord(row authOutboxModel) ports.OutboxRecord {
	return ports.OutboxRecord{
		OutboxID:       row.OutboxID,
		EventType:      row.EventType,
		PartitionKey:   row.PartitionKey,
		Payload:        []byte(row.Payload),
		RetryCount:     row.RetryCount,
		LastError:      row.LastError,
		CreatedAt:      row.CreatedAt,
		PublishedAt:    row.PublishedAt,
		LastErrorAt:    row.LastErrorAt,
		ClaimToken:     row.ClaimToken,
		ClaimUntil:     row.ClaimUntil,
		DeadLetteredAt: row.DeadLetteredAt,
	}
}

func nullableString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}
