package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/securemsg/auth-service/internal/domain"
	"github.com/securemsg/auth-service/internal/ports"
	"gorm.io/gorm"
)

type loginEventRepository struct {
	db    *gorm.DB
	retry retrier
}

// RecordLogin stores the login and flags it as a new device when the user has
// logged in before but never from this ip and user agent pair.
func (r *loginEventRepository) RecordLogin(ctx context.Context, userID uuid.UUID, ipAddress, userAgent string, at time.Time) (ports.LoginAudit, error) {
	var audit ports.LoginAudit
	err := r.retry.do(ctx, "record_login", func(ctx context.Context) error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var history int64
			if err := tx.Model(&loginEventModel{}).
				Where("user_id = ?", userID).
				Limit(1).
				Count(&history).Error; err != nil {
				return err
			}
			var sameDevice int64
			if err := tx.Model(&loginEventModel{}).
				Where("user_id = ? AND ip_address = ? AND user_agent = ?", userID, ipAddress, userAgent).
				Limit(1).
				Count(&sameDevice).Error; err != nil {
				return err
			}

			rec := loginEventModel{
				UserID:      userID,
				IPAddress:   ipAddress,
				UserAgent:   userAgent,
				IsNewDevice: history > 0 && sameDevice == 0,
				CreatedAt:   at,
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
			audit = ports.LoginAudit{IsNewDevice: rec.IsNewDevice}
			return nil
		})
	})
	if err != nil {
		return ports.LoginAudit{}, err
	}
	return audit, nil
}

func (r *loginEventRepository) RecordHoneypotHit(ctx context.Context, event domain.HoneypotEvent) error {
	rec := honeypotEventModel{
		IPAddress: event.IPAddress,
		UserAgent: nullableString(event.UserAgent),
		Endpoint:  event.Endpoint,
		CreatedAt: event.CreatedAt,
	}
	return r.retry.do(ctx, "record_honeypot_hit", func(ctx context.Context) error {
		rec.ID = 0
		return r.db.WithContext(ctx).Create(&rec).Error
	})
}
