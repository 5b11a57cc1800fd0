package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type messageRepository struct {
	db    *gorm.DB
	retry retrier
}

// MarkUndecryptable clears the decryptable flag on every message the user sent or
// received. Both updates run in one transaction so a retry never leaves half the rows flagged.
func (r *messageRepository) MarkUndecryptable(ctx context.Context, userID uuid.UUID) (int64, error) {
	var affected int64
	err := r.retry.do(ctx, "mark_messages_undecryptable", func(ctx context.Context) error {
		affected = 0
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			sent := tx.Model(&messageModel{}).
				Where("sender_id = ? AND sender_decryptable", userID).
				Update("sender_decryptable", false)
			if sent.Error != nil {
				return sent.Error
			}
			received := tx.Model(&messageModel{}).
				Where("receiver_id = ? AND receiver_decryptable", userID).
				Update("receiver_decryptable", false)
			if received.Error != nil {
				return received.Error
			}
			affected = sent.RowsAffected + received.RowsAffected
			return nil
		})
	})
	return affected, err
}
