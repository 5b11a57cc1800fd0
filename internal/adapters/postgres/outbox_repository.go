package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/securemsg/auth-service/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const outboxExpiredReason = "expired before delivery"

// OutboxOptions tunes delivery of auth events.
type OutboxOptions struct {
	// ResetEventTTL is how long a password reset email stays worth sending.
	// Zero keeps reset events pending until they are published.
	ResetEventTTL time.Duration
}

type eventLifetime struct {
	eventType string
	ttl       time.Duration
}

// outboxRepository leases auth_outbox rows to the publisher worker. Reset
// requests are claimed ahead of other events, and events with a lifetime are
// dead-lettered unpublished once they outlive it.
type outboxRepository struct {
	db        *gorm.DB
	lifetimes []eventLifetime
}

func newOutboxRepository(db *gorm.DB, opts OutboxOptions) *outboxRepository {
	r := &outboxRepository{db: db}
	if opts.ResetEventTTL > 0 {
		r.lifetimes = append(r.lifetimes, eventLifetime{eventType: ports.EventTypePasswordResetRequested, ttl: opts.ResetEventTTL})
	}
	return r
}

// Enqueue stores an event outside a user transaction, e.g. a reset link request.
func (r *outboxRepository) Enqueue(ctx context.Context, event ports.OutboxEvent) error {
	if event.EventType == "" || event.PartitionKey == "" {
		return fmt.Errorf("outbox event %s: event type and partition key are required", event.EventID)
	}
	rec := authOutboxModel{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      string(event.Payload),
		CreatedAt:    event.OccurredAt.UTC(),
		FirstSeenAt:  event.OccurredAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

// ClaimUnpublished leases up to limit deliverable rows to claimToken until
// claimUntil. Expired rows are dead-lettered in the same transaction and never
// returned.
func (r *outboxRepository) ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]ports.OutboxRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	if claimToken == "" {
		return nil, fmt.Errorf("claim token is required")
	}

	now := time.Now().UTC()
	var (
		rows    []authOutboxModel
		expired int64
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := r.expireStale(tx, now)
		if err != nil {
			return fmt.Errorf("expire stale outbox rows: %w", err)
		}
		expired = n

		leasable := pendingRows(tx, now).
			Select("outbox_id").
			Order(claimOrder()).
			Limit(limit).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := tx.Model(&authOutboxModel{}).
			Where("outbox_id IN (?)", leasable).
			Updates(map[string]any{
				"claim_token": claimToken,
				"claim_until": claimUntil,
			}).Error; err != nil {
			return err
		}

		return tx.Where("claim_token = ?", claimToken).
			Where("published_at IS NULL AND dead_lettered_at IS NULL").
			Order(claimOrder()).
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	if expired > 0 {
		slog.Default().WarnContext(ctx, "outbox events expired before delivery",
			"module", "postgres",
			"layer", "adapter",
			"operation", "claim_outbox",
			"outcome", "expired",
			"expired_count", expired,
		)
	}

	result := make([]ports.OutboxRecord, 0, len(rows))
	for _, row := range rows {
		result = append(result, toOutboxRecord(row))
	}
	return result, nil
}

// expireStale dead-letters unleased rows older than their event lifetime.
func (r *outboxRepository) expireStale(tx *gorm.DB, now time.Time) (int64, error) {
	var total int64
	for _, lt := range r.lifetimes {
		res := pendingRows(tx, now).
			Where("event_type = ?", lt.eventType).
			Where("created_at < ?", lt.cutoff(now)).
			Updates(map[string]any{
				"last_error":       outboxExpiredReason,
				"last_error_at":    now,
				"dead_lettered_at": now,
			})
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}

func (lt eventLifetime) cutoff(now time.Time) time.Time {
	return now.Add(-lt.ttl)
}

// pendingRows scopes to unpublished rows that no live lease holds.
func pendingRows(tx *gorm.DB, now time.Time) *gorm.DB {
	return tx.Model(&authOutboxModel{}).
		Where("published_at IS NULL").
		Where("dead_lettered_at IS NULL").
		Where("claim_until IS NULL OR claim_until < ?", now)
}

// claimOrder puts reset requests first, then oldest first.
func claimOrder() clause.OrderBy {
	return clause.OrderBy{Expression: clause.Expr{
		SQL:                "CASE WHEN event_type = ? THEN 0 ELSE 1 END, created_at ASC",
		Vars:               []any{ports.EventTypePasswordResetRequested},
		WithoutParentheses: true,
	}}
}

func (r *outboxRepository) MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error {
	return r.releaseLease(ctx, outboxID, claimToken, map[string]any{
		"published_at": at,
	})
}

// MarkFailed records a publish error and returns the row to the pending pool.
func (r *outboxRepository) MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	return r.releaseLease(ctx, outboxID, claimToken, map[string]any{
		"retry_count":   gorm.Expr("retry_count + 1"),
		"last_error":    errMsg,
		"last_error_at": at,
	})
}

func (r *outboxRepository) MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error {
	return r.releaseLease(ctx, outboxID, claimToken, map[string]any{
		"retry_count":      gorm.Expr("retry_count + 1"),
		"last_error":       errMsg,
		"last_error_at":    at,
		"dead_lettered_at": at,
	})
}

// releaseLease applies updates only while claimToken still holds the row, so a
// worker whose lease lapsed cannot overwrite the new holder's outcome.
func (r *outboxRepository) releaseLease(ctx context.Context, outboxID uuid.UUID, claimToken string, updates map[string]any) error {
	updates["claim_token"] = nil
	updates["claim_until"] = nil
	res := r.db.WithContext(ctx).
		Model(&authOutboxModel{}).
		Where("outbox_id = ?", outboxID).
		Where("claim_token = ?", claimToken).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		slog.Default().WarnContext(ctx, "outbox lease lost before release",
			"module", "postgres",
			"layer", "adapter",
			"operation", "release_outbox_lease",
			"outcome", "stale_lease",
			"outbox_id", outboxID.String(),
		)
	}
	return nil
}
