package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/securemsg/auth-service/internal/ports"
)

type passwordResetPayload struct {
	Email       string    `json:"email"`
	ResetURL    string    `json:"reset_url"`
	RequestedAt time.Time `json:"requested_at"`
}

// OutboxNotificationSink turns reset links into outbox events. The mailer consumes
// them from the broker; this service never talks SMTP.
type OutboxNotificationSink struct {
	outbox       ports.OutboxRepository
	resetBaseURL string
	nowFn        func() time.Time
}

// NewOutboxNotificationSink builds links as <resetBaseURL>?token=<token>.
func NewOutboxNotificationSink(outbox ports.OutboxRepository, resetBaseURL string) *OutboxNotificationSink {
	return &OutboxNotificationSink{
		outbox:       outbox,
		resetBaseURL: resetBaseURL,
		nowFn:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *OutboxNotificationSink) SendPasswordResetLink(ctx context.Context, email, resetToken string) error {
	link, err := s.resetLink(resetToken)
	if err != nil {
		return err
	}
	now := s.nowFn()
	payload, err := json.Marshal(passwordResetPayload{
		Email:       email,
		ResetURL:    link,
		RequestedAt: now,
	})
	if err != nil {
		return fmt.Errorf("marshal reset payload: %w", err)
	}
	return s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    ports.EventTypePasswordResetRequested,
		PartitionKey: email,
		Payload:      payload,
		OccurredAt:   now,
	})
}

func (s *OutboxNotificationSink) resetLink(token string) (string, error) {
	base, err := url.Parse(s.resetBaseURL)
	if err != nil {
		return "", fmt.Errorf("parse reset base url: %w", err)
	}
	q := base.Query()
	q.Set("token", token)
	base.RawQuery = q.Encode()
	return base.String(), nil
}
