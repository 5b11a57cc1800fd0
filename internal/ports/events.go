package ports

import "context"

// EventPublisher delivers outbox payloads to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}

// NotificationSink hands user-facing messages to whatever delivers them.
type NotificationSink interface {
	SendPasswordResetLink(ctx context.Context, email, resetToken string) error
}

// OperationRecorder counts auth operations by outcome.
type OperationRecorder interface {
	Observe(operation, outcome string)
}

// Integration event types written to the outbox.
const (
	EventTypeUserRegistered         = "user.registered"
	EventTypePasswordResetRequested = "auth.password_reset.requested"
)
