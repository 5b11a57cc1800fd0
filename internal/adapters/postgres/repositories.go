package postgres

import (
	"github.com/securemsg/auth-service/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Users    ports.UserRepository
	Audit    ports.AuditSink
	Messages ports.MessageKeyInvalidator
	Outbox   ports.OutboxRepository
}

func NewRepositories(db *gorm.DB, retry RetryPolicy, outbox OutboxOptions) Repositories {
	r := retrier{policy: retry}
	return Repositories{
		Users:    &userRepository{db: db, retry: r},
		Audit:    &loginEventRepository{db: db, retry: r},
		Messages: &messageRepository{db: db, retry: r},
		// the outbox worker has its own retry loop
		Outbox: newOutboxRepository(db, outbox),
	}
}
