package postgres

import (
	"time"

	"github.com/google/uuid"
)

type userModel struct {
	UserID              uuid.UUID `gorm:"column:user_id;type:uuid;default:gen_random_uuid();primaryKey"`
	Username            string    `gorm:"column:username"`
	Email               string    `gorm:"column:email"`
	PasswordHash        string    `gorm:"column:password_hash"`
	TOTPSecretEncrypted []byte    `gorm:"column:totp_secret_encrypted"`
	TwoFactorEnabled    bool      `gorm:"column:is_2fa_enabled"`
	PublicKey           string    `gorm:"column:public_key"`
	EncryptedPrivateKey string    `gorm:"column:encrypted_private_key"`
	CreatedAt           time.Time `gorm:"column:created_at"`
	UpdatedAt           time.Time `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

type loginEventModel struct {
	ID          int64     `gorm:"column:id;primaryKey"`
	UserID      uuid.UUID `gorm:"column:user_id"`
	IPAddress   string    `gorm:"column:ip_address"`
	UserAgent   string    `gorm:"column:user_agent"`
	IsNewDevice bool      `gorm:"column:is_new_device"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (loginEventModel) TableName() string { return "login_events" }

type honeypotEventModel struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	IPAddress string    `gorm:"column:ip_address"`
	UserAgent *string   `gorm:"column:user_agent"`
	Endpoint  string    `gorm:"column:endpoint"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (honeypotEventModel) TableName() string { return "honeypot_events" }

// messageModel carries only the columns the key invalidation touches; the
// message service owns the rest of the table.
type messageModel struct {
	ID                  int64     `gorm:"column:id;primaryKey"`
	SenderID            uuid.UUID `gorm:"column:sender_id"`
	ReceiverID          uuid.UUID `gorm:"column:receiver_id"`
	SenderDecryptable   bool      `gorm:"column:sender_decryptable"`
	ReceiverDecryptable bool      `gorm:"column:receiver_decryptable"`
}

func (messageModel) TableName() string { return "messages" }

type authOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	FirstSeenAt    time.Time  `gorm:"column:first_seen_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (authOutboxModel) TableName() string { return "auth_outbox" }
