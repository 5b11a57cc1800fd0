package application

import (
	"context"
	"sync"
	"time"

	"github.com/securemsg/auth-service/internal/domain"
	"github.com/securemsg/auth-service/internal/ports"
)

// Config carries the token lifetimes and policy switches of the auth core.
type Config struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ResetTokenTTL   time.Duration

	Policy domain.CredentialPolicy

	LockoutThreshold int
	LockoutWindow    time.Duration

	// AccessSessionCheck makes access-token validation also require a live session.
	AccessSessionCheck bool
	// ResetSingleUse records consumed reset tokens until they expire.
	ResetSingleUse bool
	// MaskEmailConflict answers duplicate-email registrations with the success shape.
	MaskEmailConflict bool
}

// Service implements the login, session and credential lifecycle.
type Service struct {
	cfg           Config
	users         ports.UserRepository
	audit         ports.AuditSink
	messages      ports.MessageKeyInvalidator
	sessions      ports.SessionStore
	lockouts      ports.LockoutStore
	resetLedger   ports.ResetTokenLedger
	hasher        ports.PasswordHasher
	secretBox     ports.SecretBox
	totp          ports.TOTPEngine
	qr            ports.QRRenderer
	tokens        ports.TokenCodec
	notifications ports.NotificationSink
	metrics       ports.OperationRecorder
	nowFn         func() time.Time

	decoyOnce sync.Once
	decoyHash string
}

type Dependencies struct {
	Config        Config
	Users         ports.UserRepository
	Audit         ports.AuditSink
	Messages      ports.MessageKeyInvalidator
	Sessions      ports.SessionStore
	Lockouts      ports.LockoutStore
	ResetLedger   ports.ResetTokenLedger
	Hasher        ports.PasswordHasher
	SecretBox     ports.SecretBox
	TOTP          ports.TOTPEngine
	QR            ports.QRRenderer
	Tokens        ports.TokenCodec
	Notifications ports.NotificationSink
	Metrics       ports.OperationRecorder
	// Clock defaults to time.Now in UTC.
	Clock func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 15 * time.Minute
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = time.Hour
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopRecorder{}
	}
	nowFn := deps.Clock
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		cfg:           cfg,
		users:         deps.Users,
		audit:         deps.Audit,
		messages:      deps.Messages,
		sessions:      deps.Sessions,
		lockouts:      deps.Lockouts,
		resetLedger:   deps.ResetLedger,
		hasher:        deps.Hasher,
		secretBox:     deps.SecretBox,
		totp:          deps.TOTP,
		qr:            deps.QR,
		tokens:        deps.Tokens,
		notifications: deps.Notifications,
		metrics:       metrics,
		nowFn:         nowFn,
	}
}

// Ready reports whether the session store answers. Used by the readiness probe.
func (s *Service) Ready(ctx context.Context) error {
	_, _, err := s.sessions.Lookup(ctx, "readiness-probe")
	return err
}

type noopRecorder struct{}

func (noopRecorder) Observe(string, string) {}
