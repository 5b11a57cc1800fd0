package application_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/securemsg/auth-service/internal/adapters/security"
	"github.com/securemsg/auth-service/internal/application"
	"github.com/securemsg/auth-service/internal/domain"
	"github.com/securemsg/auth-service/internal/ports"
)

const testJWTSecret = "application-test-secret-0123456789"

type fixture struct {
	service       *application.Service
	users         *fakeUsers
	sessions      *fakeSessions
	audit         *fakeAudit
	messages      *fakeMessages
	notifications *fakeNotifications
	hasher        *countingHasher
	totp          *security.TOTPEngine
	lockouts      *fakeLockouts
	metrics       *fakeMetrics
	clock         *fakeClock
}

func defaultTestConfig() application.Config {
	return application.Config{
		AccessTokenTTL:    15 * time.Minute,
		RefreshTokenTTL:   7 * 24 * time.Hour,
		ResetTokenTTL:     time.Hour,
		Policy:            domain.DefaultCredentialPolicy(),
		LockoutThreshold:  5,
		LockoutWindow:     15 * time.Minute,
		MaskEmailConflict: true,
	}
}

func newFixture() *fixture {
	return newFixtureWithConfig(defaultTestConfig())
}

func newFixtureWithConfig(cfg application.Config) *fixture {
	clock := &fakeClock{now: time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)}
	users := &fakeUsers{byID: map[uuid.UUID]domain.UserAccount{}}
	sessions := &fakeSessions{owners: map[string]string{}, index: map[string]map[string]bool{}}
	audit := &fakeAudit{}
	messages := &fakeMessages{marked: map[uuid.UUID]int{}}
	notifications := &fakeNotifications{}
	lockouts := &fakeLockouts{state: map[string]ports.LockoutState{}}
	metrics := &fakeMetrics{counts: map[string]int{}}
	hasher := &countingHasher{inner: security.NewArgon2Hasher(security.Argon2Params{
		MemoryKiB: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	}, 4)}

	codec, err := security.NewJWTCodec(testJWTSecret)
	if err != nil {
		panic(err)
	}
	codec.WithClock(clock.Now)
	box, err := security.NewSecretBox(bytes.Repeat([]byte{3}, 32))
	if err != nil {
		panic(err)
	}
	totp := security.NewTOTPEngine("SecureMessenger")

	svc := application.NewService(application.Dependencies{
		Config:        cfg,
		Users:         users,
		Audit:         audit,
		Messages:      messages,
		Sessions:      sessions,
		Lockouts:      lockouts,
		ResetLedger:   &fakeLedger{used: map[string]bool{}},
		Hasher:        hasher,
		SecretBox:     box,
		TOTP:          totp,
		QR:            security.NewQRRenderer(),
		Tokens:        codec,
		Notifications: notifications,
		Metrics:       metrics,
		Clock:         clock.Now,
	})
	return &fixture{
		service:       svc,
		users:         users,
		sessions:      sessions,
		audit:         audit,
		messages:      messages,
		notifications: notifications,
		hasher:        hasher,
		totp:          totp,
		lockouts:      lockouts,
		metrics:       metrics,
		clock:         clock,
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingHasher struct {
	mu       sync.Mutex
	inner    ports.PasswordHasher
	verifies int
}

func (h *countingHasher) Hash(ctx context.Context, password string) (string, error) {
	return h.inner.Hash(ctx, password)
}

func (h *countingHasher) Verify(ctx context.Context, password, encoded string) (bool, error) {
	h.mu.Lock()
	h.verifies++
	h.mu.Unlock()
	return h.inner.Verify(ctx, password, encoded)
}

func (h *countingHasher) Verifies() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.verifies
}

type fakeUsers struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]domain.UserAccount
	events  []ports.OutboxEvent
	failErr error
}

func (f *fakeUsers) CreateWithOutboxTx(_ context.Context, params ports.CreateUserParams, event ports.OutboxEvent) (domain.UserAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == params.Email || u.Username == params.Username {
			return domain.UserAccount{}, domain.ErrAccountConflict
		}
	}
	u := domain.UserAccount{
		UserID:              uuid.New(),
		Username:            params.Username,
		Email:               params.Email,
		PasswordHash:        params.PasswordHash,
		PublicKey:           params.PublicKey,
		EncryptedPrivateKey: params.EncryptedPrivateKey,
		CreatedAt:           params.CreatedAt,
		UpdatedAt:           params.CreatedAt,
	}
	f.byID[u.UserID] = u
	f.events = append(f.events, event)
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (domain.UserAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return domain.UserAccount{}, f.failErr
	}
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.UserAccount{}, domain.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, userID uuid.UUID) (domain.UserAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return domain.UserAccount{}, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) ExistsByUsername(_ context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if strings.EqualFold(u.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUsers) UpdateCredentials(_ context.Context, params ports.UpdateCredentialsParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[params.UserID]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = params.PasswordHash
	u.PublicKey = params.PublicKey
	u.EncryptedPrivateKey = params.EncryptedPrivateKey
	u.UpdatedAt = params.UpdatedAt
	f.byID[u.UserID] = u
	return nil
}

func (f *fakeUsers) UpdateTOTP(_ context.Context, userID uuid.UUID, secretEncrypted []byte, enabled bool, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.TOTPSecretEncrypted = secretEncrypted
	u.TwoFactorEnabled = enabled
	u.UpdatedAt = at
	f.byID[userID] = u
	return nil
}

func (f *fakeUsers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

func (f *fakeUsers) setEmail(userID uuid.UUID, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byID[userID]
	u.Email = email
	f.byID[userID] = u
}

type fakeSessions struct {
	mu      sync.Mutex
	owners  map[string]string
	index   map[string]map[string]bool
	failErr error
}

func (f *fakeSessions) Create(_ context.Context, userID, sessionID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	if f.index[userID] == nil {
		f.index[userID] = map[string]bool{}
	}
	f.index[userID][sessionID] = true
	f.owners[sessionID] = userID
	return nil
}

func (f *fakeSessions) Lookup(_ context.Context, sessionID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return "", false, f.failErr
	}
	owner, ok := f.owners[sessionID]
	return owner, ok, nil
}

func (f *fakeSessions) RevokeOne(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	owner, ok := f.owners[sessionID]
	if !ok {
		return nil
	}
	delete(f.owners, sessionID)
	delete(f.index[owner], sessionID)
	return nil
}

func (f *fakeSessions) RevokeAll(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sid := range f.index[userID] {
		delete(f.owners, sid)
	}
	delete(f.index, userID)
	return nil
}

func (f *fakeSessions) ListByUser(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.index[userID]))
	for sid := range f.index[userID] {
		ids = append(ids, sid)
	}
	return ids, nil
}

func (f *fakeSessions) setFailure(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failErr = err
}

type fakeAudit struct {
	mu        sync.Mutex
	logins    []domain.LoginEvent
	honeypots []domain.HoneypotEvent
}

func (f *fakeAudit) RecordLogin(_ context.Context, userID uuid.UUID, ip, ua string, at time.Time) (ports.LoginAudit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hasHistory := false
	seen := false
	for _, e := range f.logins {
		if e.UserID != userID {
			continue
		}
		hasHistory = true
		if e.IPAddress == ip && e.UserAgent == ua {
			seen = true
		}
	}
	f.logins = append(f.logins, domain.LoginEvent{UserID: userID, IPAddress: ip, UserAgent: ua, CreatedAt: at})
	return ports.LoginAudit{IsNewDevice: hasHistory && !seen}, nil
}

func (f *fakeAudit) RecordHoneypotHit(_ context.Context, event domain.HoneypotEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.honeypots = append(f.honeypots, event)
	return nil
}

type fakeMessages struct {
	mu      sync.Mutex
	marked  map[uuid.UUID]int
	failErr error
}

func (f *fakeMessages) setFailure(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failErr = err
}

func (f *fakeMessages) MarkUndecryptable(_ context.Context, userID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return 0, f.failErr
	}
	f.marked[userID]++
	return 3, nil
}

func (f *fakeMessages) timesMarked(userID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marked[userID]
}

type sentReset struct {
	email string
	token string
}

type fakeNotifications struct {
	mu      sync.Mutex
	sent    []sentReset
	failErr error
}

func (f *fakeNotifications) SendPasswordResetLink(_ context.Context, email, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.sent = append(f.sent, sentReset{email: email, token: token})
	return nil
}

func (f *fakeNotifications) last() (sentReset, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentReset{}, false
	}
	return f.sent[len(f.sent)-1], true
}

type fakeLockouts struct {
	mu    sync.Mutex
	state map[string]ports.LockoutState
}

func (f *fakeLockouts) Get(_ context.Context, key string) (ports.LockoutState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state[key], nil
}

func (f *fakeLockouts) RecordFailure(_ context.Context, key string, now time.Time, threshold int, window time.Duration) (ports.LockoutState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.state[key]
	st.FailedCount++
	if st.FailedCount >= threshold {
		until := now.Add(window)
		st.LockedUntil = &until
	}
	f.state[key] = st
	return st, nil
}

func (f *fakeLockouts) Clear(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.state, key)
	return nil
}

type fakeLedger struct {
	mu   sync.Mutex
	used map[string]bool
}

func (f *fakeLedger) Consume(_ context.Context, tokenID string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.used[tokenID] {
		return false, nil
	}
	f.used[tokenID] = true
	return true, nil
}

func (f *fakeLedger) Release(_ context.Context, tokenID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.used, tokenID)
	return nil
}

type fakeMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (f *fakeMetrics) Observe(operation, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[operation+"/"+outcome]++
}

func (f *fakeMetrics) count(operation, outcome string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[operation+"/"+outcome]
}
