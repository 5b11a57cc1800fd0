package security

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/securemsg/auth-service/internal/domain"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func testArgon2Params() Argon2Params {
	return Argon2Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func TestArgon2HashAndVerify(t *testing.T) {
	t.Parallel()

	h := NewArgon2Hasher(testArgon2Params(), 2)
	ctx := context.Background()

	first, err := h.Hash(ctx, "Str0ng!Pass")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	second, err := h.Hash(ctx, "Str0ng!Pass")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct salts to produce distinct hashes")
	}
	if !strings.HasPrefix(first, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected encoding: %s", first)
	}

	for _, encoded := range []string{first, second} {
		ok, err := h.Verify(ctx, "Str0ng!Pass", encoded)
		if err != nil || !ok {
			t.Fatalf("expected verify success, got ok=%v err=%v", ok, err)
		}
	}
	if ok, _ := h.Verify(ctx, "wrong", first); ok {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestArgon2VerifyRejectsMalformedHashes(t *testing.T) {
	t.Parallel()

	h := NewArgon2Hasher(testArgon2Params(), 1)
	cases := []string{
		"",
		"not-a-hash",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0$a2V5",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0$a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHRzYWx0$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$a2V5",
		// cost far above configured limits
		"$argon2id$v=19$m=1048576,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5",
	}
	for _, encoded := range cases {
		ok, err := h.Verify(context.Background(), "whatever", encoded)
		if err != nil || ok {
			t.Fatalf("expected (false, nil) for %q, got ok=%v err=%v", encoded, ok, err)
		}
	}
}

func TestArgon2HashHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	h := NewArgon2Hasher(testArgon2Params(), 1)
	if !h.slots.TryAcquire(1) {
		t.Fatalf("expected free slot")
	}
	defer h.slots.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.Hash(ctx, "Str0ng!Pass"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestArgon2ConcurrentVerify(t *testing.T) {
	t.Parallel()

	h := NewArgon2Hasher(testArgon2Params(), 2)
	encoded, err := h.Hash(context.Background(), "Str0ng!Pass")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := h.Verify(context.Background(), "Str0ng!Pass", encoded)
			if err != nil || !ok {
				errs <- "verify failed under concurrency"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Fatal(msg)
	}
}

func TestSecretBoxRoundTrip(t *testing.T) {
	t.Parallel()

	box, err := NewSecretBox(bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("new secretbox failed: %v", err)
	}
	sealed, err := box.Seal([]byte("JBSWY3DPEHPK3PXP"))
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	opened, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if string(opened) != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("unexpected plaintext %q", opened)
	}

	again, _ := box.Seal([]byte("JBSWY3DPEHPK3PXP"))
	if bytes.Equal(again, sealed) {
		t.Fatalf("expected fresh nonce per seal")
	}
}

func TestSecretBoxRejectsTampering(t *testing.T) {
	t.Parallel()

	box, _ := NewSecretBox(bytes.Repeat([]byte{7}, 32))
	sealed, _ := box.Seal([]byte("secret"))

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0x01
	if out, err := box.Open(tampered); !errors.Is(err, ErrSecretBoxOpen) || out != nil {
		t.Fatalf("expected tamper detection, got out=%q err=%v", out, err)
	}
	if _, err := box.Open(sealed[:10]); !errors.Is(err, ErrSecretBoxOpen) {
		t.Fatalf("expected short envelope rejected, got %v", err)
	}

	other, _ := NewSecretBox(bytes.Repeat([]byte{8}, 32))
	if _, err := other.Open(sealed); !errors.Is(err, ErrSecretBoxOpen) {
		t.Fatalf("expected foreign key rejected, got %v", err)
	}
}

func TestSecretBoxKeyValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewSecretBox([]byte("short")); err == nil {
		t.Fatalf("expected short key rejected")
	}
	if _, err := NewSecretBoxFromBase64(""); err == nil {
		t.Fatalf("expected empty key rejected")
	}
	if _, err := NewSecretBoxFromBase64("AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8="); err != nil {
		t.Fatalf("expected 32-byte base64 key accepted, got %v", err)
	}
}

func TestTOTPVerifyWindow(t *testing.T) {
	t.Parallel()

	engine := NewTOTPEngine("SecureMessenger")
	secret, err := engine.GenerateSecret()
	if err != nil {
		t.Fatalf("generate secret failed: %v", err)
	}
	if len(secret) != 32 || strings.Contains(secret, "=") {
		t.Fatalf("expected 32-char unpadded base32 secret, got %q", secret)
	}

	now := time.Date(2026, 1, 1, 12, 0, 15, 0, time.UTC)
	code, err := engine.GenerateCode(secret, now)
	if err != nil {
		t.Fatalf("generate code failed: %v", err)
	}

	if !engine.Verify(secret, code, now) {
		t.Fatalf("expected current code accepted")
	}
	if !engine.Verify(secret, code, now.Add(30*time.Second)) {
		t.Fatalf("expected code accepted one step later")
	}
	if !engine.Verify(secret, code, now.Add(-30*time.Second)) {
		t.Fatalf("expected code accepted one step earlier")
	}
	if engine.Verify(secret, code, now.Add(90*time.Second)) {
		t.Fatalf("expected code rejected three steps later")
	}
}

func TestTOTPVerifyRejectsMalformed(t *testing.T) {
	t.Parallel()

	engine := NewTOTPEngine("")
	secret, _ := engine.GenerateSecret()
	now := time.Now()
	for _, code := range []string{"", "12345", "1234567", "12a456", " 123456"} {
		if engine.Verify(secret, code, now) {
			t.Fatalf("expected malformed code %q rejected", code)
		}
	}
	if engine.Verify("not base32 !!", "123456", now) {
		t.Fatalf("expected malformed secret rejected")
	}
}

func TestProvisioningURIAndQR(t *testing.T) {
	t.Parallel()

	engine := NewTOTPEngine("SecureMessenger")
	secret, _ := engine.GenerateSecret()
	uri, err := engine.ProvisioningURI("alice", secret)
	if err != nil {
		t.Fatalf("provisioning uri failed: %v", err)
	}
	if !strings.HasPrefix(uri, "otpauth://totp/SecureMessenger:alice?") {
		t.Fatalf("unexpected uri %s", uri)
	}
	if !strings.Contains(uri, "secret="+secret) || !strings.Contains(uri, "issuer=SecureMessenger") {
		t.Fatalf("uri missing secret or issuer: %s", uri)
	}

	png, err := NewQRRenderer().RenderQR(uri)
	if err != nil {
		t.Fatalf("render qr failed: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("expected png bytes")
	}
}

func TestJWTCodecRoundTrip(t *testing.T) {
	t.Parallel()

	codec, err := NewJWTCodec(testJWTSecret)
	if err != nil {
		t.Fatalf("new codec failed: %v", err)
	}
	userID := uuid.New()
	raw, err := codec.Mint(domain.TokenClaims{Type: domain.TokenTypeRefresh, UserID: userID, SessionID: "sess-1"}, time.Hour)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	claims, err := codec.Parse(raw, domain.TokenTypeRefresh)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.UserID != userID || claims.SessionID != "sess-1" || claims.TokenID == "" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestJWTCodecRejections(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	codec, _ := NewJWTCodec(testJWTSecret)
	codec.WithClock(func() time.Time { return now })
	userID := uuid.New()

	access, _ := codec.Mint(domain.TokenClaims{Type: domain.TokenTypeAccess, UserID: userID, SessionID: "s"}, 15*time.Minute)
	if _, err := codec.Parse(access, domain.TokenTypeRefresh); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected wrong type rejected, got %v", err)
	}

	other, _ := NewJWTCodec("ffffffffffffffffffffffffffffffff")
	other.WithClock(func() time.Time { return now })
	if _, err := other.Parse(access, domain.TokenTypeAccess); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected bad signature rejected, got %v", err)
	}

	later, _ := NewJWTCodec(testJWTSecret)
	later.WithClock(func() time.Time { return now.Add(time.Hour) })
	if _, err := later.Parse(access, domain.TokenTypeAccess); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected expired token rejected, got %v", err)
	}

	justAfter, _ := NewJWTCodec(testJWTSecret)
	justAfter.WithClock(func() time.Time { return now.Add(15*time.Minute + time.Second) })
	if _, err := justAfter.Parse(access, domain.TokenTypeAccess); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected token one second past exp rejected, got %v", err)
	}

	if _, err := codec.Parse("not.a.jwt", domain.TokenTypeAccess); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected malformed token rejected, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, tokenJWTClaims{
		Type:      "access",
		SessionID: "s",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := codec.Parse(unsigned, domain.TokenTypeAccess); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected alg=none rejected, got %v", err)
	}
}

func TestJWTCodecRequiresStrongSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewJWTCodec("short"); err == nil {
		t.Fatalf("expected short secret rejected")
	}
}
