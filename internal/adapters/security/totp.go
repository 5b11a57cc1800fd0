package security

import (
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpSecretSize = 20
	totpPeriod     = 30
	// one step either side tolerates client clock drift
	totpSkew = 1
)

var totpSecretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// TOTPEngine issues and checks 6-digit SHA1 codes with a 30s step.
type TOTPEngine struct {
	issuer string
}

func NewTOTPEngine(issuer string) *TOTPEngine {
	if strings.TrimSpace(issuer) == "" {
		issuer = "SecureMessenger"
	}
	return &TOTPEngine{issuer: issuer}
}

// GenerateSecret returns 160 random bits as unpadded base32.
func (e *TOTPEngine) GenerateSecret() (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: "enrollment",
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	return key.Secret(), nil
}

// ProvisioningURI builds the otpauth:// URI authenticator apps scan.
func (e *TOTPEngine) ProvisioningURI(account, secret string) (string, error) {
	raw, err := totpSecretEncoding.DecodeString(strings.ToUpper(secret))
	if err != nil {
		return "", fmt.Errorf("decode totp secret: %w", err)
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: account,
		Period:      totpPeriod,
		Secret:      raw,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("build provisioning uri: %w", err)
	}
	return key.URL(), nil
}

// Verify accepts codes for the step containing at and one step either side.
// Anything that is not exactly six ASCII digits is rejected before hashing.
func (e *TOTPEngine) Verify(secret, code string, at time.Time) bool {
	if !isSixDigits(code) {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at.UTC(), e.validateOpts())
	if err != nil {
		return false
	}
	return ok
}

// GenerateCode returns the code for at. Used by tests and operator tooling.
func (e *TOTPEngine) GenerateCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at.UTC(), e.validateOpts())
}

func (e *TOTPEngine) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

func isSixDigits(code string) bool {
	if len(code) != 6 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
