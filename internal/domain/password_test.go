package domain_test

import (
	"errors"
	"testing"

	"github.com/securemsg/auth-service/internal/domain"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	policy := domain.DefaultCredentialPolicy()
	cases := []struct {
		name     string
		password string
		wantRule string
	}{
		{name: "valid", password: "Str0ng!Pass"},
		{name: "too short", password: "short1!", wantRule: "min_length"},
		{name: "no uppercase", password: "alllowercase1!", wantRule: "require_uppercase"},
		{name: "no lowercase", password: "ALLUPPER1!", wantRule: "require_lowercase"},
		{name: "no digit", password: "NoDigitsHere!", wantRule: "require_digit"},
		{name: "no special", password: "NoSpecial123", wantRule: "require_special"},
		{name: "too long", password: "Aa1!" + string(make([]byte, 70)), wantRule: "max_length"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := policy.ValidatePassword(tc.password)
			if tc.wantRule == "" {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if !errors.Is(err, domain.ErrPolicyViolation) {
				t.Fatalf("expected policy violation, got %v", err)
			}
			var policyErr *domain.PolicyError
			if !errors.As(err, &policyErr) || policyErr.Rule != tc.wantRule {
				t.Fatalf("expected rule %q, got %v", tc.wantRule, err)
			}
		})
	}
}

func TestValidatePasswordRelaxedPolicy(t *testing.T) {
	t.Parallel()

	policy := domain.CredentialPolicy{MinLength: 4}
	if err := policy.ValidatePassword("abcd"); err != nil {
		t.Fatalf("expected relaxed policy to accept, got %v", err)
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()

	policy := domain.DefaultCredentialPolicy()
	if err := policy.ValidateUsername("al"); !errors.Is(err, domain.ErrPolicyViolation) {
		t.Fatalf("expected too-short username rejected, got %v", err)
	}
	if err := policy.ValidateUsername("has space"); !errors.Is(err, domain.ErrPolicyViolation) {
		t.Fatalf("expected whitespace username rejected, got %v", err)
	}
	if err := policy.ValidateUsername("alice"); err != nil {
		t.Fatalf("expected valid username, got %v", err)
	}
}

func TestTwoFactorState(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		account domain.UserAccount
		want    domain.TwoFactorState
	}{
		{name: "no secret", account: domain.UserAccount{}, want: domain.TwoFactorNoSecret},
		{name: "secret issued", account: domain.UserAccount{TOTPSecretEncrypted: []byte{1}}, want: domain.TwoFactorSecretIssued},
		{name: "enabled", account: domain.UserAccount{TOTPSecretEncrypted: []byte{1}, TwoFactorEnabled: true}, want: domain.TwoFactorEnabled},
		{name: "flag without secret", account: domain.UserAccount{TwoFactorEnabled: true}, want: domain.TwoFactorSecretIssued},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.account.TwoFactorState(); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
