package domain

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CredentialPolicy holds the composition and length rules applied at registration and reset.
type CredentialPolicy struct {
	RequireUppercase  bool
	RequireLowercase  bool
	RequireDigit      bool
	RequireSpecial    bool
	MinLength         int
	MaxLength         int
	UsernameMinLength int
	UsernameMaxLength int
	EmailMaxLength    int
}

// DefaultCredentialPolicy mirrors the production messenger rules.
func DefaultCredentialPolicy() CredentialPolicy {
	return CredentialPolicy{
		RequireUppercase:  true,
		RequireLowercase:  true,
		RequireDigit:      true,
		RequireSpecial:    true,
		MinLength:         8,
		MaxLength:         64,
		UsernameMinLength: 3,
		UsernameMaxLength: 50,
		EmailMaxLength:    254,
	}
}

// ValidatePassword returns a *PolicyError naming the first rule the password breaks.
func (p CredentialPolicy) ValidatePassword(password string) error {
	length := utf8.RuneCountInString(password)
	if p.MinLength > 0 && length < p.MinLength {
		return policyError("min_length", fmt.Sprintf("password must be at least %d characters", p.MinLength))
	}
	if p.MaxLength > 0 && length > p.MaxLength {
		return policyError("max_length", fmt.Sprintf("password must be at most %d characters", p.MaxLength))
	}

	var (
		hasUpper   bool
		hasLower   bool
		hasDigit   bool
		hasSpecial bool
	)
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	switch {
	case p.RequireUppercase && !hasUpper:
		return policyError("require_uppercase", "password must contain an uppercase letter")
	case p.RequireLowercase && !hasLower:
		return policyError("require_lowercase", "password must contain a lowercase letter")
	case p.RequireDigit && !hasDigit:
		return policyError("require_digit", "password must contain a digit")
	case p.RequireSpecial && !hasSpecial:
		return policyError("require_special", "password must contain a special character")
	}
	return nil
}

// ValidateUsername checks length bounds and rejects whitespace inside the handle.
func (p CredentialPolicy) ValidateUsername(username string) error {
	length := utf8.RuneCountInString(username)
	if p.UsernameMinLength > 0 && length < p.UsernameMinLength {
		return policyError("username_min_length", fmt.Sprintf("username must be at least %d characters", p.UsernameMinLength))
	}
	if p.UsernameMaxLength > 0 && length > p.UsernameMaxLength {
		return policyError("username_max_length", fmt.Sprintf("username must be at most %d characters", p.UsernameMaxLength))
	}
	if strings.IndexFunc(username, unicode.IsSpace) >= 0 {
		return policyError("username_charset", "username must not contain whitespace")
	}
	return nil
}

// ValidateEmailLength only checks size; format is checked by the caller while normalizing.
func (p CredentialPolicy) ValidateEmailLength(email string) error {
	if p.EmailMaxLength > 0 && len(email) > p.EmailMaxLength {
		return policyError("email_max_length", fmt.Sprintf("email must be at most %d characters", p.EmailMaxLength))
	}
	return nil
}
