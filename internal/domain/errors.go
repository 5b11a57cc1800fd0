package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidCredentials hides whether email or password failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSecondFactorRequired is returned when the account has TOTP enabled and no code was sent.
	ErrSecondFactorRequired = errors.New("second factor required")
	// ErrInvalidSecondFactor covers wrong, stale and malformed TOTP codes alike.
	ErrInvalidSecondFactor = errors.New("invalid second factor")
	// ErrSecondFactorSetupIncomplete means a TOTP secret was issued but never confirmed.
	ErrSecondFactorSetupIncomplete = errors.New("second factor setup incomplete")
	// ErrTokenInvalid is deliberately undifferentiated: bad signature, expiry and wrong type all map here.
	ErrTokenInvalid        = errors.New("token invalid")
	ErrSessionRevoked      = errors.New("session revoked")
	ErrAccountConflict     = errors.New("account already exists")
	ErrPolicyViolation     = errors.New("policy violation")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrAccountLocked       = errors.New("account locked")
	ErrTOTPAlreadyEnabled  = errors.New("totp already enabled")
	ErrTOTPNotInitialized  = errors.New("totp not initialized")
	ErrTOTPNotEnabled      = errors.New("totp not enabled")
)

// PolicyError names the credential rule that failed. It matches ErrPolicyViolation under errors.Is.
type PolicyError struct {
	Rule    string
	Message string
}

func (e *PolicyError) Error() string {
	return e.Message
}

func (e *PolicyError) Unwrap() error {
	return ErrPolicyViolation
}

func policyError(rule, message string) error {
	return &PolicyError{Rule: rule, Message: message}
}
