package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/securemsg/auth-service/internal/domain"
)

// problem is a failed auth request as the client sees it.
type problem struct {
	status int
	code   string
	msg    string
	// rule names the credential policy rule that rejected the input.
	rule string
	// requires2FA tells the client to retry the login with a TOTP code.
	requires2FA bool
}

type errorBody struct {
	Status      string `json:"status"`
	Code        string `json:"code"`
	Message     string `json:"message"`
	Rule        string `json:"rule,omitempty"`
	Requires2FA bool   `json:"requires_2fa,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

var internalProblem = problem{status: http.StatusInternalServerError, code: "INTERNAL_ERROR", msg: "internal server error"}

// writeJSON marks every response no-store; bodies carry tokens, key blobs or TOTP secrets.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, map[string]any{
		"status": "success",
		"data":   data,
	})
}

func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]any{
		"status":  "success",
		"message": message,
	})
}

func writeProblem(ctx context.Context, w http.ResponseWriter, p problem) {
	if p.requires2FA {
		w.Header().Set("X-Requires-2FA", "true")
	}
	writeJSON(w, p.status, errorBody{
		Status:      "error",
		Code:        p.code,
		Message:     p.msg,
		Rule:        p.rule,
		Requires2FA: p.requires2FA,
		RequestID:   requestIDFromContext(ctx),
	})
}

// problemFor maps auth outcomes to responses. Credential failures share one
// message whether the email or the password was wrong.
func problemFor(err error) problem {
	var policyErr *domain.PolicyError
	switch {
	case errors.As(err, &policyErr):
		return problem{status: http.StatusBadRequest, code: "POLICY_VIOLATION", msg: policyErr.Message, rule: policyErr.Rule}
	case errors.Is(err, domain.ErrInvalidInput):
		return problem{status: http.StatusBadRequest, code: "VALIDATION_ERROR", msg: err.Error()}
	case errors.Is(err, domain.ErrUnauthorized):
		return problem{status: http.StatusUnauthorized, code: "UNAUTHORIZED", msg: "invalid or missing credentials"}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return problem{status: http.StatusUnauthorized, code: "INVALID_CREDENTIALS", msg: "Incorrect email or password"}
	case errors.Is(err, domain.ErrSecondFactorRequired):
		return problem{status: http.StatusForbidden, code: "TOTP_REQUIRED", msg: "2FA code required", requires2FA: true}
	case errors.Is(err, domain.ErrInvalidSecondFactor):
		return problem{status: http.StatusUnauthorized, code: "INVALID_TOTP_CODE", msg: "Invalid 2FA code"}
	case errors.Is(err, domain.ErrSecondFactorSetupIncomplete):
		return problem{status: http.StatusConflict, code: "TOTP_SETUP_INCOMPLETE", msg: "2FA setup is not complete"}
	case errors.Is(err, domain.ErrTOTPAlreadyEnabled):
		return problem{status: http.StatusConflict, code: "TOTP_ALREADY_ENABLED", msg: "2FA is already enabled"}
	case errors.Is(err, domain.ErrTOTPNotInitialized):
		return problem{status: http.StatusBadRequest, code: "TOTP_NOT_INITIALIZED", msg: "2FA setup has not been started"}
	case errors.Is(err, domain.ErrTOTPNotEnabled):
		return problem{status: http.StatusBadRequest, code: "TOTP_NOT_ENABLED", msg: "2FA is not enabled"}
	case errors.Is(err, domain.ErrAccountLocked):
		return problem{status: http.StatusTooManyRequests, code: "ACCOUNT_LOCKED", msg: "account temporarily locked"}
	case errors.Is(err, domain.ErrTokenInvalid):
		return problem{status: http.StatusUnauthorized, code: "TOKEN_INVALID", msg: "invalid or expired token"}
	case errors.Is(err, domain.ErrSessionRevoked):
		return problem{status: http.StatusUnauthorized, code: "SESSION_REVOKED", msg: "session revoked"}
	case errors.Is(err, domain.ErrAccountConflict):
		return problem{status: http.StatusConflict, code: "CONFLICT", msg: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return problem{status: http.StatusNotFound, code: "NOT_FOUND", msg: "resource not found"}
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return problem{status: http.StatusServiceUnavailable, code: "UPSTREAM_UNAVAILABLE", msg: "service temporarily unavailable"}
	default:
		return internalProblem
	}
}
