package http

import (
	"net/http"

	"github.com/securemsg/auth-service/internal/application"
)

const resetRequestedMessage = "If the email exists, a reset link has been sent"

func (h *Handler) passwordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req application.PasswordResetRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeValidationError(r.Context(), w, "password_reset_request", err)
		return
	}
	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeMappedError(r.Context(), w, "password_reset_request", err)
		return
	}
	writeMessage(w, http.StatusAccepted, resetRequestedMessage)
}

func (h *Handler) passwordReset(w http.ResponseWriter, r *http.Request) {
	var req application.ConfirmPasswordResetRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeValidationError(r.Context(), w, "password_reset", err)
		return
	}
	if err := h.service.ConfirmPasswordReset(r.Context(), req); err != nil {
		writeMappedError(r.Context(), w, "password_reset", err)
		return
	}
	writeMessage(w, http.StatusOK, "Password has been reset")
}
