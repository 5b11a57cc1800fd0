package http

import (
	"net/http"

	"github.com/securemsg/auth-service/internal/application"
)

func (h *Handler) totpInitialize(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "totp_initialize")
		return
	}
	res, err := h.service.InitializeTOTP(r.Context(), identity.UserID)
	if err != nil {
		writeMappedError(r.Context(), w, "totp_initialize", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) totpEnable(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "totp_enable")
		return
	}
	var req application.TOTPCodeRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeValidationError(r.Context(), w, "totp_enable", err)
		return
	}
	if err := h.service.EnableTOTP(r.Context(), identity.UserID, req.Code); err != nil {
		writeMappedError(r.Context(), w, "totp_enable", err)
		return
	}
	writeMessage(w, http.StatusOK, "2FA enabled successfully")
}

func (h *Handler) totpDisable(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "totp_disable")
		return
	}
	var req application.TOTPCodeRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeValidationError(r.Context(), w, "totp_disable", err)
		return
	}
	if err := h.service.DisableTOTP(r.Context(), identity.UserID, req.Code); err != nil {
		writeMappedError(r.Context(), w, "totp_disable", err)
		return
	}
	writeMessage(w, http.StatusOK, "2FA disabled successfully")
}
