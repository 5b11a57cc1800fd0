package http

import (
	"context"
	"net/http"

	"github.com/securemsg/auth-service/internal/application"
)

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ready(r.Context()); err != nil {
		writeMappedError(r.Context(), w, "readyz", err)
		return
	}
	writeMessage(w, http.StatusOK, "ready")
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeMissingBearerError(r.Context(), w, "authenticate")
			return
		}

		identity, err := h.service.ValidateAccessToken(r.Context(), raw)
		if err != nil {
			writeMappedError(r.Context(), w, "authenticate", err)
			return
		}

		if tr := traceFromContext(r.Context()); tr != nil {
			tr.userID = identity.UserID.String()
			tr.sessionID = identity.SessionID
		}
		ctx := context.WithValue(r.Context(), ctxKeyIdentity, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFromContext(ctx context.Context) (application.AccessIdentity, bool) {
	identity, ok := ctx.Value(ctxKeyIdentity).(application.AccessIdentity)
	return identity, ok
}
