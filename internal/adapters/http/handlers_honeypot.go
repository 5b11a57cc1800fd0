package http

import (
	"net/http"
)

// honeypotPaths are paths no real client requests; hits are scanner traffic.
var honeypotPaths = []string{"/admin", "/wp-admin", "/.env"}

func (h *Handler) honeypot(w http.ResponseWriter, r *http.Request) {
	h.service.RecordHoneypotHit(r.Context(), readIP(r), r.UserAgent(), r.URL.Path)
	writeProblem(r.Context(), w, problem{status: http.StatusForbidden, code: "FORBIDDEN", msg: "Access denied"})
}
