package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/securemsg/auth-service/internal/application"
)

// Handler is the HTTP adapter entrypoint for auth use-cases.
type Handler struct {
	service  *application.Service
	validate *validator.Validate
	metrics  http.Handler
}

// NewHandler binds the handler to the application service. metrics may be nil.
func NewHandler(service *application.Service, metrics http.Handler) *Handler {
	return &Handler{
		service:  service,
		validate: newValidator(),
		metrics:  metrics,
	}
}

// NewRouter registers routes and the middleware stack.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	if handler.metrics != nil {
		r.Method(http.MethodGet, "/metrics", handler.metrics)
	}

	for _, path := range honeypotPaths {
		r.HandleFunc(path, handler.honeypot)
	}

	r.Route("/auth/v1", func(r chi.Router) {
		r.Post("/register", handler.register)
		r.Post("/login", handler.login)
		r.Post("/refresh", handler.refresh)
		r.Post("/logout", handler.logout)
		r.Post("/logout-all", handler.logoutAll)
		r.Post("/password/reset-request", handler.passwordResetRequest)
		r.Post("/password/reset", handler.passwordReset)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/totp/initialize", handler.totpInitialize)
			r.Post("/totp/enable", handler.totpEnable)
			r.Post("/totp/disable", handler.totpDisable)
			r.Get("/sessions", handler.listSessions)
		})
	})

	return r
}
