package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const serviceName = "secure-messenger-auth"

func httpLogger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "http",
		"layer", "adapter",
	)
}

// requestTrace collects the authenticated caller so the access log can name it.
// authMiddleware fills it in; it stays empty on public routes.
type requestTrace struct {
	userID    string
	sessionID string
}

func traceFromContext(ctx context.Context) *requestTrace {
	tr, _ := ctx.Value(ctxKeyTrace).(*requestTrace)
	return tr
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(payload []byte) (int, error) {
	if r.statusCode == 0 {
		r.statusCode = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(payload)
	r.bytes += n
	return n, err
}

// loggingMiddleware writes one access line per request. Headers and bodies are
// never logged: they hold bearer tokens, passwords and key material.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		trace := &requestTrace{}
		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r.WithContext(context.WithValue(r.Context(), ctxKeyTrace, trace)))

		statusCode := recorder.statusCode
		if statusCode == 0 {
			statusCode = http.StatusOK
		}
		fields := []any{
			"operation", "http_request",
			"outcome", outcomeForStatus(statusCode),
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", statusCode,
			"bytes", recorder.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestIDFromContext(r.Context()),
		}
		if trace.userID != "" {
			fields = append(fields, "user_id", trace.userID, "session_id", trace.sessionID)
		}
		httpLogger().Log(r.Context(), levelForStatus(statusCode), "http request completed", fields...)
	})
}

func logHTTPOperationError(ctx context.Context, operation string, p problem, err error) {
	fields := []any{
		"operation", operation,
		"outcome", outcomeForStatus(p.status),
		"status_code", p.status,
		"error_code", p.code,
		"request_id", requestIDFromContext(ctx),
	}
	if p.rule != "" {
		fields = append(fields, "policy_rule", p.rule)
	}
	if err != nil {
		fields = append(fields, "error", err.Error())
	}
	httpLogger().Log(ctx, levelForStatus(p.status), "http operation failed", fields...)
}

// outcomeForStatus labels 401 and 403 as denied and 429 as locked.
func outcomeForStatus(status int) string {
	switch {
	case status >= 500:
		return "failure"
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return "denied"
	case status == http.StatusTooManyRequests:
		return "locked"
	case status >= 400:
		return "rejected"
	default:
		return "success"
	}
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
