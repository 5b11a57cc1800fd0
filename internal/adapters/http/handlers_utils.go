package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
)

const maxBodyBytes = 1 << 20

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

func readIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func writeMappedError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	p := problemFor(err)
	logHTTPOperationError(ctx, operation, p, err)
	writeProblem(ctx, w, p)
}

func writeValidationError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	p := problem{status: http.StatusBadRequest, code: "VALIDATION_ERROR", msg: err.Error()}
	logHTTPOperationError(ctx, operation, p, err)
	writeProblem(ctx, w, p)
}

func writeMissingBearerError(ctx context.Context, w http.ResponseWriter, operation string) {
	p := problem{status: http.StatusUnauthorized, code: "UNAUTHORIZED", msg: "missing bearer token"}
	logHTTPOperationError(ctx, operation, p, nil)
	writeProblem(ctx, w, p)
}
