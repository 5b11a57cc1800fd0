package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCountsOutcomes(t *testing.T) {
	t.Parallel()
	r := NewRecorder("securemsg")
	r.Observe("login", "success")
	r.Observe("login", "success")
	r.Observe("login", "invalid_credentials")

	if got := testutil.ToFloat64(r.operations.WithLabelValues("login", "success")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(r.operations.WithLabelValues("login", "invalid_credentials")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
}

func TestRecorderHandlerExposesCounters(t *testing.T) {
	t.Parallel()
	r := NewRecorder("securemsg")
	r.Observe("refresh", "session_revoked")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	want := `securemsg_auth_operations_total{operation="refresh",outcome="session_revoked"} 1`
	if !strings.Contains(string(body), want) {
		t.Fatalf("expected %q in exposition", want)
	}
}
