package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAuthzDecisions(t *testing.T) {
	counter := AuthzDecisions.WithLabelValues("metricstest-op", "deny")
	before := testutil.ToFloat64(counter)

	AuthzDecisions.WithLabelValues("metricstest-op", "deny").Inc()

	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("Expected counter to increment by 1, got delta %v", got-before)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	handler := HTTPMetricsMiddleware(func(r *http.Request) string {
		return "/api/v1/ldap/{dn}"
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	counter := HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/ldap/{dn}", "418")
	before := testutil.ToFloat64(counter)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ldap/uid=alice,dc=example,dc=org", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("Expected status 418, got %d", rec.Code)
	}
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("Expected request counter to increment, got delta %v", got-before)
	}
}

func TestHTTPMetricsMiddleware_RawPathFallback(t *testing.T) {
	handler := HTTPMetricsMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// default 200 via implicit WriteHeader
		w.Write([]byte("ok"))
	}))

	counter := HTTPRequestsTotal.WithLabelValues("GET", "/metricstest-raw", "200")
	before := testutil.ToFloat64(counter)

	req := httptest.NewRequest(http.MethodGet, "/metricstest-raw", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("Expected request counter to increment, got delta %v", got-before)
	}
}

func TestMetricsHandler(t *testing.T) {
	AuthzDecisions.WithLabelValues("metricstest-handler", "allow").Inc()

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 from /metrics, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "dirgate_authz_decisions_total") {
		t.Error("Expected exposition to contain dirgate_authz_decisions_total")
	}
}
