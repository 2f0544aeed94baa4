package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/dirgate/dirgate/pkg/contextkeys"
)

func TestRequestID_Generated(t *testing.T) {
	var got string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = contextkeys.RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got == "" {
		t.Fatal("Expected request ID on context")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("Expected UUID request ID, got %q", got)
	}
	if header := rec.Header().Get(RequestIDHeader); header != got {
		t.Errorf("Response header %q does not match context ID %q", header, got)
	}
}

func TestRequestID_AdoptsInbound(t *testing.T) {
	var got string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = contextkeys.RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-id-7")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "upstream-id-7" {
		t.Errorf("Expected inbound ID adopted, got %q", got)
	}
}
