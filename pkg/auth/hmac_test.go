package auth

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hmacTestStrategy(now time.Time) *HMACStrategy {
	services := ParseHMACServices([]string{"provisioner:topsecret:Provisioning Service"}, discardLogger())
	s := NewHMACStrategy(services, DefaultHMACWindow, discardLogger())
	s.now = func() time.Time { return now }
	return s
}

func signedRequest(t *testing.T, method, target, secret string, ts int64, body []byte) *http.Request {
	t.Helper()

	bodyHash := ""
	if body != nil {
		sum := sha256.Sum256(body)
		bodyHash = hex.EncodeToString(sum[:])
	}

	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}

	signing := SigningString(method, r.URL.RequestURI(), ts, bodyHash)
	sig := SignRequest(secret, signing)
	r.Header.Set("Authorization", fmt.Sprintf("%s provisioner:%d:%s", HMACScheme, ts, sig))
	return r
}

func TestSignRequest_Deterministic(t *testing.T) {
	signing := SigningString("GET", "/api/v1/ldap/users", 1700000000000, "")

	first := SignRequest("topsecret", signing)
	second := SignRequest("topsecret", signing)
	assert.Equal(t, first, second, "same input must sign identically")

	variants := []string{
		SigningString("POST", "/api/v1/ldap/users", 1700000000000, ""),
		SigningString("GET", "/api/v1/ldap/groups", 1700000000000, ""),
		SigningString("GET", "/api/v1/ldap/users", 1700000000001, ""),
		SigningString("GET", "/api/v1/ldap/users", 1700000000000, "deadbeef"),
	}
	for _, v := range variants {
		assert.NotEqual(t, first, SignRequest("topsecret", v), "changing any signing input must change the signature")
	}
}

func TestHMACStrategy_AcceptsValidSignature(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	s := hmacTestStrategy(now)

	r := signedRequest(t, "GET", "/api/v1/ldap/users?scope=sub", "topsecret", now.UnixMilli(), nil)
	principal, err := s.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "Provisioning Service", principal)
}

func TestHMACStrategy_SignsBody(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	s := hmacTestStrategy(now)

	body := []byte(`{"dn":"uid=new,ou=people,dc=example,dc=org"}`)
	r := signedRequest(t, "POST", "/api/v1/ldap/entries", "topsecret", now.UnixMilli(), body)

	principal, err := s.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "Provisioning Service", principal)

	// The body must still be readable downstream.
	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(r.Body)
	require.NoError(t, err)
	assert.Equal(t, body, buf.Bytes())
}

func TestHMACStrategy_RejectsStaleTimestamp(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	s := hmacTestStrategy(now)

	stale := now.Add(-DefaultHMACWindow - time.Millisecond).UnixMilli()
	r := signedRequest(t, "GET", "/api/v1/ldap/users", "topsecret", stale, nil)

	_, err := s.Authenticate(r)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestHMACStrategy_RejectsFutureTimestamp(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	s := hmacTestStrategy(now)

	future := now.Add(DefaultHMACWindow + time.Second).UnixMilli()
	r := signedRequest(t, "GET", "/api/v1/ldap/users", "topsecret", future, nil)

	_, err := s.Authenticate(r)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestHMACStrategy_IndistinguishableFailures(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	s := hmacTestStrategy(now)

	wrongSecret := signedRequest(t, "GET", "/api/v1/ldap/users", "wrong", now.UnixMilli(), nil)

	unknownService := signedRequest(t, "GET", "/api/v1/ldap/users", "topsecret", now.UnixMilli(), nil)
	unknownService.Header.Set("Authorization", fmt.Sprintf("%s ghost:%d:abcd", HMACScheme, now.UnixMilli()))

	malformed := httptest.NewRequest("GET", "/api/v1/ldap/users", nil)
	malformed.Header.Set("Authorization", HMACScheme+" not-enough-fields")

	for _, r := range []*http.Request{wrongSecret, unknownService, malformed} {
		_, err := s.Authenticate(r)
		assert.ErrorIs(t, err, ErrUnauthorized)
	}
}

func TestParseHMACServices(t *testing.T) {
	services := ParseHMACServices([]string{
		"svc1:sec1:Service One",
		"svc2:sec2:",      // empty display name falls back to the id
		"broken",          // skipped
		":nosvc:Name",     // skipped
	}, discardLogger())

	require.Len(t, services, 2)
	assert.Equal(t, "Service One", services[0].DisplayName)
	assert.Equal(t, "svc2", services[1].DisplayName)
}
