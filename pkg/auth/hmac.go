package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// HMACScheme is the Authorization scheme for signed requests.
	HMACScheme = "HMAC-SHA256"
	// DefaultHMACWindow bounds the accepted timestamp skew (replay
	// protection).
	DefaultHMACWindow = 120 * time.Second
)

// HMACService describes one service allowed to sign requests.
type HMACService struct {
	ID          string
	Secret      string
	DisplayName string
}

// ParseHMACServices builds service descriptors from config entries of
// the form "id:secret:name". Malformed entries are skipped with a
// warning.
func ParseHMACServices(entries []string, log *logrus.Logger) []HMACService {
	if log == nil {
		log = logrus.New()
	}

	var services []HMACService
	for i, entry := range entries {
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			log.Warnf("hmac entry %d is not id:secret:name, skipping", i+1)
			continue
		}
		name := parts[2]
		if name == "" {
			name = parts[0]
		}
		services = append(services, HMACService{
			ID:          parts[0],
			Secret:      parts[1],
			DisplayName: name,
		})
	}

	return services
}

// SigningString builds the canonical string a client signs:
// METHOD|PATH_WITH_QUERY|timestampMs|bodyHashHex. bodyHashHex is the
// hex SHA-256 of the raw body for body-carrying methods and the empty
// string for GET, HEAD and DELETE.
func SigningString(method, pathWithQuery string, timestampMs int64, bodyHashHex string) string {
	return fmt.Sprintf("%s|%s|%d|%s", method, pathWithQuery, timestampMs, bodyHashHex)
}

// SignRequest computes the expected hex signature for a canonical
// signing string. Exported so test clients and outbound callers can
// produce valid headers.
func SignRequest(secret, signingString string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signingString))
	return hex.EncodeToString(mac.Sum(nil))
}

// bodylessMethods carry no payload in the signing string.
var bodylessMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodHead:   true,
	http.MethodDelete: true,
}

// HMACStrategy authenticates service-to-service requests by verifying a
// per-request HMAC-SHA256 signature with a bounded timestamp window.
type HMACStrategy struct {
	services map[string]HMACService
	window   time.Duration
	now      func() time.Time
	log      *logrus.Logger
}

// NewHMACStrategy creates an HMAC strategy. A non-positive window falls
// back to the default.
func NewHMACStrategy(services []HMACService, window time.Duration, log *logrus.Logger) *HMACStrategy {
	if window <= 0 {
		window = DefaultHMACWindow
	}
	if log == nil {
		log = logrus.New()
	}

	byID := make(map[string]HMACService, len(services))
	for _, svc := range services {
		byID[svc.ID] = svc
	}

	return &HMACStrategy{
		services: byID,
		window:   window,
		now:      time.Now,
		log:      log,
	}
}

// Name implements Strategy.
func (s *HMACStrategy) Name() string { return "hmac" }

// Authenticate verifies the signature header. Unknown service, malformed
// header, stale timestamp and signature mismatch are indistinguishable
// to the caller; the distinct causes land in the returned error for
// server-side logging only.
func (s *HMACStrategy) Authenticate(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, credential, ok := strings.Cut(header, " ")
	if !ok || scheme != HMACScheme {
		return "", failure(s.Name(), "missing or malformed Authorization header")
	}

	parts := strings.SplitN(credential, ":", 3)
	if len(parts) != 3 {
		return "", failure(s.Name(), "credential is not serviceId:timestamp:signature")
	}
	serviceID, rawTimestamp, signature := parts[0], parts[1], parts[2]

	service, known := s.services[serviceID]
	if !known {
		return "", failure(s.Name(), "unknown service id %q", serviceID)
	}

	timestampMs, err := strconv.ParseInt(rawTimestamp, 10, 64)
	if err != nil {
		return "", failure(s.Name(), "non-numeric timestamp %q", rawTimestamp)
	}

	skew := s.now().UnixMilli() - timestampMs
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Millisecond > s.window {
		return "", failure(s.Name(), "timestamp outside replay window for service %q", serviceID)
	}

	bodyHash, err := s.bodyHash(r)
	if err != nil {
		return "", failure(s.Name(), "reading request body: %v", err)
	}

	signing := SigningString(r.Method, r.URL.RequestURI(), timestampMs, bodyHash)
	expected := SignRequest(service.Secret, signing)

	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return "", failure(s.Name(), "signature mismatch for service %q", serviceID)
	}

	return service.DisplayName, nil
}

// bodyHash hashes the raw request body and restores it so downstream
// handlers can still read it. Bodyless methods hash to the empty string.
func (s *HMACStrategy) bodyHash(r *http.Request) (string, error) {
	if bodylessMethods[r.Method] || r.Body == nil {
		return "", nil
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))

	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
