package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultTOTPStep is the RFC 6238 time step.
	DefaultTOTPStep = 30 * time.Second
	// DefaultTOTPWindow accepts one step of clock skew either way.
	DefaultTOTPWindow = 1

	minTOTPDigits = 6
	maxTOTPDigits = 10
)

// TOTPIdentity is one configured code-bearing identity.
type TOTPIdentity struct {
	Name   string
	Secret []byte // decoded Base32 secret
	Digits int
}

// ParseTOTPIdentities builds identities from config entries of the form
// "base32secret:name[:digits]". A malformed Base32 secret or an
// out-of-range digit count disables that identity with a warning; it
// never brings the process down.
func ParseTOTPIdentities(entries []string, log *logrus.Logger) []TOTPIdentity {
	if log == nil {
		log = logrus.New()
	}

	var identities []TOTPIdentity
	for i, entry := range entries {
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			log.Warnf("totp entry %d is not secret:name[:digits], skipping", i+1)
			continue
		}

		secret, err := decodeBase32Secret(parts[0])
		if err != nil {
			log.Warnf("totp identity %q has a malformed Base32 secret, skipping: %v", parts[1], err)
			continue
		}

		digits := minTOTPDigits
		if len(parts) >= 3 {
			digits, err = strconv.Atoi(parts[2])
			if err != nil || digits < minTOTPDigits || digits > maxTOTPDigits {
				log.Warnf("totp identity %q has invalid digit count %q (must be %d-%d), skipping",
					parts[1], parts[2], minTOTPDigits, maxTOTPDigits)
				continue
			}
		}

		identities = append(identities, TOTPIdentity{
			Name:   parts[1],
			Secret: secret,
			Digits: digits,
		})
	}

	return identities
}

// decodeBase32Secret decodes an RFC 4648 Base32 secret, tolerating
// lowercase input, inner spaces, and missing padding.
func decodeBase32Secret(s string) ([]byte, error) {
	s = strings.ToUpper(strings.ReplaceAll(s, " ", ""))
	s = strings.TrimRight(s, "=")
	return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s)
}

// HOTPCode computes the RFC 4226 code for a counter value: HMAC-SHA1
// over the big-endian counter, dynamic truncation, modulo 10^digits,
// zero-padded.
func HOTPCode(secret []byte, counter uint64, digits int) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, secret)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	mod := uint64(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, uint64(value)%mod)
}

// TOTPStrategy authenticates requests bearing a time-based one-time
// code for any configured identity.
type TOTPStrategy struct {
	identities []TOTPIdentity
	step       time.Duration
	window     int
	now        func() time.Time
	log        *logrus.Logger
}

// NewTOTPStrategy creates a TOTP strategy. Zero step or negative window
// fall back to the defaults.
func NewTOTPStrategy(identities []TOTPIdentity, step time.Duration, window int, log *logrus.Logger) *TOTPStrategy {
	if step <= 0 {
		step = DefaultTOTPStep
	}
	if window < 0 {
		window = DefaultTOTPWindow
	}
	if log == nil {
		log = logrus.New()
	}
	return &TOTPStrategy{
		identities: identities,
		step:       step,
		window:     window,
		now:        time.Now,
		log:        log,
	}
}

// Name implements Strategy.
func (s *TOTPStrategy) Name() string { return "totp" }

// Authenticate accepts a bearer code that exactly matches any candidate
// code of any configured identity within the skew window.
func (s *TOTPStrategy) Authenticate(r *http.Request) (string, error) {
	code, ok := bearerToken(r)
	if !ok {
		return "", failure(s.Name(), "missing or malformed Authorization header")
	}
	if len(code) < minTOTPDigits || len(code) > maxTOTPDigits {
		return "", failure(s.Name(), "code length %d out of range", len(code))
	}

	counter := uint64(s.now().Unix()) / uint64(s.step/time.Second)

	for _, identity := range s.identities {
		if len(code) != identity.Digits {
			continue
		}
		for delta := -s.window; delta <= s.window; delta++ {
			candidate := HOTPCode(identity.Secret, counter+uint64(int64(delta)), identity.Digits)
			if subtle.ConstantTimeCompare([]byte(candidate), []byte(code)) == 1 {
				return identity.Name, nil
			}
		}
	}

	return "", failure(s.Name(), "no identity matched the presented code")
}
