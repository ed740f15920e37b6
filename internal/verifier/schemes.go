package verifier

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"strconv"
	"strings"
	"time"
)

// TimestampedHMAC verifies payment-processor style signatures: the header
// carries a timestamp and one or more signature candidates, and the digest
// covers "<t>.<body>". The tolerance window bounds replay-after-capture.
//
// Header format: "t=<unix>,v1=<hex>[,v1=<hex>...]". When TimestampHeader is
// set, the timestamp comes from that header instead and the signature header
// carries comma-separated candidates.
type TimestampedHMAC struct {
	Secret          string
	SignatureHeader string
	TimestampHeader string
	Tolerance       time.Duration
}

func (s *TimestampedHMAC) Verify(headers map[string]string, body []byte, now time.Time) error {
	sig := header(headers, s.SignatureHeader)
	if sig == "" {
		return ErrMissingSignature
	}

	var ts string
	var candidates []string

	if s.TimestampHeader != "" {
		ts = header(headers, s.TimestampHeader)
		candidates = splitTrim(sig, ",")
	} else {
		for _, part := range splitTrim(sig, ",") {
			k, v, ok := strings.Cut(part, "=")
			if !ok {
				continue
			}
			switch k {
			case "t":
				ts = v
			case "v1":
				candidates = append(candidates, v)
			}
		}
	}

	if ts == "" {
		return ErrInvalidTimestamp
	}
	if len(candidates) == 0 {
		return ErrMissingSignature
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalidTimestamp
	}

	age := now.Sub(time.Unix(unix, 0))
	if age < 0 {
		age = -age
	}
	if age > s.Tolerance {
		return ErrTimestampExpired
	}

	mac := hmac.New(sha256.New, []byte(s.Secret))
	fmt.Fprintf(mac, "%s.", ts)
	mac.Write(body)
	expected := mac.Sum(nil)

	// Evaluate every candidate so the matching position is not observable
	// through timing.
	matched := false
	for _, candidate := range candidates {
		raw, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, raw) {
			matched = true
		}
	}

	if !matched {
		return ErrInvalidSignature
	}
	return nil
}

// SingleHMAC verifies a single digest over the raw body using a
// provider-configured hash algorithm. "sha256=" / "sha1=" prefixes are
// tolerated (GitHub style).
type SingleHMAC struct {
	Secret          string
	SignatureHeader string
	New             func() hash.Hash
}

func (s *SingleHMAC) Verify(headers map[string]string, body []byte, now time.Time) error {
	sig := header(headers, s.SignatureHeader)
	if sig == "" {
		return ErrMissingSignature
	}

	raw, err := parseHexSignature(sig)
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(s.New, []byte(s.Secret))
	mac.Write(body)

	if !hmac.Equal(mac.Sum(nil), raw) {
		return ErrInvalidSignature
	}
	return nil
}

// SharedSecret compares a header against the configured secret verbatim.
// Used for internal systems that do not implement HMAC.
type SharedSecret struct {
	Secret string
	Header string
}

func (s *SharedSecret) Verify(headers map[string]string, body []byte, now time.Time) error {
	got := header(headers, s.Header)
	if got == "" {
		return ErrMissingSignature
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(s.Secret)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// BodyHMAC verifies an HMAC-SHA256 digest over the entire raw body with no
// timestamp component (internal worker-to-gateway channel).
type BodyHMAC struct {
	Secret          string
	SignatureHeader string
}

func (s *BodyHMAC) Verify(headers map[string]string, body []byte, now time.Time) error {
	sig := header(headers, s.SignatureHeader)
	if sig == "" {
		return ErrMissingSignature
	}

	raw, err := parseHexSignature(sig)
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(s.Secret))
	mac.Write(body)

	if !hmac.Equal(mac.Sum(nil), raw) {
		return ErrInvalidSignature
	}
	return nil
}

func hashByName(name string) (func() hash.Hash, error) {
	switch name {
	case "", "sha256":
		return sha256.New, nil
	case "sha1":
		return sha1.New, nil
	default:
		return nil, fmt.Errorf("unsupported hmac algorithm %q", name)
	}
}

func parseHexSignature(sig string) ([]byte, error) {
	for _, prefix := range []string{"sha256=", "sha1="} {
		if strings.HasPrefix(sig, prefix) {
			return hex.DecodeString(strings.TrimPrefix(sig, prefix))
		}
	}
	return hex.DecodeString(sig)
}

func splitTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
