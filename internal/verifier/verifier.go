package verifier

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hookbridge/hookbridge/internal/config"
)

// Verification failures are deliberately generic: callers must not be able to
// distinguish a wrong digest from a missing secret by probing responses.
var (
	ErrUnknownSource    = errors.New("unknown webhook source")
	ErrMissingSignature = errors.New("signature header is required")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidTimestamp = errors.New("invalid signature timestamp")
	ErrTimestampExpired = errors.New("signature timestamp outside allowed tolerance")
	ErrNoSecret         = errors.New("no secret configured for source")
)

// DefaultTolerance bounds |now - t| for timestamped signatures when the
// source config does not override it.
const DefaultTolerance = 300 * time.Second

// Scheme validates that a request was produced by a holder of the source
// secret. Implementations are pure: no I/O beyond their inputs.
type Scheme interface {
	Verify(headers map[string]string, body []byte, now time.Time) error
}

// Result reports the outcome of registry verification. Valid is false only
// for sources explicitly configured to accept unverified traffic.
type Result struct {
	Valid bool
}

type entry struct {
	scheme          Scheme
	hasSecret       bool
	allowUnverified bool
}

// Registry maps source names to their verification scheme. Adding a source is
// a registry entry built from config, not a code branch.
type Registry struct {
	sources map[string]entry
}

// NewRegistry builds a Registry from the configured sources.
func NewRegistry(sources []config.SourceConfig) (*Registry, error) {
	r := &Registry{sources: make(map[string]entry, len(sources))}
	for _, src := range sources {
		scheme, err := newScheme(src)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name, err)
		}
		r.sources[src.Name] = entry{
			scheme:          scheme,
			hasSecret:       src.Secret() != "",
			allowUnverified: src.AllowUnverified,
		}
	}
	return r, nil
}

// Known reports whether the source is registered.
func (r *Registry) Known(source string) bool {
	_, ok := r.sources[source]
	return ok
}

// Verify checks the request signature for the named source.
//
// A source with no configured secret either fails closed (error) or, when
// allow_unverified is set, passes with Valid=false so the acceptance is
// flagged for later audit review. The dual mode is explicit per source.
func (r *Registry) Verify(source string, headers map[string]string, body []byte, now time.Time) (Result, error) {
	e, ok := r.sources[source]
	if !ok {
		return Result{}, ErrUnknownSource
	}

	if !e.hasSecret {
		if e.allowUnverified {
			return Result{Valid: false}, nil
		}
		return Result{}, ErrNoSecret
	}

	if err := e.scheme.Verify(headers, body, now); err != nil {
		return Result{}, err
	}
	return Result{Valid: true}, nil
}

func newScheme(src config.SourceConfig) (Scheme, error) {
	tolerance := src.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	switch src.Scheme {
	case "timestamped_hmac":
		return &TimestampedHMAC{
			Secret:          src.Secret(),
			SignatureHeader: src.SignatureHeader,
			TimestampHeader: src.TimestampHeader,
			Tolerance:       tolerance,
		}, nil
	case "hmac":
		h, err := hashByName(src.Algorithm)
		if err != nil {
			return nil, err
		}
		return &SingleHMAC{
			Secret:          src.Secret(),
			SignatureHeader: src.SignatureHeader,
			New:             h,
		}, nil
	case "shared_secret":
		return &SharedSecret{
			Secret: src.Secret(),
			Header: src.SignatureHeader,
		}, nil
	case "body_hmac":
		return &BodyHMAC{
			Secret:          src.Secret(),
			SignatureHeader: src.SignatureHeader,
		}, nil
	default:
		return nil, fmt.Errorf("unknown scheme %q", src.Scheme)
	}
}

// header performs a canonical-case lookup so schemes see the same value
// regardless of how the client cased the header name.
func header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	return headers[http.CanonicalHeaderKey(name)]
}
