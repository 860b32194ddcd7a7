// Package payments verifies and decodes Stripe webhook deliveries.
package payments

import (
	"crypto/hmac"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78/webhook"
)

// DefaultSignatureTolerance is the accepted clock distance between the signed
// timestamp and now, in either direction.
const DefaultSignatureTolerance = 300 * time.Second

// SignatureError reports why a Stripe-Signature header was rejected.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string { return e.Reason }

// ErrInvalidSignature is matched by every SignatureError via errors.Is.
var ErrInvalidSignature = errors.New("invalid stripe signature")

func (e *SignatureError) Is(target error) bool { return target == ErrInvalidSignature }

func signatureError(reason string) error { return &SignatureError{Reason: reason} }

// SignatureVerifier checks the Stripe-Signature header of a webhook delivery.
type SignatureVerifier struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

type VerifierOption func(*SignatureVerifier)

// WithTolerance overrides DefaultSignatureTolerance.
func WithTolerance(d time.Duration) VerifierOption {
	return func(v *SignatureVerifier) {
		if d > 0 {
			v.tolerance = d
		}
	}
}

// WithClock injects the clock, primarily for tests.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *SignatureVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewSignatureVerifier builds a verifier. An empty secret disables verification.
func NewSignatureVerifier(secret string, opts ...VerifierOption) *SignatureVerifier {
	v := &SignatureVerifier{
		secret:    strings.TrimSpace(secret),
		tolerance: DefaultSignatureTolerance,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Enabled reports whether a signing secret is configured.
func (v *SignatureVerifier) Enabled() bool {
	return v != nil && v.secret != ""
}

// Verify checks header against payload. The header has the form
// "t=<unix>,v1=<hex>[,v1=<hex>...]"; any matching v1 is accepted.
func (v *SignatureVerifier) Verify(payload []byte, header string) error {
	if !v.Enabled() {
		return nil
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return signatureError("missing Stripe-Signature header")
	}

	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	signedAt := time.Unix(timestamp, 0)
	age := v.now().Sub(signedAt)
	if age < 0 {
		age = -age
	}
	if age.Truncate(time.Second) > v.tolerance {
		return signatureError("stripe signature timestamp is outside tolerance")
	}

	expected := webhook.ComputeSignature(signedAt, payload, v.secret)
	for _, candidate := range signatures {
		decoded, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return signatureError("invalid stripe signature")
}

func parseSignatureHeader(header string) (int64, []string, error) {
	var (
		timestamp    int64
		hasTimestamp bool
		signatures   []string
	)
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, signatureError("invalid stripe signature timestamp")
			}
			timestamp = parsed
			hasTimestamp = true
		case "v1":
			if value != "" {
				signatures = append(signatures, value)
			}
		}
	}
	if !hasTimestamp {
		return 0, nil, signatureError("stripe signature does not include timestamp")
	}
	if len(signatures) == 0 {
		return 0, nil, signatureError("stripe signature does not include v1")
	}
	return timestamp, signatures, nil
}
