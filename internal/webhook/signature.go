// Package webhook authenticates and decodes payment-provider notifications.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/vmomparler1/just5stars-nextjs/internal/clock"
	"github.com/vmomparler1/just5stars-nextjs/internal/domain"
)

// SignatureHeader is the header the provider signs deliveries with.
const SignatureHeader = "Stripe-Signature"

// Verifier checks signature headers against one or more shared secrets.
type Verifier struct {
	secrets   [][]byte
	tolerance time.Duration
	clock     clock.Clock
}

type VerifierOption func(*Verifier)

// WithTolerance rejects signatures whose timestamp is further than d from now.
// Zero disables the check.
func WithTolerance(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		if d >= 0 {
			v.tolerance = d
		}
	}
}

func WithClock(clk clock.Clock) VerifierOption {
	return func(v *Verifier) {
		if clk != nil {
			v.clock = clk
		}
	}
}

// NewVerifier returns a verifier accepting signatures made with any of secrets.
// Empty secrets are ignored; at least one is required.
func NewVerifier(secrets []string, opts ...VerifierOption) (*Verifier, error) {
	v := &Verifier{clock: clock.NewSystem()}
	for _, s := range secrets {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		v.secrets = append(v.secrets, []byte(s))
	}
	if len(v.secrets) == 0 {
		return nil, domain.ErrSecretNotConfigured
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

type signedHeader struct {
	timestamp  string
	signatures [][]byte
}

// parseHeader splits "t=<unix>,v1=<hex>[,v1=<hex>...]". Unknown schemes are skipped.
func parseHeader(header string) (signedHeader, error) {
	var out signedHeader
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			out.timestamp = value
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			out.signatures = append(out.signatures, sig)
		}
	}
	if out.timestamp == "" || len(out.signatures) == 0 {
		return signedHeader{}, domain.ErrMalformedSignature
	}
	if _, err := strconv.ParseInt(out.timestamp, 10, 64); err != nil {
		return signedHeader{}, domain.ErrMalformedSignature
	}
	return out, nil
}

// Verify authenticates body against header. body must be the exact bytes received.
func (v *Verifier) Verify(header string, body []byte) error {
	if strings.TrimSpace(header) == "" {
		return domain.ErrMissingSignature
	}
	h, err := parseHeader(header)
	if err != nil {
		return err
	}

	matched := false
	for _, secret := range v.secrets {
		expected := computeSignature(secret, h.timestamp, body)
		for _, sig := range h.signatures {
			// Keep looping after a match so timing doesn't depend on which candidate matched.
			if hmac.Equal(expected, sig) {
				matched = true
			}
		}
	}
	if !matched {
		return domain.ErrSignatureMismatch
	}

	if v.tolerance > 0 {
		unix, _ := strconv.ParseInt(h.timestamp, 10, 64)
		age := v.clock.Now().Sub(time.Unix(unix, 0))
		if age < 0 {
			age = -age
		}
		if age > v.tolerance {
			return domain.ErrSignatureExpired
		}
	}
	return nil
}

func computeSignature(secret []byte, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}

// Sign builds a header value for body, in the provider's format.
func Sign(secret string, ts time.Time, body []byte) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + t + ",v1=" + hex.EncodeToString(computeSignature([]byte(secret), t, body))
}
