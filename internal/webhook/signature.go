// Package webhook implements the inbound billing notification endpoint:
// signature authentication, payload validation, idempotency, and dispatch
// into the subscription reconciler.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// SignatureHeader carries the provider's HMAC of the raw request body.
const SignatureHeader = "X-Signature"

const signaturePrefix = "sha256="

// VerificationResult reports the outcome of a signature check. Reason is for
// operational logging only and is never echoed to the caller.
type VerificationResult struct {
	Valid  bool
	Reason string
}

// VerifySignature authenticates a raw request body against the shared secret.
// The header value is "sha256=" followed by the lowercase hex HMAC-SHA256 of
// the exact body bytes. Comparison is constant-time.
func VerifySignature(secret string, body []byte, header string) VerificationResult {
	if secret == "" {
		return VerificationResult{Reason: "webhook secret not configured"}
	}
	if header == "" {
		return VerificationResult{Reason: "missing signature header"}
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return VerificationResult{Reason: "malformed signature header"}
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return VerificationResult{Reason: "signature is not valid hex"}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	if !hmac.Equal(provided, expected) {
		return VerificationResult{Reason: "signature mismatch"}
	}
	return VerificationResult{Valid: true}
}

// Sign computes the signature header value for a body. Used by tests and by
// local tooling that replays captured payloads.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// CheckTimestamp rejects events whose embedded timestamp falls outside the
// tolerance window on either side of now. Events without a timestamp pass;
// the signature remains the primary authenticator.
func CheckTimestamp(ts *int64, tolerance time.Duration, now time.Time) bool {
	if ts == nil {
		return true
	}
	delta := now.Sub(time.Unix(*ts, 0))
	if delta < 0 {
		delta = -delta
	}
	return delta <= tolerance
}
