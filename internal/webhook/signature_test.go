package webhook

import (
	"testing"
	"time"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"meta":{"event_name":"subscription_created"}}`)

	if res := VerifySignature(secret, body, Sign(secret, body)); !res.Valid {
		t.Errorf("valid signature rejected: %s", res.Reason)
	}

	cases := []struct {
		name   string
		secret string
		header string
	}{
		{"no secret configured", "", Sign(secret, body)},
		{"missing header", secret, ""},
		{"missing prefix", secret, "deadbeef"},
		{"bad hex", secret, "sha256=not-hex!"},
		{"wrong secret", secret, Sign("other_secret", body)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if res := VerifySignature(tc.secret, body, tc.header); res.Valid {
				t.Error("expected rejection")
			}
		})
	}
}

func TestVerifySignature_TamperedBody(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"data":{"attributes":{"quantity":5}}}`)
	header := Sign(secret, body)

	// Flipping a single bit anywhere in the body must invalidate the header.
	tampered := make([]byte, len(body))
	copy(tampered, body)
	tampered[len(tampered)/2] ^= 0x01

	if res := VerifySignature(secret, tampered, header); res.Valid {
		t.Error("tampered body accepted")
	}
}

func TestCheckTimestamp(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tolerance := 300 * time.Second

	within := now.Add(-200 * time.Second).Unix()
	stale := now.Add(-301 * time.Second).Unix()
	future := now.Add(301 * time.Second).Unix()
	edge := now.Add(-300 * time.Second).Unix()

	if !CheckTimestamp(nil, tolerance, now) {
		t.Error("absent timestamp must pass")
	}
	if !CheckTimestamp(&within, tolerance, now) {
		t.Error("timestamp within tolerance rejected")
	}
	if !CheckTimestamp(&edge, tolerance, now) {
		t.Error("timestamp exactly at tolerance rejected")
	}
	if CheckTimestamp(&stale, tolerance, now) {
		t.Error("stale timestamp accepted")
	}
	if CheckTimestamp(&future, tolerance, now) {
		t.Error("future timestamp accepted")
	}
}
