// Package webhook signs and verifies HMAC-SHA256 payload signatures in hex
// encoding, the scheme used by Razorpay for checkout callbacks and webhooks.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrMissingSecret     = errors.New("webhook: signing secret is not configured")
	ErrMissingSignature  = errors.New("webhook: signature is missing")
	ErrSignatureMismatch = errors.New("webhook: signature mismatch")
)

// Sign returns hex(HMAC-SHA256(secret, payload)).
func Sign(secret string, payload []byte) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify checks signature against payload in constant time.
// An empty secret is a configuration fault and never verifies.
func Verify(secret string, payload []byte, signature string) error {
	if secret == "" {
		return ErrMissingSecret
	}
	if signature == "" {
		return ErrMissingSignature
	}

	expected, err := Sign(secret, payload)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("%w: payload of %d bytes", ErrSignatureMismatch, len(payload))
	}
	return nil
}
