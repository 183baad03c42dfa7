package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign computes the hex-encoded HMAC-SHA256 of payload under secret.
// This is the signature scheme the gateway applies to webhook bodies.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a received hex signature against the payload.
// Comparison is constant time and case-insensitive on the hex encoding.
// An empty secret or signature never verifies.
func VerifySignature(payload []byte, receivedHex, secret string) bool {
	if secret == "" || receivedHex == "" {
		return false
	}

	received, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(receivedHex)))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), received)
}
