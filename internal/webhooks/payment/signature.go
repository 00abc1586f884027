package paymentwebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// AuthenticationError reports an inbound event that failed signature checks.
// The payload must not be processed.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "payment event authentication failed: " + e.Reason
}

// Sign returns the hex HMAC-SHA256 of raw under secret.
func Sign(raw []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(raw)
	return hex.EncodeToString(mac.Sum(nil))
}

// Authenticate recomputes the signature over the raw body and compares it with
// the claimed header in constant time.
func Authenticate(raw []byte, header, secret string) error {
	if strings.TrimSpace(secret) == "" {
		return &AuthenticationError{Reason: "signing secret not configured"}
	}
	claimed := strings.ToLower(strings.TrimSpace(header))
	if claimed == "" {
		return &AuthenticationError{Reason: "signature header missing"}
	}
	expected := Sign(raw, secret)
	if !hmac.Equal([]byte(expected), []byte(claimed)) {
		return &AuthenticationError{Reason: "signature mismatch"}
	}
	return nil
}
