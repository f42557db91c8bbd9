package dispatchwebhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw body.
const SignatureHeader = "X-Onfleet-Signature"

// Sign returns the hex signature for body. The secret is itself hex encoded; a
// secret that does not decode is used as raw bytes.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha512.New, secretKey(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidSignature compares header against the expected signature in constant time.
func ValidSignature(body []byte, secret, header string) bool {
	header = strings.ToLower(strings.TrimSpace(header))
	if header == "" || secret == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(body, secret)), []byte(header))
}

func secretKey(secret string) []byte {
	secret = strings.TrimSpace(secret)
	if key, err := hex.DecodeString(secret); err == nil {
		return key
	}
	return []byte(secret)
}
