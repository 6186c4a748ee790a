package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Sign returns the base64 HMAC-SHA256 of body, as sent in the signature
// header.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify compares header with the signature of the raw body in constant
// time. A header of the wrong length is a mismatch.
func Verify(body []byte, header, secret string) bool {
	if header == "" || secret == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(body, secret)), []byte(header))
}
