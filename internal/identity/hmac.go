package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// WebhookAuth holds the shared secret used to sign outbound resolution
// webhooks. The oracle service verifies the same headers on its side.
type WebhookAuth struct {
	Secret string
}

// Headers returns the HTTP headers for a signed webhook request.
// The signature is HMAC-SHA256(secret, timestamp+method+path+body) encoded
// as base64.
//
// Returned header keys:
//   - X-Settlement-Timestamp
//   - X-Settlement-Signature
func (w *WebhookAuth) Headers(method, path, body string) map[string]string {
	return w.HeadersAt(method, path, body, time.Now().Unix())
}

// HeadersAt is like Headers but lets the caller supply the Unix timestamp
// (useful for deterministic testing).
func (w *WebhookAuth) HeadersAt(method, path, body string, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)

	message := ts + method + path + body
	sig := hmacSHA256Base64([]byte(w.Secret), message)

	return map[string]string{
		"X-Settlement-Timestamp": ts,
		"X-Settlement-Signature": sig,
	}
}

// Verify checks a signature produced by HeadersAt against the secret.
func (w *WebhookAuth) Verify(method, path, body, timestamp, signature string) bool {
	message := timestamp + method + path + body
	want := hmacSHA256Base64([]byte(w.Secret), message)
	return hmac.Equal([]byte(want), []byte(signature))
}

// String returns a redacted representation suitable for logging.
func (w *WebhookAuth) String() string {
	if len(w.Secret) <= 4 {
		return "WebhookAuth{secret=****}"
	}
	return fmt.Sprintf("WebhookAuth{secret=%s****}", w.Secret[:4])
}

// hmacSHA256Base64 computes HMAC-SHA256 of message using key and returns the
// result as a base64 standard-encoded string.
func hmacSHA256Base64(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
