package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

const signatureHexLen = 64

// CanonicalBody compacts a JSON body. Empty, null and non-object bodies
// canonicalise to {} so GET requests sign the same way on both sides.
func CanonicalBody(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CanonicalPath is the request URI with exactly one leading slash.
func CanonicalPath(requestURI string) string {
	return "/" + strings.TrimLeft(requestURI, "/")
}

// RequestSignature signs ts ∥ METHOD ∥ path ∥ body for inbound partner calls.
// body must already be canonical.
func RequestSignature(secret, timestamp, method, path string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(strings.ToUpper(method)))
	mac.Write([]byte(CanonicalPath(path)))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// PayloadSignature signs ts ∥ payload for outbound webhooks.
func PayloadSignature(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// WellFormedSignature accepts exactly 64 lowercase hex characters.
func WellFormedSignature(sig string) bool {
	if len(sig) != signatureHexLen {
		return false
	}
	for i := 0; i < len(sig); i++ {
		c := sig[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// EqualSignatures compares two hex signatures in constant time.
func EqualSignatures(a, b string) bool {
	x, err := hex.DecodeString(a)
	if err != nil {
		return false
	}
	y, err := hex.DecodeString(b)
	if err != nil {
		return false
	}
	return hmac.Equal(x, y)
}
