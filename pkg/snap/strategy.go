package snap

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Two business-signing conventions coexist at BRI: the SNAP one (HMAC
// SHA-512, hex, over a canonical body-hash string) used by the current
// QRIS and BRIVA SNAP endpoints, and a legacy one (HMAC SHA-256, base64,
// over a raw-body key/value string) still used by the pre-SNAP BRIVA API
// and its payment notifications. They are kept as two named strategies so
// one product's convention is never applied to the other.

// SnapHMAC signs METHOD:path:token:lowercaseHex(sha256(minifiedBody)):timestamp
// with HMAC-SHA512 and encodes the result as lowercase hex.
type SnapHMAC struct{}

// StringToSign builds the canonical string. body must be the minified
// bytes that will be transmitted.
func (SnapHMAC) StringToSign(method, path, accessToken string, body []byte, timestamp string) string {
	digest := sha256.Sum256(body)
	return strings.Join([]string{
		strings.ToUpper(method),
		path,
		accessToken,
		strings.ToLower(hex.EncodeToString(digest[:])),
		timestamp,
	}, ":")
}

func (h SnapHMAC) Sign(clientSecret, method, path, accessToken string, body []byte, timestamp string) string {
	mac := hmac.New(sha512.New, []byte(clientSecret))
	mac.Write([]byte(h.StringToSign(method, path, accessToken, body, timestamp)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (h SnapHMAC) Verify(clientSecret, signature, method, path, accessToken string, body []byte, timestamp string) bool {
	expected := h.Sign(clientSecret, method, path, accessToken, body, timestamp)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// LegacyHMAC signs path=<path>&verb=<VERB>&token=<token>&timestamp=<ts>&body=<raw>
// with HMAC-SHA256 and encodes the result as base64.
type LegacyHMAC struct{}

func (LegacyHMAC) Payload(path, verb, token, timestamp string, body []byte) string {
	return fmt.Sprintf("path=%s&verb=%s&token=%s&timestamp=%s&body=%s",
		path, strings.ToUpper(verb), token, timestamp, body)
}

func (h LegacyHMAC) Sign(clientSecret, path, verb, token, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(h.Payload(path, verb, token, timestamp, body)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (h LegacyHMAC) Verify(clientSecret, signature, path, verb, token, timestamp string, body []byte) bool {
	expected := h.Sign(clientSecret, path, verb, token, timestamp, body)
	return hmac.Equal([]byte(signature), []byte(expected))
}
