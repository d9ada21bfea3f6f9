package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateAccessToken generates an opaque 64-character hex token for the
// inbound B2B token endpoint.
func GenerateAccessToken() (string, error) {
	b := make([]byte, 32) // 64 char hex
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
