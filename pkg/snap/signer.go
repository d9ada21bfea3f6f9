package snap

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// KeyConfig carries the credential material a Signer needs. Inline PEM
// strings take precedence over file paths when both are configured.
type KeyConfig struct {
	ClientID       string
	ClientSecret   string
	PrivateKeyPEM  string
	PrivateKeyPath string
	PublicKeyPEM   string
	PublicKeyPath  string
}

// Signer produces the SNAP authentication artifacts: RSA-SHA256 token
// headers, HMAC business headers, and the verification counterparts for
// inbound notifications.
type Signer struct {
	cfg KeyConfig
}

// NewSigner builds a Signer for one resolved credential bundle. Keys are
// loaded lazily since verification-only callers may have no private key.
func NewSigner(cfg KeyConfig) *Signer {
	return &Signer{cfg: cfg}
}

// TokenStringToSign is the canonical string for the asymmetric token
// handshake: clientId + "|" + timestamp.
func TokenStringToSign(clientID, timestamp string) string {
	return clientID + "|" + timestamp
}

// SignToken signs clientId|timestamp with RSA-SHA256 and returns the
// base64 signature.
func (s *Signer) SignToken(timestamp string) (string, error) {
	key, err := s.privateKey()
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256([]byte(TokenStringToSign(s.cfg.ClientID, timestamp)))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", &SigningError{Err: err}
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// TokenHeaders returns the asymmetric header set for the access-token
// endpoint.
func (s *Signer) TokenHeaders(timestamp string) (map[string]string, error) {
	sig, err := s.SignToken(timestamp)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"X-SIGNATURE":  sig,
		"X-CLIENT-KEY": s.cfg.ClientID,
		"X-TIMESTAMP":  timestamp,
		"Content-Type": "application/json",
	}, nil
}

// VerifyToken verifies an inbound clientId|timestamp signature against
// the configured public key. It never returns an error: a missing or
// corrupt key fails closed, same as a bad signature.
func (s *Signer) VerifyToken(clientID, timestamp, signatureB64 string) bool {
	key, err := s.publicKey()
	if err != nil {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false
	}
	digest := sha256.Sum256([]byte(TokenStringToSign(clientID, timestamp)))
	return rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], raw) == nil
}

// BusinessHeaders returns the symmetric header set for SNAP business
// calls. body must already be minified (the same bytes that will be
// transmitted). A fresh X-EXTERNAL-ID is generated per call and also sent
// under the misspelled alias some BRI docs use.
func (s *Signer) BusinessHeaders(method, path, accessToken string, body []byte, timestamp, partnerID, channelID string) map[string]string {
	externalID := uuid.NewString()
	sig := SnapHMAC{}.Sign(s.cfg.ClientSecret, method, path, accessToken, body, timestamp)
	return map[string]string{
		"Authorization": "Bearer " + accessToken,
		"X-TIMESTAMP":   timestamp,
		"X-SIGNATURE":   sig,
		"Content-Type":  "application/json",
		"X-PARTNER-ID":  partnerID,
		"CHANNEL-ID":    channelID,
		"X-EXTERNAL-ID": externalID,
		"X-EXTRENAL-ID": externalID,
	}
}

// VerifyBusiness recomputes the legacy business signature for an inbound
// notification and compares it constant-time against both the
// absolute-URL and the path-only variants of the signed string; BRI
// senders are inconsistent about which they used.
func (s *Signer) VerifyBusiness(signature, absoluteURL, path, verb, token, timestamp string, body []byte) bool {
	leg := LegacyHMAC{}
	return leg.Verify(s.cfg.ClientSecret, signature, absoluteURL, verb, token, timestamp, body) ||
		leg.Verify(s.cfg.ClientSecret, signature, path, verb, token, timestamp, body)
}

func (s *Signer) privateKey() (*rsa.PrivateKey, error) {
	pemBytes, source, err := s.keyMaterial(s.cfg.PrivateKeyPEM, s.cfg.PrivateKeyPath)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, &KeyLoadError{Source: source, Err: fmt.Errorf("no PEM block found")}
	}
	// PKCS1 first, then PKCS8.
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, &KeyLoadError{Source: source, Err: err}
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, &KeyLoadError{Source: source, Err: fmt.Errorf("private key is not RSA")}
	}
	return key, nil
}

func (s *Signer) publicKey() (*rsa.PublicKey, error) {
	pemBytes, source, err := s.keyMaterial(s.cfg.PublicKeyPEM, s.cfg.PublicKeyPath)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, &KeyLoadError{Source: source, Err: fmt.Errorf("no PEM block found")}
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, &KeyLoadError{Source: source, Err: err}
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, &KeyLoadError{Source: source, Err: fmt.Errorf("public key is not RSA")}
	}
	return key, nil
}

// keyMaterial resolves PEM bytes, preferring the inline string over the
// file path.
func (s *Signer) keyMaterial(inline, path string) ([]byte, string, error) {
	if inline != "" {
		return []byte(inline), "inline PEM", nil
	}
	if path == "" {
		return nil, "", &KeyLoadError{Source: "config", Err: fmt.Errorf("key not configured")}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, "", &KeyLoadError{Source: path, Err: err}
	}
	return b, path, nil
}
