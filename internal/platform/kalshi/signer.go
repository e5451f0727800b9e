package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

const (
	HeaderAccessKey       = "KALSHI-ACCESS-KEY"
	HeaderAccessSignature = "KALSHI-ACCESS-SIGNATURE"
	HeaderAccessTimestamp = "KALSHI-ACCESS-TIMESTAMP"
)

// Signer authenticates Kalshi requests with RSA-PSS signatures. A Signer
// without key material adds no headers, so requests proceed unauthenticated
// and fail through the upstream status code.
type Signer struct {
	keyID string
	key   *rsa.PrivateKey
	now   func() time.Time
}

// NewSigner builds a Signer from a PEM-encoded RSA private key. Empty pemBytes
// yield an unauthenticated Signer; malformed key material is reported as
// domain.ErrAuthentication.
func NewSigner(keyID string, pemBytes []byte) (*Signer, error) {
	s := &Signer{keyID: keyID, now: time.Now}
	if len(pemBytes) == 0 {
		return s, nil
	}
	key, err := ParsePrivateKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("kalshi: %w: %v", domain.ErrAuthentication, err)
	}
	s.key = key
	return s, nil
}

// ParsePrivateKey loads an RSA private key from PEM bytes, accepting PKCS#8
// first and PKCS#1 as a fallback.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in private key")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		pkcs1Key, pkcs1Err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if pkcs1Err != nil {
			return nil, fmt.Errorf("parse private key: %w (pkcs1: %v)", err, pkcs1Err)
		}
		return pkcs1Key, nil
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("expected RSA private key, got %T", key)
	}
	return rsaKey, nil
}

// HasKey reports whether the signer can produce signatures.
func (s *Signer) HasKey() bool {
	return s.key != nil && s.keyID != ""
}

// Authorize signs req. The signed path is the full URL path (including the
// API prefix) without the query string.
func (s *Signer) Authorize(_ context.Context, req *http.Request) error {
	if !s.HasKey() {
		return nil
	}

	ts := strconv.FormatInt(s.now().UnixMilli(), 10)
	sig, err := s.Sign(ts, req.Method, req.URL.Path)
	if err != nil {
		return err
	}

	req.Header.Set(HeaderAccessKey, s.keyID)
	req.Header.Set(HeaderAccessSignature, sig)
	req.Header.Set(HeaderAccessTimestamp, ts)
	return nil
}

// Sign returns the base64 RSA-PSS SHA-256 signature of timestamp+method+path.
func (s *Signer) Sign(timestamp, method, path string) (string, error) {
	if s.key == nil {
		return "", fmt.Errorf("kalshi: %w: RSA private key not configured", domain.ErrAuthentication)
	}
	hash := sha256.Sum256([]byte(timestamp + method + path))
	signature, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, hash[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return "", fmt.Errorf("kalshi: RSA sign: %w", err)
	}
	return base64.StdEncoding.EncodeToString(signature), nil
}
