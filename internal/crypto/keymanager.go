// Package crypto stores exchange API private keys encrypted at rest with a
// password (PBKDF2-HMAC-SHA256 key derivation, AES-256-GCM).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	defaultIterations = 480_000
	saltLen           = 16
	aesKeyLen         = 32
	currentVersion    = 1
)

// ErrDecrypt is returned when the password does not open the key file.
var ErrDecrypt = errors.New("crypto: decryption failed")

// envelope is the on-disk format of an encrypted key.
type envelope struct {
	Version    int    `json:"version"`
	KDF        string `json:"kdf"`
	Iterations int    `json:"iterations"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// KeyConfig lists the places a PEM private key may come from. The first
// non-empty source wins: inline PEM, plain PEM file, encrypted file.
type KeyConfig struct {
	PEM           string
	PEMPath       string
	EncryptedPath string
	Password      string
}

// EncryptKey seals a PEM-encoded private key under password.
func EncryptKey(pemBytes []byte, password string) ([]byte, error) {
	return encrypt(pemBytes, password, defaultIterations)
}

func encrypt(pemBytes []byte, password string, iterations int) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	if block, _ := pem.Decode(pemBytes); block == nil {
		return nil, errors.New("crypto: input is not PEM encoded")
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: salt: %w", err)
	}
	gcm, err := newGCM(password, salt, iterations)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: nonce: %w", err)
	}

	return json.MarshalIndent(envelope{
		Version:    currentVersion,
		KDF:        "pbkdf2-sha256",
		Iterations: iterations,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, pemBytes, nil)),
	}, "", "  ")
}

// DecryptKey opens a file produced by EncryptKey and returns the PEM bytes.
func DecryptKey(data []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("crypto: password must not be empty")
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("crypto: parse key file: %w", err)
	}
	if env.Version != currentVersion {
		return nil, fmt.Errorf("crypto: unsupported key file version %d", env.Version)
	}
	if env.Iterations <= 0 {
		return nil, errors.New("crypto: key file has no iteration count")
	}

	var salt, nonce, ciphertext []byte
	for _, f := range []struct {
		name string
		in   string
		out  *[]byte
	}{
		{"salt", env.Salt, &salt},
		{"nonce", env.Nonce, &nonce},
		{"ciphertext", env.Ciphertext, &ciphertext},
	} {
		b, err := base64.StdEncoding.DecodeString(f.in)
		if err != nil {
			return nil, fmt.Errorf("crypto: decode %s: %w", f.name, err)
		}
		*f.out = b
	}

	gcm, err := newGCM(password, salt, env.Iterations)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("crypto: nonce is %d bytes, want %d", len(nonce), gcm.NonceSize())
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}

func newGCM(password string, salt []byte, iterations int) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm: %w", err)
	}
	return gcm, nil
}

// LoadKey resolves the PEM key from cfg. No configured source returns
// (nil, nil); callers decide whether an unsigned client is acceptable.
func LoadKey(cfg KeyConfig) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.PEM) != "":
		// Env files often carry the PEM with literal \n sequences.
		return []byte(strings.ReplaceAll(cfg.PEM, `\n`, "\n")), nil
	case cfg.PEMPath != "":
		data, err := os.ReadFile(cfg.PEMPath)
		if err != nil {
			return nil, fmt.Errorf("crypto: read key file: %w", err)
		}
		return data, nil
	case cfg.EncryptedPath != "":
		data, err := os.ReadFile(cfg.EncryptedPath)
		if err != nil {
			return nil, fmt.Errorf("crypto: read encrypted key file: %w", err)
		}
		return DecryptKey(data, cfg.Password)
	}
	return nil, nil
}
