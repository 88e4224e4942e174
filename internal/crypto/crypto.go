// Package crypto seals credentials at rest.
// Uses AES-256-GCM for authenticated encryption with an HKDF-derived key.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"
)

var (
	// ErrInvalidCiphertext is returned when decryption fails.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	// ErrInvalidKey is returned when the key is invalid.
	ErrInvalidKey = errors.New("invalid key")
)

const keyInfo = "likevault credential sealing v1"

// Sealer encrypts and decrypts small secrets with a fixed key.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a 32-byte key from secret and returns a Sealer.
func NewSealer(secret []byte) (*Sealer, error) {
	if len(secret) == 0 {
		return nil, ErrInvalidKey
	}
	key, err := DeriveKey(secret, nil)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: gcm}, nil
}

// DeriveKey expands secret into a 32-byte AES key with HKDF-SHA256.
func DeriveKey(secret, salt []byte) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, []byte(keyInfo)), key); err != nil {
		return nil, err
	}
	return key, nil
}

// Seal encrypts plaintext and returns base64(nonce || ciphertext).
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (s *Sealer) Open(ciphertext string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrInvalidCiphertext
	}

	nonce, cipherData := data[:nonceSize], data[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, cipherData, nil)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}
	return plaintext, nil
}

// MachineSecret returns a stable per-host secret for when no explicit
// secret is configured. It is weaker than a configured secret: anyone with
// the database and shell access to the host can recover it.
func MachineSecret() []byte {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
			return append([]byte("likevault:"), data...)
		}
	}
	host, _ := os.Hostname()
	return []byte("likevault:" + host)
}
