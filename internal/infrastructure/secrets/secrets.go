// Package secrets decrypts connection credentials. Blobs are AES-256-GCM
// sealed, base64 encoded, with the key derived from the configured master
// passphrase via PBKDF2. Encryption and key rotation are owned by an
// external service; this package only consumes the ciphertext.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLength  = 32
	iterations = 100_000
)

var (
	// ErrEmptyPassphrase indicates the master passphrase is not configured
	ErrEmptyPassphrase = errors.New("secrets: master passphrase not configured")
	// ErrMalformedCiphertext indicates the blob is not a valid sealed credential
	ErrMalformedCiphertext = errors.New("secrets: malformed ciphertext")
)

// Decryptor decrypts credential blobs with a key derived once at construction.
type Decryptor struct {
	aead cipher.AEAD
}

// NewDecryptor derives the AES-256-GCM key from the master passphrase and salt.
func NewDecryptor(passphrase, salt string) (*Decryptor, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}

	key := pbkdf2.Key([]byte(passphrase), []byte(salt), iterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: cipher init: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: gcm init: %w", err)
	}

	return &Decryptor{aead: aead}, nil
}

// Decrypt opens a base64-encoded nonce||ciphertext blob and returns the plaintext.
func (d *Decryptor) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}

	nonceSize := d.aead.NonceSize()
	if len(raw) < nonceSize+1 {
		return "", ErrMalformedCiphertext
	}

	plaintext, err := d.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	return string(plaintext), nil
}

// Encrypt seals a plaintext credential. It exists for tests and local
// tooling; production blobs arrive pre-encrypted.
func (d *Decryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, d.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secrets: nonce: %w", err)
	}

	sealed := d.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(append(nonce, sealed...)), nil
}
