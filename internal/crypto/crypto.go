// Package crypto seals small files at rest (session cookies, OAuth token) with a
// passphrase-derived AES-256-GCM key.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 16
	iterations = 100000
	keySize    = 32 // AES-256
)

// magic prefixes every sealed blob: magic | salt | nonce | ciphertext.
var magic = []byte("SSENC1")

// ErrDecrypt is returned when a sealed blob cannot be opened with the passphrase.
var ErrDecrypt = errors.New("cannot decrypt data: wrong key or corrupted file")

// Encryptor seals and opens data. A nil *Encryptor passes data through unchanged.
type Encryptor struct {
	passphrase []byte
}

// NewEncryptor creates an encryptor for passphrase, or nil when it is empty.
func NewEncryptor(passphrase string) *Encryptor {
	if passphrase == "" {
		return nil
	}
	return &Encryptor{passphrase: []byte(passphrase)}
}

// Enabled reports whether data will actually be encrypted.
func (e *Encryptor) Enabled() bool {
	return e != nil && len(e.passphrase) > 0
}

func (e *Encryptor) gcm(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(e.passphrase, salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with a fresh salt and nonce.
func (e *Encryptor) Seal(plaintext []byte) ([]byte, error) {
	if !e.Enabled() {
		return plaintext, nil
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	gcm, err := e.gcm(salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	out := make([]byte, 0, len(magic)+saltSize+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, magic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// Open decrypts data produced by Seal. Data without the sealed prefix is returned
// as is, so files written before encryption was enabled stay readable.
func (e *Encryptor) Open(data []byte) ([]byte, error) {
	if !IsSealed(data) {
		return data, nil
	}
	if !e.Enabled() {
		return nil, errors.New("data is encrypted but no encryption key is configured")
	}

	rest := data[len(magic):]
	if len(rest) < saltSize {
		return nil, ErrDecrypt
	}
	salt, rest := rest[:saltSize], rest[saltSize:]

	gcm, err := e.gcm(salt)
	if err != nil {
		return nil, err
	}
	if len(rest) < gcm.NonceSize() {
		return nil, ErrDecrypt
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// IsSealed reports whether data carries the sealed prefix.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, magic)
}
