// Package vault provides symmetric encryption for stored secrets:
// AFIP certificates and private keys, MercadoPago tokens.
// One process-wide key, loaded at startup. There is no key rotation —
// rotating the key invalidates every stored ciphertext.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
)

// MinKeyLen is the recommended key length. Shorter keys are accepted but
// logged as a configuration warning.
const MinKeyLen = 32

var (
	// ErrKeyMissing is returned by New when no key is configured.
	ErrKeyMissing = errors.New("vault: ENCRYPTION_KEY no configurada")
	// ErrDecryption is returned when a ciphertext was not produced by the
	// configured key (or was tampered with). Callers must treat it as fatal
	// to the operation using the secret — retrying cannot succeed.
	ErrDecryption = errors.New("vault: no se pudo descifrar el contenido")
)

// Vault encrypts and decrypts secrets with AES-256-GCM.
type Vault struct {
	aead cipher.AEAD
}

// New derives a 256-bit AES key from the configured key material via
// SHA-256 and returns a ready Vault.
func New(key string) (*Vault, error) {
	if key == "" {
		return nil, ErrKeyMissing
	}
	if len(key) < MinKeyLen {
		log.Warn().Int("len", len(key)).Msgf("ENCRYPTION_KEY tiene menos de %d caracteres", MinKeyLen)
	}

	sum := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: init GCM: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals the plaintext and returns base64(nonce || ciphertext).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("vault: nonce: %w", err)
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt with the same key.
// Any tampering, truncation, or key mismatch yields ErrDecryption.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecryption
	}
	ns := v.aead.NonceSize()
	if len(raw) < ns {
		return "", ErrDecryption
	}
	plain, err := v.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plain), nil
}

// HashSensitive returns the SHA-256 hex digest of a value, for logging or
// deduplicating secrets without storing them.
func HashSensitive(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
