package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
)

// Cipher provides authenticated encryption for credential records at rest.
// Uses AES-256-GCM with a key derived once from the configured secret.
//
// Security Properties:
//   - AES-256 provides strong confidentiality
//   - GCM mode provides both encryption and authentication (AEAD)
//   - Random nonce for each encryption (never reused)
//   - Tampered ciphertext fails deterministically, never returns garbage
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives a 32-byte AES-256 key from the configured secret via
// SHA-256 and constructs the AEAD once. Only the derived key material lives
// in memory; the secret itself is not retained.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, NewConfigurationError("encryption secret must not be empty")
	}

	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Seal serializes the record and encrypts it.
// Returns nonce || ciphertext || tag as a single opaque byte slice.
func (c *Cipher) Seal(record *CredentialRecord) ([]byte, error) {
	plaintext, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize credential record: %w", err)
	}

	// Nonce must be unique for each encryption with the same key
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts and deserializes a sealed credential record. Any tampering
// or key mismatch yields ErrDecryptionFailure; the record is unrecoverable
// and the owning user must re-authenticate.
func (c *Cipher) Open(ciphertext []byte) (*CredentialRecord, error) {
	nonceSize := c.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailure)
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailure, err)
	}

	var record CredentialRecord
	if err := json.Unmarshal(plaintext, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailure, err)
	}

	return &record, nil
}
