package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// tokenKeyInfo is the HKDF info string binding the derived key to this
// use. The AEAD key is derived from the configured master key so the
// raw configured bytes never encrypt anything directly.
const tokenKeyInfo = "voicebridge token encryption v1"

const nonceSize = 12

// Cipher encrypts and decrypts token fields with AES-256-GCM. Ciphertext
// is stored as [12-byte nonce][ciphertext+GCM tag].
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the AEAD key from a 32-byte master key and builds
// the cipher. The master key slice is not retained.
func NewCipher(masterKey []byte) (*Cipher, error) {
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(masterKey))
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, masterKey, nil, []byte(tokenKeyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("deriving token key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &Cipher{aead: gcm}, nil
}

// Encrypt seals plaintext under a fresh random nonce
func (c *Cipher) Encrypt(plaintext string) ([]byte, error) {
	if plaintext == "" {
		return nil, fmt.Errorf("cannot encrypt empty value")
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	return c.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens ciphertext produced by Encrypt. Tampered or
// key-mismatched data fails with ErrIntegrity.
func (c *Cipher) Decrypt(data []byte) (string, error) {
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrIntegrity)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIntegrity, err)
	}

	return string(plaintext), nil
}
