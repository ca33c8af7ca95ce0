// Package crypto seals platform access tokens before they are written to the
// connection store.
//
// Tokens are encrypted with AES-256-GCM under a key derived from the
// configured passphrase with PBKDF2. Each call to Seal uses a fresh random
// nonce, which is stored in front of the ciphertext:
//
//	base64( nonce || ciphertext || tag )
//
// A sealed value opened with a different passphrase, or altered in storage,
// fails authentication in Open.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"canvas-gateway/internal/common/errors"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keySize          = 32
	derivationRounds = 10000
)

var derivationSalt = []byte("canvas-gateway/token-cipher")

// TokenCipher encrypts and decrypts access tokens. It is safe for concurrent use.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher derives an AES-256 key from passphrase.
func NewTokenCipher(passphrase string) (*TokenCipher, error) {
	if passphrase == "" {
		return nil, errors.ValidationError("encryption key cannot be empty")
	}

	key := pbkdf2.Key([]byte(passphrase), derivationSalt, derivationRounds, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.InternalError("failed to create cipher", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.InternalError("failed to create GCM", err)
	}

	return &TokenCipher{aead: aead}, nil
}

// Seal encrypts plaintext. An empty plaintext stays empty.
func (c *TokenCipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.InternalError("failed to create nonce", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (c *TokenCipher) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", errors.ValidationError("sealed token is not valid base64")
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.ValidationError("sealed token too short")
	}

	plaintext, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", errors.AuthError("sealed token failed authentication", err)
	}
	return string(plaintext), nil
}
