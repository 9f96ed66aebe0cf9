// internal/utils/crypto.go
package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// normalizeKey fits an arbitrary passphrase to the AES-256 key size: short
// keys are zero-padded, long ones truncated. CONFIG_SECRET is free-form, so
// the fit happens here instead of at configuration load.
func normalizeKey(key string) []byte {
	fitted := make([]byte, 32)
	copy(fitted, key)
	return fitted
}

// Encrypt seals plaintext with AES-GCM under the given passphrase and
// returns base64, nonce prepended. Used for provider API keys at rest.
func Encrypt(plaintext, key string) (string, error) {
	block, err := aes.NewCipher(normalizeKey(key))
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. A wrong passphrase or tampered ciphertext fails
// the GCM tag check and returns an error.
func Decrypt(ciphertext, key string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(normalizeKey(key))
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	plaintext, err := gcm.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
