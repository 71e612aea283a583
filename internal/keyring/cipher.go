package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const nonceLen = 12

// Encrypt seals plaintext with AES-GCM under key. The record layout is
// nonce(12) ‖ ciphertext; the nonce is freshly drawn for every call.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return aesGCM.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a nonce-prefixed AES-GCM record. A failed integrity check
// is a hard failure; the payload is never treated as plaintext.
func Decrypt(key, record []byte) ([]byte, error) {
	if len(record) <= nonceLen {
		return nil, errors.New("encrypted record too short")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := aesGCM.Open(nil, record[:nonceLen], record[nonceLen:], nil)
	if err != nil {
		return nil, errors.New("failed to decrypt record: integrity check failed")
	}
	return plaintext, nil
}
