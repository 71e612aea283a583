package keyring

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"connectkit/internal/model"
)

const encryptionKeyInfo = "connectkit cloud sync encryption key v1"

// DeriveEncryptionKey derives the 32-byte cloud payload key from the
// session credential, bound to the trustchain id.
func DeriveEncryptionKey(credential []byte, trustChainID string) ([]byte, error) {
	reader := hkdf.New(sha256.New, credential, []byte(trustChainID), []byte(encryptionKeyInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	return key, nil
}

// Authenticate runs one trustchain authentication attempt: load (or
// create) the keypair, present its public key together with the open
// device session, and derive the payload encryption key from the
// returned credential. Nothing here retries; every failure category is a
// distinct error surfaced to the caller.
func (k *Keyring) Authenticate(ctx context.Context, sessionID string) (model.AuthContext, error) {
	if sessionID == "" {
		return model.AuthContext{}, &model.AuthError{Reason: "no session id", Err: model.ErrNoSessionID}
	}

	kp, err := k.LoadOrCreateKeyPair()
	if err != nil {
		return model.AuthContext{}, &model.AuthError{Reason: "keypair", Err: err}
	}
	defer clear(kp.PrivateKey)

	result, err := k.api.Authenticate(ctx, kp.PublicKey, sessionID)
	if err != nil {
		return model.AuthContext{}, &model.AuthError{Reason: "connection", Err: err}
	}

	encKey, err := DeriveEncryptionKey(result.Credential, result.TrustChainID)
	if err != nil {
		return model.AuthContext{}, &model.AuthError{Reason: "key derivation", Err: err}
	}

	return model.AuthContext{
		TrustChainID:    result.TrustChainID,
		ApplicationPath: result.ApplicationPath,
		Credential:      result.Credential,
		EncryptionKey:   encKey,
	}, nil
}
