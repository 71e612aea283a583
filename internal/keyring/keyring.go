// Package keyring owns the local pairing keypair and the trustchain
// authentication flow. The keypair is secp256k1; at rest it is always
// AES-GCM encrypted under a locally stored wrapping key, and the
// plaintext private key only exists in memory for the duration of a
// single operation.
package keyring

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"connectkit/internal/client"
	"connectkit/internal/model"
	"connectkit/internal/storage"
)

const wrappingKeyLen = 32

// TrustchainAPI is the cloud-side authentication collaborator.
type TrustchainAPI interface {
	Authenticate(ctx context.Context, publicKey []byte, sessionID string) (client.AuthResult, error)
}

// Keyring loads, stores and uses the local pairing keypair.
type Keyring struct {
	store storage.Store
	api   TrustchainAPI
	log   *zap.Logger
}

// New creates a keyring over the given storage and trustchain API.
func New(store storage.Store, api TrustchainAPI, log *zap.Logger) *Keyring {
	if log == nil {
		log = zap.NewNop()
	}
	return &Keyring{store: store, api: api, log: log}
}

// wrappingKey returns the stored at-rest wrapping key, generating and
// persisting one on first use.
func (k *Keyring) wrappingKey() ([]byte, error) {
	key, ok, err := k.store.EncryptionKey()
	if err != nil {
		return nil, fmt.Errorf("failed to load wrapping key: %w", err)
	}
	if ok {
		return key, nil
	}

	key = make([]byte, wrappingKeyLen)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate wrapping key: %w", err)
	}
	if err := k.store.StoreEncryptionKey(key); err != nil {
		return nil, fmt.Errorf("failed to store wrapping key: %w", err)
	}
	return key, nil
}

// generateKeyPair draws a fresh secp256k1 keypair.
func generateKeyPair() (model.KeyPair, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return model.KeyPair{}, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return model.KeyPair{
		PublicKey:  crypto.FromECDSAPub(&priv.PublicKey),
		PrivateKey: crypto.FromECDSA(priv),
	}, nil
}

// storeEncrypted seals kp and writes it as the stored keypair record.
func (k *Keyring) storeEncrypted(kp model.KeyPair) error {
	plaintext, err := json.Marshal(kp)
	if err != nil {
		return fmt.Errorf("failed to marshal keypair: %w", err)
	}
	defer clear(plaintext)

	key, err := k.wrappingKey()
	if err != nil {
		return err
	}
	record, err := Encrypt(key, plaintext)
	if err != nil {
		return err
	}
	return k.store.StoreKeyPair(record)
}

// LoadOrCreateKeyPair returns the stored keypair, decrypting it in
// memory, or generates, encrypts and stores a new one when none exists.
// Pending storage migrations run first.
func (k *Keyring) LoadOrCreateKeyPair() (model.KeyPair, error) {
	if err := k.Migrate(); err != nil {
		return model.KeyPair{}, err
	}

	record, ok, err := k.store.KeyPair()
	if err != nil {
		return model.KeyPair{}, fmt.Errorf("failed to load keypair: %w", err)
	}
	if !ok {
		kp, err := generateKeyPair()
		if err != nil {
			return model.KeyPair{}, err
		}
		if err := k.storeEncrypted(kp); err != nil {
			return model.KeyPair{}, err
		}
		k.log.Info("generated new pairing keypair")
		return kp, nil
	}

	key, err := k.wrappingKey()
	if err != nil {
		return model.KeyPair{}, err
	}
	plaintext, err := Decrypt(key, record)
	if err != nil {
		return model.KeyPair{}, fmt.Errorf("stored keypair is corrupted: %w", err)
	}
	defer clear(plaintext)

	var kp model.KeyPair
	if err := json.Unmarshal(plaintext, &kp); err != nil {
		return model.KeyPair{}, fmt.Errorf("stored keypair is corrupted: %w", err)
	}
	return kp, nil
}
