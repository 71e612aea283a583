package keyring

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connectkit/internal/client"
	"connectkit/internal/model"
	"connectkit/internal/storage"
)

type fakeTrustchain struct {
	result client.AuthResult
	err    error
	calls  int
}

func (f *fakeTrustchain) Authenticate(_ context.Context, publicKey []byte, sessionID string) (client.AuthResult, error) {
	f.calls++
	if f.err != nil {
		return client.AuthResult{}, f.err
	}
	return f.result, nil
}

func newTestKeyring(t *testing.T) (*Keyring, *storage.MemStore, *fakeTrustchain) {
	t.Helper()
	store := storage.NewMemStore()
	api := &fakeTrustchain{result: client.AuthResult{
		TrustChainID:    "tc-main",
		ApplicationPath: "m/0'/16'/0'",
		Credential:      []byte("session-credential"),
	}}
	return New(store, api, nil), store, api
}

func TestLoadOrCreateGeneratesAndPersistsEncrypted(t *testing.T) {
	k, store, _ := newTestKeyring(t)

	kp, err := k.LoadOrCreateKeyPair()
	require.NoError(t, err)
	assert.Len(t, kp.PrivateKey, 32)
	assert.Len(t, kp.PublicKey, 65, "uncompressed secp256k1 public key")

	// The stored record must not contain the plaintext private key.
	record, ok, err := store.KeyPair()
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, string(record), string(kp.PrivateKey))
	var asJSON model.KeyPair
	assert.Error(t, json.Unmarshal(record, &asJSON), "record must not be plaintext JSON")

	// A second load returns the same keypair.
	again, err := k.LoadOrCreateKeyPair()
	require.NoError(t, err)
	assert.Equal(t, kp, again)

	version, err := store.DBVersion()
	require.NoError(t, err)
	assert.Equal(t, currentDBVersion, version)
}

func TestMigrationEncryptsPlaintextKeyPair(t *testing.T) {
	k, store, _ := newTestKeyring(t)

	legacy := model.KeyPair{PublicKey: []byte{0x04, 0x01}, PrivateKey: make([]byte, 32)}
	legacy.PrivateKey[0] = 0x7f
	raw, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, store.StoreKeyPair(raw))

	kp, err := k.LoadOrCreateKeyPair()
	require.NoError(t, err)
	assert.Equal(t, legacy, kp, "migration must carry the original keypair over")

	record, ok, err := store.KeyPair()
	require.NoError(t, err)
	require.True(t, ok)
	var asJSON model.KeyPair
	assert.Error(t, json.Unmarshal(record, &asJSON), "migrated record must be encrypted")
}

func TestMigrationQuarantinesCorruptRecord(t *testing.T) {
	k, store, _ := newTestKeyring(t)

	corrupt := []byte("not a keypair at all")
	require.NoError(t, store.StoreKeyPair(corrupt))

	kp, err := k.LoadOrCreateKeyPair()
	require.NoError(t, err)
	assert.NotEmpty(t, kp.PrivateKey, "a fresh keypair replaces the corrupt one")

	quarantined, ok, err := store.Item(quarantineItemKey)
	require.NoError(t, err)
	require.True(t, ok, "old record must be quarantined before removal")
	assert.Equal(t, corrupt, quarantined)
}

func TestMigrationRunsOnce(t *testing.T) {
	k, store, _ := newTestKeyring(t)

	_, err := k.LoadOrCreateKeyPair()
	require.NoError(t, err)

	// Bumped stores skip the v0 step even if a plaintext-looking record
	// appears later.
	require.NoError(t, store.SetDBVersion(currentDBVersion))
	require.NoError(t, k.Migrate())
	version, err := store.DBVersion()
	require.NoError(t, err)
	assert.Equal(t, currentDBVersion, version)
}

func TestAuthenticateProducesAuthContext(t *testing.T) {
	k, _, api := newTestKeyring(t)

	auth, err := k.Authenticate(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "tc-main", auth.TrustChainID)
	assert.Equal(t, "m/0'/16'/0'", auth.ApplicationPath)
	assert.Len(t, auth.EncryptionKey, 32)
	assert.Equal(t, 1, api.calls)

	// The key derivation is deterministic in the credential.
	derived, err := DeriveEncryptionKey(auth.Credential, auth.TrustChainID)
	require.NoError(t, err)
	assert.Equal(t, derived, auth.EncryptionKey)
}

func TestAuthenticateWithoutSessionID(t *testing.T) {
	k, _, api := newTestKeyring(t)

	_, err := k.Authenticate(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNoSessionID)
	var authErr *model.AuthError
	assert.ErrorAs(t, err, &authErr)
	assert.Zero(t, api.calls, "no network call without a session")
}

func TestAuthenticateConnectionFailure(t *testing.T) {
	k, _, api := newTestKeyring(t)
	api.err = errors.New("connection reset")

	_, err := k.Authenticate(context.Background(), "sess-1")
	require.Error(t, err)
	var authErr *model.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "connection", authErr.Reason)
	assert.Equal(t, 1, api.calls, "failures are not retried")
}

func TestCorruptedEncryptedKeyPairIsHardFailure(t *testing.T) {
	k, store, _ := newTestKeyring(t)

	_, err := k.LoadOrCreateKeyPair()
	require.NoError(t, err)

	record, _, err := store.KeyPair()
	require.NoError(t, err)
	record[len(record)-1] ^= 0xff
	require.NoError(t, store.StoreKeyPair(record))

	_, err = k.LoadOrCreateKeyPair()
	assert.Error(t, err, "tampered keypair must not load")
}
