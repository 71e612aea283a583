package keyring

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := randomKey(t)
	for _, size := range []int{1, 16, 33, 1024} {
		plaintext := make([]byte, size)
		_, err := rand.Read(plaintext)
		require.NoError(t, err)

		record, err := Encrypt(key, plaintext)
		require.NoError(t, err)
		assert.Len(t, record, size+nonceLen+16, "nonce + ciphertext + GCM tag")

		got, err := Decrypt(key, record)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	key := randomKey(t)
	a, err := Encrypt(key, []byte("same plaintext"))
	require.NoError(t, err)
	b, err := Encrypt(key, []byte("same plaintext"))
	require.NoError(t, err)
	assert.NotEqual(t, a[:nonceLen], b[:nonceLen])
	assert.NotEqual(t, a, b)
}

func TestDecryptWrongKeyFails(t *testing.T) {
	record, err := Encrypt(randomKey(t), []byte("secret"))
	require.NoError(t, err)

	got, err := Decrypt(randomKey(t), record)
	assert.Error(t, err)
	assert.Nil(t, got)
}

func TestDecryptTruncatedFails(t *testing.T) {
	key := randomKey(t)
	record, err := Encrypt(key, []byte("secret material"))
	require.NoError(t, err)

	for _, n := range []int{0, nonceLen, nonceLen + 1, len(record) - 1} {
		got, err := Decrypt(key, record[:n])
		assert.Error(t, err, "truncated to %d bytes", n)
		assert.Nil(t, got)
	}
}

func TestDecryptTamperedFails(t *testing.T) {
	key := randomKey(t)
	record, err := Encrypt(key, []byte("secret material"))
	require.NoError(t, err)

	record[len(record)-1] ^= 0x01
	got, err := Decrypt(key, record)
	assert.Error(t, err)
	assert.Nil(t, got)
}
