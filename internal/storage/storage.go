// Package storage is the local persistent key/value collaborator used by
// the key and authentication flow.
package storage

// Store persists the keyring material and small widget state. All byte
// values are opaque to the store; encryption happens above it.
type Store interface {
	// KeyPair returns the stored keypair record. The second return is
	// false when no record exists.
	KeyPair() ([]byte, bool, error)
	StoreKeyPair(record []byte) error
	RemoveKeyPair() error

	// EncryptionKey is the wrapping key used to encrypt the keypair at
	// rest.
	EncryptionKey() ([]byte, bool, error)
	StoreEncryptionKey(key []byte) error

	// DBVersion tracks the storage layout version for migrations. A store
	// that has never been written reports version 0.
	DBVersion() (int, error)
	SetDBVersion(v int) error

	// Generic item accessors for everything else.
	Item(key string) ([]byte, bool, error)
	StoreItem(key string, value []byte) error
	RemoveItem(key string) error
}
