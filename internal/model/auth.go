package model

// KeyPair is the local device-pairing keypair. At rest it is always
// AES-GCM encrypted; the plaintext private key is never persisted and is
// held in memory only for the duration of a single crypto operation.
type KeyPair struct {
	PublicKey  []byte `json:"publicKey"`
	PrivateKey []byte `json:"privateKey"`
}

// AuthContext is the credential bundle produced by a completed
// trustchain authentication. It is a required input to cloud sync;
// invoking sync without it is a programming error, not a no-op.
type AuthContext struct {
	TrustChainID    string
	ApplicationPath string
	Credential      []byte
	EncryptionKey   []byte
}
