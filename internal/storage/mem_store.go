package storage

import "sync"

// MemStore is an in-memory Store for tests and ephemeral embeddings.
type MemStore struct {
	mu      sync.Mutex
	version int
	keyPair []byte
	encKey  []byte
	items   map[string][]byte
}

// NewMemStore returns an empty MemStore at layout version 0.
func NewMemStore() *MemStore {
	return &MemStore{items: map[string][]byte{}}
}

func (s *MemStore) KeyPair() ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.keyPair...), len(s.keyPair) > 0, nil
}

func (s *MemStore) StoreKeyPair(record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyPair = append([]byte(nil), record...)
	return nil
}

func (s *MemStore) RemoveKeyPair() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyPair = nil
	return nil
}

func (s *MemStore) EncryptionKey() ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.encKey...), len(s.encKey) > 0, nil
}

func (s *MemStore) StoreEncryptionKey(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encKey = append([]byte(nil), key...)
	return nil
}

func (s *MemStore) DBVersion() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version, nil
}

func (s *MemStore) SetDBVersion(v int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = v
	return nil
}

func (s *MemStore) Item(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	return append([]byte(nil), v...), ok, nil
}

func (s *MemStore) StoreItem(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemStore) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

var _ Store = (*MemStore)(nil)
