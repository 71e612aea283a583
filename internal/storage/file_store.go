package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const stateFile = "connectkit.json"

// fileState is the on-disk JSON structure. Byte values are base64 in the
// file via encoding/json's []byte handling.
type fileState struct {
	Version       int               `json:"version"`
	KeyPair       []byte            `json:"keyPair,omitempty"`
	EncryptionKey []byte            `json:"encryptionKey,omitempty"`
	Items         map[string][]byte `json:"items,omitempty"`
}

// FileStore persists widget state in a single JSON file under dir.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore returns a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path() string { return filepath.Join(s.dir, stateFile) }

func (s *FileStore) read() (fileState, error) {
	var st fileState
	data, err := os.ReadFile(s.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileState{Items: map[string][]byte{}}, nil
		}
		return st, fmt.Errorf("failed to read state file: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("failed to unmarshal state file: %w", err)
	}
	if st.Items == nil {
		st.Items = map[string][]byte{}
	}
	return st, nil
}

func (s *FileStore) write(st fileState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state file: %w", err)
	}
	return os.WriteFile(s.path(), data, 0o600)
}

func (s *FileStore) KeyPair() ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil {
		return nil, false, err
	}
	return st.KeyPair, len(st.KeyPair) > 0, nil
}

func (s *FileStore) StoreKeyPair(record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil {
		return err
	}
	st.KeyPair = append([]byte(nil), record...)
	return s.write(st)
}

func (s *FileStore) RemoveKeyPair() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil {
		return err
	}
	st.KeyPair = nil
	return s.write(st)
}

func (s *FileStore) EncryptionKey() ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil {
		return nil, false, err
	}
	return st.EncryptionKey, len(st.EncryptionKey) > 0, nil
}

func (s *FileStore) StoreEncryptionKey(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil {
		return err
	}
	st.EncryptionKey = append([]byte(nil), key...)
	return s.write(st)
}

func (s *FileStore) DBVersion() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil {
		return 0, err
	}
	return st.Version, nil
}

func (s *FileStore) SetDBVersion(v int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil {
		return err
	}
	st.Version = v
	return s.write(st)
}

func (s *FileStore) Item(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil {
		return nil, false, err
	}
	v, ok := st.Items[key]
	return v, ok, nil
}

func (s *FileStore) StoreItem(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil {
		return err
	}
	st.Items[key] = append([]byte(nil), value...)
	return s.write(st)
}

func (s *FileStore) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read()
	if err != nil {
		return err
	}
	delete(st.Items, key)
	return s.write(st)
}

var _ Store = (*FileStore)(nil)
