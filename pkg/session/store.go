package session

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/benmeehan/iotctl/pkg/encryption"
	"github.com/benmeehan/iotctl/pkg/file"
)

// Store persists the session record between invocations.
type Store interface {
	Load() (*Record, error)
	Save(record *Record) error
	Clear() error
}

// FileStore keeps the record as encrypted JSON in a single file.
type FileStore struct {
	path              string
	fileOps           file.FileOperations
	encryptionManager encryption.EncryptionManagerInterface
	mu                sync.Mutex
}

// NewFileStore creates a FileStore backed by path.
func NewFileStore(path string, fileOps file.FileOperations, encryptionManager encryption.EncryptionManagerInterface) *FileStore {
	return &FileStore{
		path:              path,
		fileOps:           fileOps,
		encryptionManager: encryptionManager,
	}
}

// Load reads the record. A missing or empty file yields an empty record.
func (s *FileStore) Load() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.fileOps.ReadFileRaw(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Record{}, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	if len(data) == 0 {
		return &Record{}, nil
	}

	plaintext, err := s.encryptionManager.Decrypt(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session file: %w", err)
	}

	var record Record
	if err := json.Unmarshal(plaintext, &record); err != nil {
		return nil, fmt.Errorf("failed to parse session data: %w", err)
	}

	return &record, nil
}

// Save replaces the stored record.
func (s *FileStore) Save(record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize session data: %w", err)
	}

	encrypted, err := s.encryptionManager.Encrypt(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt session data: %w", err)
	}

	if err := s.fileOps.WriteFileRaw(s.path, encrypted); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Clear removes the stored record.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fileOps.RemoveFile(s.path)
}
