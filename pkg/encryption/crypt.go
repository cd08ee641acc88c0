package encryption

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"os"

	"github.com/benmeehan/iotctl/pkg/file"
	"golang.org/x/crypto/chacha20poly1305"
)

// EncryptionManagerInterface defines encryption and decryption methods.
type EncryptionManagerInterface interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// EncryptionManager implements XChaCha20-Poly1305 encryption with a key kept in a local file.
type EncryptionManager struct {
	fileClient file.FileOperations
	aead       cipher.AEAD
}

// NewEncryptionManager creates a new EncryptionManager instance.
func NewEncryptionManager(fileClient file.FileOperations) *EncryptionManager {
	return &EncryptionManager{fileClient: fileClient}
}

// Initialize loads the key from keyPath, generating and persisting a new one when the file does not exist.
func (a *EncryptionManager) Initialize(keyPath string) error {
	key, err := a.fileClient.ReadFileRaw(keyPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read encryption key: %w", err)
		}
		key = make([]byte, chacha20poly1305.KeySize)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("failed to generate encryption key: %w", err)
		}
		if err := a.fileClient.WriteFileRaw(keyPath, key); err != nil {
			return fmt.Errorf("failed to persist encryption key: %w", err)
		}
	}

	return a.InitializeWithKey(key)
}

// InitializeWithKey caches the cipher for an in-memory key.
func (a *EncryptionManager) InitializeWithKey(key []byte) error {
	if len(key) != chacha20poly1305.KeySize {
		return fmt.Errorf("invalid encryption key size: got %d bytes, want %d bytes", len(key), chacha20poly1305.KeySize)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}
	a.aead = aead
	return nil
}

// Encrypt encrypts plaintext, prefixing the random nonce.
func (a *EncryptionManager) Encrypt(plaintext []byte) ([]byte, error) {
	if a.aead == nil {
		return nil, errors.New("encryption manager not initialized")
	}

	nonce := make([]byte, a.aead.NonceSize(), a.aead.NonceSize()+len(plaintext)+a.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return a.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts ciphertext produced by Encrypt.
func (a *EncryptionManager) Decrypt(ciphertext []byte) ([]byte, error) {
	if a.aead == nil {
		return nil, errors.New("encryption manager not initialized")
	}

	nonceSize := a.aead.NonceSize()
	if len(ciphertext) < nonceSize+a.aead.Overhead() {
		return nil, errors.New("ciphertext too short: must include nonce and encrypted data")
	}

	plaintext, err := a.aead.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return plaintext, nil
}
