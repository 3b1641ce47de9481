// Package keystore supplies the keys used to open database files.
//
// A KeyStore either holds a key or reports that none exists yet; the
// connection manager then generates a random key, stores it and reads it
// back. File keeps the generated key in a 0600 file. Passphrase derives the
// key from an operator passphrase with Argon2id and only persists the salt.
package keystore

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// keyBytes is the length of generated keys before hex encoding.
	keyBytes = 32

	dirPermissions  = 0750
	filePermissions = 0600
)

var (
	// ErrNoPassphrase is returned by Passphrase when it has no passphrase.
	ErrNoPassphrase = errors.New("keystore: no passphrase configured")

	// ErrMalformed is returned when a stored key or salt cannot be parsed.
	ErrMalformed = errors.New("keystore: malformed key material")
)

// KeyStore is the credential collaborator of the connection manager.
type KeyStore interface {
	// GetKey returns the stored key, or ok=false when none exists.
	GetKey() (key string, ok bool, err error)

	// SetKey stores key.
	SetKey(key string) error
}

// Generate returns a new random key.
func Generate() (string, error) {
	b := make([]byte, keyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// File stores a key in a file readable only by its owner.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile returns a key store backed by the file at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// GetKey implements KeyStore.
func (f *File) GetKey() (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading key file: %w", err)
	}
	key := strings.TrimSpace(string(b))
	if key == "" {
		return "", false, nil
	}
	return key, true, nil
}

// SetKey implements KeyStore.
func (f *File) SetKey(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return writePrivate(f.path, []byte(key+"\n"))
}

// Memory keeps a key in memory. It is useful for tests and for processes
// that receive the key from elsewhere.
type Memory struct {
	mu  sync.Mutex
	key string
}

// GetKey implements KeyStore.
func (m *Memory) GetKey() (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key, m.key != "", nil
}

// SetKey implements KeyStore.
func (m *Memory) SetKey(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = key
	return nil
}

func writePrivate(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, filePermissions); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing key file: %w", err)
	}
	return nil
}
