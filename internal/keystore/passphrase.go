package keystore

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters, as used for password hashing.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 1
	argonKeyLen  = 32
	argonSaltLen = 16
)

// Passphrase derives the key from a passphrase with Argon2id. Only the salt
// and parameters are written to disk, as "$argon2id$v=19$m=...,t=...,p=...$<salt>".
type Passphrase struct {
	mu         sync.Mutex
	path       string
	passphrase string
}

// NewPassphrase returns a key store deriving keys from passphrase with the
// salt kept at path.
func NewPassphrase(path, passphrase string) *Passphrase {
	return &Passphrase{path: path, passphrase: passphrase}
}

// GetKey implements KeyStore. It reports no key until SetKey has created
// the salt.
func (p *Passphrase) GetKey() (string, bool, error) {
	if p.passphrase == "" {
		return "", false, ErrNoPassphrase
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading salt file: %w", err)
	}

	salt, params, err := decodeSalt(strings.TrimSpace(string(b)))
	if err != nil {
		return "", false, err
	}
	key := argon2.IDKey([]byte(p.passphrase), salt, params.time, params.memory, params.threads, argonKeyLen)
	return hex.EncodeToString(key), true, nil
}

// SetKey implements KeyStore by creating the salt. The supplied key is not
// stored: the key is always derived from the passphrase. An existing salt is
// kept so that previously derived keys stay valid.
func (p *Passphrase) SetKey(string) error {
	if p.passphrase == "" {
		return ErrNoPassphrase
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := os.Stat(p.path); err == nil {
		return nil
	}

	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("generating salt: %w", err)
	}
	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s",
		argon2.Version,
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
	)
	return writePrivate(p.path, []byte(encoded+"\n"))
}

type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
}

func decodeSalt(encoded string) ([]byte, argonParams, error) {
	var params argonParams
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[1] != "argon2id" {
		return nil, params, fmt.Errorf("%w: unexpected salt format", ErrMalformed)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.time, &params.threads); err != nil {
		return nil, params, fmt.Errorf("%w: parsing parameters: %w", ErrMalformed, err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, params, fmt.Errorf("%w: decoding salt: %w", ErrMalformed, err)
	}
	return salt, params, nil
}
