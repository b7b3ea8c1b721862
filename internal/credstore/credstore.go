// Package credstore persists the last-known authenticated identity across
// process restarts. The cache is encrypted at rest and is never an
// authorization source: privileged decisions always revalidate against the
// identity provider.
package credstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/argon2"

	"tradeboard.org/internal/identity"
	"tradeboard.org/internal/profile"
)

const (
	saltLength  = 16
	keyLength   = 32
	iterations  = 2
	memory      = 64 * 1024
	parallelism = 1
)

// StoredAuthData is the cached snapshot of an authenticated session.
type StoredAuthData struct {
	User      *identity.Identity `json:"user"`
	Session   *identity.Session  `json:"session"`
	Profile   *profile.Profile   `json:"profile"`
	Timestamp time.Time          `json:"timestamp"`
}

// Store is a file-backed encrypted credential cache.
type Store struct {
	path       string
	passphrase []byte
	now        func() time.Time

	mu sync.Mutex
}

// New constructs a store writing to path, encrypting with a key derived from
// the device passphrase.
func New(path, passphrase string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("credstore: path is required")
	}
	if passphrase == "" {
		return nil, errors.New("credstore: passphrase is required")
	}
	return &Store{path: path, passphrase: []byte(passphrase), now: time.Now}, nil
}

// Set writes the authenticated state through to disk.
func (s *Store) Set(user *identity.Identity, session *identity.Session, prof *profile.Profile) error {
	data := StoredAuthData{
		User:      user,
		Session:   session,
		Profile:   prof,
		Timestamp: s.now().UTC(),
	}
	plaintext, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("credstore: encode auth data: %w", err)
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("credstore: generate salt: %w", err)
	}
	gcm, err := s.cipherFor(salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("credstore: generate nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, plaintext, nil)

	blob := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, sealed...)

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.path, blob)
}

// Get returns the cached auth data, or nil when the cache is empty. A cache
// that fails to decrypt or decode is invalidated in place; corruption never
// propagates as an error.
func (s *Store) Get() *StoredAuthData {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.clearLocked()
		}
		return nil
	}
	data, err := s.decode(blob)
	if err != nil {
		s.clearLocked()
		return nil
	}
	return data
}

// Clear removes the cache. Calling it on an already-empty store is a no-op.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// HasValid reports whether the cache holds both an identity and a profile.
func (s *Store) HasValid() bool {
	data := s.Get()
	return data != nil && data.User != nil && data.Profile != nil
}

func (s *Store) clearLocked() {
	_ = os.Remove(s.path)
}

func (s *Store) decode(blob []byte) (*StoredAuthData, error) {
	if len(blob) < saltLength {
		return nil, errors.New("credstore: truncated cache")
	}
	salt := blob[:saltLength]
	gcm, err := s.cipherFor(salt)
	if err != nil {
		return nil, err
	}
	rest := blob[saltLength:]
	if len(rest) < gcm.NonceSize() {
		return nil, errors.New("credstore: truncated cache")
	}
	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("credstore: decrypt cache: %w", err)
	}
	var data StoredAuthData
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, fmt.Errorf("credstore: decode cache: %w", err)
	}
	return &data, nil
}

func (s *Store) cipherFor(salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(s.passphrase, salt, iterations, memory, parallelism, keyLength)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("credstore: init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("credstore: init gcm: %w", err)
	}
	return gcm, nil
}

func writeAtomic(path string, blob []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("credstore: mkdir cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".authcache-*")
	if err != nil {
		return fmt.Errorf("credstore: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("credstore: write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("credstore: close cache: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("credstore: replace cache: %w", err)
	}
	return nil
}
