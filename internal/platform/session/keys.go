// Package session implements the token, refresh-repository, login-attempt,
// and geo-validation machinery behind the auth endpoints (§4.6-§4.10).
package session

import (
	"sync"
	"time"
)

// Key is a 256-bit symmetric key used to seal/open access-token envelopes.
type Key [32]byte

// KeyStore holds the current and previous signing keys (§4.6). Readers
// (token verification) take an RLock; Rotate takes the exclusive Lock,
// matching the "exclusive writer, snapshot readers" policy of the
// concurrency model.
type KeyStore struct {
	mu        sync.RWMutex
	current   Key
	previous  *Key
	rotatedAt time.Time
}

// NewKeyStore creates a KeyStore whose current key is initial.
func NewKeyStore(initial Key) *KeyStore {
	return &KeyStore{current: initial, rotatedAt: time.Now()}
}

// CurrentKey returns the active signing key.
func (s *KeyStore) CurrentKey() Key {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current
}

// PreviousKey returns the prior signing key and whether one exists.
func (s *KeyStore) PreviousKey() (Key, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.previous == nil {
		return Key{}, false
	}

	return *s.previous, true
}

// Rotate makes newKey current, demoting the old current to previous; the
// previous-previous key is discarded (§3).
func (s *KeyStore) Rotate(newKey Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.current
	s.previous = &old
	s.current = newKey
	s.rotatedAt = time.Now()
}

// RotatedAt reports when the current key took effect.
func (s *KeyStore) RotatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.rotatedAt
}
