package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// sessionEntry stores one session's identity and expiry
type sessionEntry struct {
	identity Identity
	expiry   time.Time
}

// Store holds server-side sessions keyed by opaque token. Expired entries
// are dropped lazily on access and in bulk by PruneExpired, which the
// background sweeper drives.
type Store struct {
	sessions map[string]*sessionEntry
	mu       sync.RWMutex
	ttl      time.Duration
}

// NewStore creates a session store with the given sliding TTL.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*sessionEntry),
		ttl:      ttl,
	}
}

// Create registers a new session for the identity and returns its token.
func (s *Store) Create(identity Identity) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.sessions[token] = &sessionEntry{
		identity: identity,
		expiry:   time.Now().Add(s.ttl),
	}
	s.mu.Unlock()

	return token, nil
}

// Get returns the identity for a token, if the session exists and has not
// expired. Expired entries are removed on access.
func (s *Store) Get(token string) (Identity, bool) {
	s.mu.RLock()
	entry, exists := s.sessions[token]
	s.mu.RUnlock()

	if !exists {
		return Identity{}, false
	}

	if time.Now().After(entry.expiry) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return Identity{}, false
	}

	return entry.identity, true
}

// Touch slides the session's expiry forward by the store TTL.
func (s *Store) Touch(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.sessions[token]
	if !exists || time.Now().After(entry.expiry) {
		return false
	}

	entry.expiry = time.Now().Add(s.ttl)
	return true
}

// Regenerate invalidates oldToken (if any) and issues a fresh token for the
// identity. Called after credential verification so a token fixed before
// login never survives it.
func (s *Store) Regenerate(oldToken string, identity Identity) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if oldToken != "" {
		delete(s.sessions, oldToken)
	}
	s.sessions[token] = &sessionEntry{
		identity: identity,
		expiry:   time.Now().Add(s.ttl),
	}
	s.mu.Unlock()

	return token, nil
}

// Destroy removes the session for token. Removing an unknown token is a
// no-op.
func (s *Store) Destroy(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// PruneExpired removes all expired sessions and returns how many were
// dropped.
func (s *Store) PruneExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	pruned := 0
	for token, entry := range s.sessions {
		if now.After(entry.expiry) {
			delete(s.sessions, token)
			pruned++
		}
	}
	return pruned
}

// Len returns the number of live entries, including any not yet pruned.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// newToken generates 32 random bytes hex-encoded
func newToken() (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(randomBytes), nil
}
