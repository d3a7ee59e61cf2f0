// Package session issues and revokes the bearer tokens that identify a
// logged-in user. Sessions live in process memory only.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
)

// TokenBytes is the entropy of a token before hex encoding.
const TokenBytes = 32

// maxTokenAttempts bounds regeneration on a collision with a live token.
const maxTokenAttempts = 8

// Store maps session tokens to user ids.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]int32
	random   func([]byte) (int, error)
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]int32),
		random:   rand.Read,
	}
}

// CreateToken issues a token for userID that does not collide with any live token.
func (s *Store) CreateToken(userID int32) (string, error) {
	buf := make([]byte, TokenBytes)

	s.mu.Lock()
	defer s.mu.Unlock()

	for range maxTokenAttempts {
		if _, err := s.random(buf); err != nil {
			return "", fmt.Errorf("reading random bytes: %w", err)
		}
		token := hex.EncodeToString(buf)
		if _, live := s.sessions[token]; live {
			continue
		}
		s.sessions[token] = userID
		return token, nil
	}
	return "", fmt.Errorf("no unique token after %d attempts", maxTokenAttempts)
}

// IsValidToken reports whether token belongs to a live session.
func (s *Store) IsValidToken(token string) bool {
	_, ok := s.GetUID(token)
	return ok
}

// GetUID returns the user id for token.
func (s *Store) GetUID(token string) (int32, bool) {
	if token == "" {
		return 0, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	uid, ok := s.sessions[token]
	return uid, ok
}

// Clear ends the session for token. Clearing an unknown token is a no-op.
// It reports whether a session was removed.
func (s *Store) Clear(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[token]; !ok {
		return false
	}
	delete(s.sessions, token)
	return true
}

// ClearAll ends every session.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.sessions)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
