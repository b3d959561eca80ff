package auth

import (
	"sync"
	"time"
)

// TokenRevocationStore tracks logged-out token ids and per-user cut-off
// times. Tokens issued to a user before their cut-off are rejected, which
// invalidates every session after a password reset or account removal.
type TokenRevocationStore struct {
	mu      sync.RWMutex
	tokens  map[string]time.Time // jti -> natural expiry
	userCut map[string]time.Time // user id -> not-before
	maxAge  time.Duration
	done    chan struct{}
	once    sync.Once
}

// NewTokenRevocationStore starts a cleanup goroutine; call Close at shutdown.
// maxAge is the token lifetime, after which a user cut-off has no effect.
func NewTokenRevocationStore(maxAge time.Duration) *TokenRevocationStore {
	s := &TokenRevocationStore{
		tokens:  make(map[string]time.Time),
		userCut: make(map[string]time.Time),
		maxAge:  maxAge,
		done:    make(chan struct{}),
	}
	go s.cleanupLoop(5 * time.Minute)
	return s
}

// Revoke rejects the token with the given jti until expiresAt.
func (s *TokenRevocationStore) Revoke(jti string, expiresAt time.Time) {
	if jti == "" {
		return
	}
	s.mu.Lock()
	s.tokens[jti] = expiresAt
	s.mu.Unlock()
}

// RevokeUser rejects every token issued to userID before at. Token issue
// times have second precision, so at is truncated to match.
func (s *TokenRevocationStore) RevokeUser(userID string, at time.Time) {
	s.mu.Lock()
	s.userCut[userID] = at.Truncate(time.Second)
	s.mu.Unlock()
}

// IsRevoked reports whether a token must be rejected.
func (s *TokenRevocationStore) IsRevoked(jti, userID string, issuedAt time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.tokens[jti]; ok && jti != "" {
		return true
	}
	if cut, ok := s.userCut[userID]; ok && issuedAt.Before(cut) {
		return true
	}
	return false
}

// Count returns the number of individually revoked tokens.
func (s *TokenRevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (s *TokenRevocationStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *TokenRevocationStore) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.cleanup(now)
		}
	}
}

func (s *TokenRevocationStore) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for jti, exp := range s.tokens {
		if now.After(exp) {
			delete(s.tokens, jti)
		}
	}
	for user, cut := range s.userCut {
		if now.Sub(cut) > s.maxAge {
			delete(s.userCut, user)
		}
	}
}
