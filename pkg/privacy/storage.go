package privacy

import (
	"sync"
	"time"

	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// TokenStorage is the grantee-side mapping from an issuer's clearnet NodeId
// to the most recently issued valid CapabilityToken received from that
// issuer (§4.8). It is one of the shared resources guarded by a
// single-writer-multi-reader discipline (§5).
type TokenStorage struct {
	mu     sync.RWMutex
	tokens map[wire.NodeId]*CapabilityToken
}

// NewTokenStorage constructs an empty TokenStorage.
func NewTokenStorage() *TokenStorage {
	return &TokenStorage{tokens: make(map[wire.NodeId]*CapabilityToken)}
}

// Insert records token, keyed by its issuer's clearnet NodeId. If a token is
// already stored for that issuer with an issued_at at or after token's, the
// insert is a no-op: the latest-issued token always wins (§4.8).
func (s *TokenStorage) Insert(token *CapabilityToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.tokens[token.IssuerClearnetNodeID]
	if ok && existing.IssuedAt >= token.IssuedAt {
		return
	}
	s.tokens[token.IssuerClearnetNodeID] = token
}

// Get returns the stored token for issuer, lazily evicting it first if it
// has expired as of now (§4.8).
func (s *TokenStorage) Get(issuer wire.NodeId, now time.Time) (*CapabilityToken, bool) {
	s.mu.RLock()
	token, ok := s.tokens[issuer]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if now.Unix() > token.ExpiresAt {
		s.mu.Lock()
		if cur, stillThere := s.tokens[issuer]; stillThere && cur == token {
			delete(s.tokens, issuer)
		}
		s.mu.Unlock()
		return nil, false
	}
	return token, true
}

// Len reports the number of stored tokens, expired or not.
func (s *TokenStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
