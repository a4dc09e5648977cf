// Package replay provides an in-process one-time nonce registry with TTL.
// The identity exchange registers a nonce per issued state and consumes it
// on the way back, making each sealed state single-use.
package replay

import (
	"sync"
	"time"
)

// Store holds registered nonces until they are consumed or expire.
type Store struct {
	mu   sync.Mutex
	m    map[string]time.Time
	nowF func() time.Time
}

// NewStore returns an empty replay store.
func NewStore() *Store {
	return &Store{
		m:    make(map[string]time.Time),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Put registers nonce until expiresAt. Expired entries are pruned on the
// way, keeping the map bounded by the number of logins in flight.
func (s *Store) Put(nonce string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowF()
	for n, exp := range s.m {
		if !exp.After(now) {
			delete(s.m, n)
		}
	}
	s.m[nonce] = expiresAt
}

// Consume removes nonce and reports whether it was present and unexpired.
// Each nonce can be consumed exactly once.
func (s *Store) Consume(nonce string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.m[nonce]
	if !ok {
		return false
	}
	delete(s.m, nonce)
	return exp.After(s.nowF())
}
