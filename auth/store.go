package auth

import "sync"

// Store holds the current Token for one client. It does no validation and no
// I/O; the session manager decides what goes in it. Readers always observe a
// whole Token because tokens are swapped by pointer and never mutated.
type Store struct {
	mu    sync.RWMutex
	token *Token
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{}
}

// Get returns the current token, or nil when none is held
func (s *Store) Get() *Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set replaces the current token
func (s *Store) Set(token *Token) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Clear drops the current token
func (s *Store) Clear() {
	s.Set(nil)
}

// CompareAndSwap replaces the token only if the store still holds old.
// Returns false when another writer got there first.
func (s *Store) CompareAndSwap(old, new *Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != old {
		return false
	}
	s.token = new
	return true
}
