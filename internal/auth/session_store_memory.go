package auth

import (
	"context"
	"sort"
	"sync"
)

// InMemorySessionStore keeps refresh sessions in process memory, indexed by
// token and by account. It is used by tests and single-instance local runs.
type InMemorySessionStore struct {
	mu        sync.RWMutex
	byToken   map[string]Session
	byAccount map[string]map[string]struct{}
}

// NewInMemorySessionStore returns an empty store.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		byToken:   make(map[string]Session),
		byAccount: make(map[string]map[string]struct{}),
	}
}

func (s *InMemorySessionStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if previous, ok := s.byToken[session.RefreshToken]; ok {
		s.unindexLocked(previous)
	}
	s.byToken[session.RefreshToken] = session
	tokens := s.byAccount[session.AccountID]
	if tokens == nil {
		tokens = make(map[string]struct{})
		s.byAccount[session.AccountID] = tokens
	}
	tokens[session.RefreshToken] = struct{}{}
	return nil
}

func (s *InMemorySessionStore) Find(_ context.Context, refreshToken string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.byToken[refreshToken]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byToken[refreshToken]
	if !ok {
		return ErrSessionNotFound
	}
	delete(s.byToken, refreshToken)
	s.unindexLocked(session)
	return nil
}

// Has reports whether a refresh token is stored.
func (s *InMemorySessionStore) Has(refreshToken string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byToken[refreshToken]
	return ok
}

// ForAccount lists the account's sessions, soonest expiry first.
func (s *InMemorySessionStore) ForAccount(accountID string) []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]Session, 0, len(s.byAccount[accountID]))
	for token := range s.byAccount[accountID] {
		sessions = append(sessions, s.byToken[token])
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ExpiresAt.Before(sessions[j].ExpiresAt)
	})
	return sessions
}

func (s *InMemorySessionStore) unindexLocked(session Session) {
	tokens := s.byAccount[session.AccountID]
	delete(tokens, session.RefreshToken)
	if len(tokens) == 0 {
		delete(s.byAccount, session.AccountID)
	}
}
