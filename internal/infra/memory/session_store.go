package memory

import (
	"context"
	"sync"
	"time"

	"quizhost/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu        sync.RWMutex
	sessions  map[string]storedSession
	lastSweep time.Time
}

type storedSession struct {
	session   domain.Session
	expiresAt time.Time
}

// NewSessionStore keeps sessions for ttl after their last save; ttl <= 0 means forever.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]storedSession),
	}
}

func (s *SessionStore) Get(_ context.Context, id string) (domain.Session, bool, error) {
	s.mu.RLock()
	stored, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return domain.Session{}, false, nil
	}
	if !stored.expiresAt.IsZero() && !stored.expiresAt.After(s.clock()) {
		s.mu.Lock()
		if current, ok := s.sessions[id]; ok && current.expiresAt.Equal(stored.expiresAt) {
			delete(s.sessions, id)
		}
		s.mu.Unlock()
		return domain.Session{}, false, nil
	}
	return copySession(stored.session), true, nil
}

func (s *SessionStore) Save(_ context.Context, id string, sess domain.Session) error {
	now := s.clock()
	stored := storedSession{session: copySession(sess)}
	if s.ttl > 0 {
		stored.expiresAt = now.Add(s.ttl)
	}
	s.mu.Lock()
	s.sessions[id] = stored
	if s.ttl > 0 && now.Sub(s.lastSweep) >= s.ttl {
		s.sweepLocked(now)
	}
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// sweepLocked drops sessions that expired without being read again.
// Save runs it at most once per ttl.
func (s *SessionStore) sweepLocked(now time.Time) {
	for id, stored := range s.sessions {
		if !stored.expiresAt.After(now) {
			delete(s.sessions, id)
		}
	}
	s.lastSweep = now
}

func copySession(sess domain.Session) domain.Session {
	if sess.Flashes != nil {
		sess.Flashes = append([]domain.Flash(nil), sess.Flashes...)
	}
	return sess
}
