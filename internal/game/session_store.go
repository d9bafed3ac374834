package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStore holds the live sessions of this process.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[uuid.UUID]*Session),
	}
}

func (s *SessionStore) AddSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

func (s *SessionStore) GetSession(id uuid.UUID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, exists := s.sessions[id]
	return sess, exists
}

// DeleteSession removes a session and stops its timer.
func (s *SessionStore) DeleteSession(id uuid.UUID) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		sess.Close()
	}
}

// GetSessionsByOwner returns every session created by ownerID.
func (s *SessionStore) GetSessionsByOwner(ownerID uuid.UUID) []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Session
	for _, sess := range s.sessions {
		if sess.OwnerID == ownerID {
			out = append(out, sess)
		}
	}
	return out
}

// PruneIdle closes and removes sessions that have not seen a command for maxIdle.
// It returns how many were removed.
func (s *SessionStore) PruneIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	s.mu.Lock()
	var stale []*Session
	for id, sess := range s.sessions {
		if sess.LastSeen().Before(cutoff) {
			stale = append(stale, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
	for _, sess := range stale {
		sess.Close()
	}
	return len(stale)
}
