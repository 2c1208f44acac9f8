// Package chat implements the conversational retrieval engine: per-session
// history, query reformulation, similarity retrieval and grounded generation.
package chat

import (
	"sync"
	"time"

	"docchat-backend/models"
)

type session struct {
	mu         sync.Mutex
	history    []models.ChatTurn
	lastActive time.Time
}

// SessionStore holds live conversation state keyed by session ID. Sessions
// are created lazily on first use; each one serializes its own turns so two
// concurrent requests for the same ID cannot interleave history writes.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*session)}
}

func (s *SessionStore) get(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{}
		s.sessions[id] = sess
	}
	sess.lastActive = time.Now()
	return sess
}

// Do runs fn while holding the session's turn lock. The history passed to fn
// is a copy; mutations only land through the returned append function, which
// fn calls once the turn has fully succeeded.
func (s *SessionStore) Do(id string, fn func(history []models.ChatTurn, appendExchange func(user, assistant string)) error) error {
	sess := s.get(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	snapshot := make([]models.ChatTurn, len(sess.history))
	copy(snapshot, sess.history)

	return fn(snapshot, func(user, assistant string) {
		now := time.Now()
		sess.history = append(sess.history,
			models.ChatTurn{Role: models.RoleUser, Content: user, Timestamp: now},
			models.ChatTurn{Role: models.RoleAssistant, Content: assistant, Timestamp: now},
		)
	})
}

// History returns a copy of the session's history, or nil for an unknown ID.
func (s *SessionStore) History(id string) []models.ChatTurn {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make([]models.ChatTurn, len(sess.history))
	copy(out, sess.history)
	return out
}

// ExpireIdle drops sessions idle for longer than timeout and returns how
// many were removed. The janitor calls this periodically.
func (s *SessionStore) ExpireIdle(timeout time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-timeout)
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastActive.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
