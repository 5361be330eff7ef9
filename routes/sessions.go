package routes

import (
	"log/slog"
	"sync"

	"backend/trips"
)

// SessionStore holds the active planning conversations, one session
// per conversation.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*trips.Session
	planner  trips.Planner
	log      *slog.Logger
}

// NewSessionStore builds an empty store over the given provider.
func NewSessionStore(planner trips.Planner, log *slog.Logger) *SessionStore {
	if log == nil {
		log = slog.Default()
	}
	return &SessionStore{
		sessions: map[string]*trips.Session{},
		planner:  planner,
		log:      log,
	}
}

// Get looks up a session by id.
func (s *SessionStore) Get(id string) (*trips.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	return session, ok
}

// Create starts a new planning conversation.
func (s *SessionStore) Create() *trips.Session {
	session := trips.NewSession(s.planner, s.log)
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return session
}

// Remove closes and drops a session, tearing down any standing
// subscriptions it holds.
func (s *SessionStore) Remove(id string) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		session.Close()
	}
}
