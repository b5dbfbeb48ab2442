package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a volatile Store implementation keeping sessions and
// messages in process-local maps. It is safe for concurrent access and best
// suited for tests or ephemeral demo servers. Returned sessions are copies to
// prevent external mutation of internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	messages map[string][]Message // sessionID -> ordered messages
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*Session),
		messages: make(map[string][]Message),
	}
}

// CreateSession allocates a new session with zeroed totals.
func (s *InMemoryStore) CreateSession(_ context.Context, title string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	sess := &Session{ID: uuid.NewString(), Title: title, CreatedAt: now, UpdatedAt: now}
	s.sessions[sess.ID] = sess
	cp := *sess
	return &cp, nil
}

// GetSession returns a copy of the session or ErrNotFound.
func (s *InMemoryStore) GetSession(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

// ListSessions returns all sessions ordered by most recently updated first.
func (s *InMemoryStore) ListSessions(_ context.Context) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// DeleteSession removes a session and its messages. Absent ids are ignored.
func (s *InMemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	delete(s.messages, id)
	return nil
}

// AppendMessage stores a message, generating an id when the caller left it empty.
func (s *InMemoryStore) AppendMessage(_ context.Context, msg Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[msg.SessionID]; !ok {
		return "", ErrNotFound
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)
	s.sessions[msg.SessionID].UpdatedAt = time.Now().UTC()
	return msg.ID, nil
}

// ListMessages returns a copy of the session's messages in creation order.
func (s *InMemoryStore) ListMessages(_ context.Context, sessionID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[sessionID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// AddUsage increments the session totals under the store lock, which makes the
// update atomic with respect to concurrent turns on the same session.
func (s *InMemoryStore) AddUsage(_ context.Context, sessionID string, inputTokens, outputTokens int64, costUsd float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	sess.TotalInputTokens += inputTokens
	sess.TotalOutputTokens += outputTokens
	sess.TotalCostUsd += costUsd
	sess.UpdatedAt = time.Now().UTC()
	return nil
}
