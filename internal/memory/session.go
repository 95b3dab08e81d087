package memory

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ConversationTurn is a single turn in a session conversation.
type ConversationTurn struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	SQL       string    `json:"sql,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session holds the short-term conversational state for one session. The
// store hands the same *Session to every request carrying its session_id,
// so turn access is guarded by the session's own mutex.
type Session struct {
	SessionID string
	UserID    string
	CreatedAt time.Time

	mu    sync.Mutex
	turns []ConversationTurn
}

// AddTurn appends a turn, evicting the oldest when over maxTurns.
func (s *Session) AddTurn(role, content, sql string, maxTurns int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, ConversationTurn{
		Role:      role,
		Content:   content,
		SQL:       sql,
		Timestamp: time.Now().UTC(),
	})
	if maxTurns > 0 && len(s.turns) > maxTurns {
		s.turns = s.turns[len(s.turns)-maxTurns:]
	}
}

// ContextTurns returns a copy of the last n turns (all turns when n <= 0)
// for injection into the generation prompt.
func (s *Session) ContextTurns(n int) []ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.turns
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]ConversationTurn, len(turns))
	copy(out, turns)
	return out
}

// TurnCount reports the number of retained turns.
func (s *Session) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// SessionStore is the swappable session storage backend. The in-memory
// implementation is the only concrete one today; the boundary stays so a
// Redis-backed store can drop in later.
type SessionStore interface {
	Get(sessionID, userID string) *Session
	Save(session *Session)
	Delete(sessionID string)
}

// InMemorySessionStore keeps sessions in a mutex-guarded map.
type InMemorySessionStore struct {
	mu    sync.Mutex
	store map[string]*Session
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{store: make(map[string]*Session)}
}

// Get retrieves or creates a session.
func (s *InMemorySessionStore) Get(sessionID, userID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.store[sessionID]; ok {
		return sess
	}
	sess := &Session{
		SessionID: sessionID,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	s.store[sessionID] = sess
	log.Debug().Str("session_id", sessionID).Msg("session created")
	return sess
}

func (s *InMemorySessionStore) Save(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[session.SessionID] = session
}

func (s *InMemorySessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, sessionID)
}
