package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// maxMessages bounds the per-session history; older messages fall off.
const maxMessages = 100

// DefaultIdleTTL is how long a session survives without activity.
const DefaultIdleTTL = 30 * time.Minute

// Message is one turn of conversation history.
type Message struct {
	Role    string
	Content string
	At      time.Time
}

// Session is one conversation. Handle one request at a time per session:
// callers take Lock for the duration of a turn.
type Session struct {
	ID string

	mu sync.Mutex

	Ctx        Context
	Title      string
	messages   []Message
	lastActive time.Time
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Append adds a message and trims history to the last maxMessages entries.
// Callers hold the session lock.
func (s *Session) Append(role, content string, at time.Time) {
	s.messages = append(s.messages, Message{Role: role, Content: content, At: at})
	if len(s.messages) > maxMessages {
		s.messages = s.messages[len(s.messages)-maxMessages:]
	}
	s.lastActive = at
}

// Messages returns a copy of the history. Callers hold the session lock.
func (s *Session) Messages() []Message {
	return append([]Message(nil), s.messages...)
}

// Manager hands out sessions by id and expires idle ones.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	idleTTL  time.Duration

	now func() time.Time
}

// NewManager creates a manager; ttl <= 0 uses DefaultIdleTTL.
func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	return &Manager{
		sessions: make(map[string]*Session),
		idleTTL:  ttl,
		now:      time.Now,
	}
}

// Get returns the session for id, creating it if needed. An empty id gets
// a fresh session with a generated id.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	s, ok := m.sessions[id]
	if !ok {
		s = &Session{ID: id, lastActive: m.now()}
		m.sessions[id] = s
	}
	return s
}

// Sweep drops sessions idle past the TTL and reports how many were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.idleTTL)
	removed := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := s.lastActive.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports how many sessions are live.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
