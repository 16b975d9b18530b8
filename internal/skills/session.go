package skills

import (
	"strings"
	"sync"
	"time"
)

// Turn is one utterance recorded against a session transcript.
type Turn struct {
	Role string
	Text string
	At   time.Time
}

// Session is the mutable per-call state shared by every skill invocation.
// All methods are safe for concurrent use.
type Session struct {
	mu        sync.RWMutex
	id        string
	contact   string
	userName  string
	turns     []Turn
	ended     bool
	createdAt time.Time
}

// NewSession returns an empty session for the given identifier.
func NewSession(id string) *Session {
	return &Session{
		id:        id,
		createdAt: time.Now().UTC(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Identify records the caller's contact number and optional name.
func (s *Session) Identify(contact, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contact = strings.TrimSpace(contact)
	if n := strings.TrimSpace(name); n != "" {
		s.userName = n
	}
}

// Identified reports whether the caller has provided a contact number.
func (s *Session) Identified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contact != ""
}

// Contact returns the caller's contact number, empty until identified.
func (s *Session) Contact() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contact
}

// UserName returns the caller's name, empty when never provided.
func (s *Session) UserName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userName
}

// AppendTurn records one transcript line.
func (s *Session) AppendTurn(role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Role: role, Text: text, At: time.Now().UTC()})
}

// History returns a copy of the transcript in arrival order.
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// TurnCount returns the number of recorded transcript lines.
func (s *Session) TurnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// MarkEnded flags the session as finished. Idempotent.
func (s *Session) MarkEnded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

// Ended reports whether the session has been marked finished.
func (s *Session) Ended() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ended
}
