package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/karsk/voicectl/internal/booking"
	"github.com/karsk/voicectl/internal/observability"
	"github.com/karsk/voicectl/internal/skills"
)

var (
	ErrUnknownSession = errors.New("agent: unknown session")
	ErrUnknownSkill   = errors.New("agent: unknown skill")
	ErrSessionEnded   = errors.New("agent: session already ended")
)

// SessionInfo is the read-only view of one session's state.
type SessionInfo struct {
	ID         string    `json:"id"`
	Identified bool      `json:"identified"`
	Turns      int       `json:"turns"`
	Ended      bool      `json:"ended"`
	CreatedAt  time.Time `json:"created_at"`
}

// SessionManager owns the live call sessions and routes skill
// invocations against them. Every invocation is broadcast to the event
// hub before it runs; a session that ends mid-invocation gets its
// conversation summary published exactly once.
type SessionManager struct {
	registry *skills.Registry
	store    *booking.Store
	hub      *EventHub

	mu       sync.RWMutex
	sessions map[string]*skills.Session
	finished map[string]bool
}

// NewSessionManager wires a manager over a skill registry, the booking
// store used for end-of-call summaries, and the event hub.
func NewSessionManager(registry *skills.Registry, store *booking.Store, hub *EventHub) *SessionManager {
	return &SessionManager{
		registry: registry,
		store:    store,
		hub:      hub,
		sessions: make(map[string]*skills.Session),
		finished: make(map[string]bool),
	}
}

// Create starts a fresh session and returns it.
func (m *SessionManager) Create() *skills.Session {
	sess := skills.NewSession(uuid.NewString())
	m.mu.Lock()
	m.sessions[sess.ID()] = sess
	m.mu.Unlock()

	log.Info().Msgf("agent.SessionManager.Create session=%q", sess.ID())
	return sess
}

// Get returns a session by id.
func (m *SessionManager) Get(id string) (*skills.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Count returns the number of known sessions, ended ones included.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Info returns the read-only view of one session.
func (m *SessionManager) Info(id string) (SessionInfo, bool) {
	sess, ok := m.Get(id)
	if !ok {
		return SessionInfo{}, false
	}
	return sessionInfo(sess), true
}

// ListInfo returns every session ordered by creation time, then id.
func (m *SessionManager) ListInfo() []SessionInfo {
	m.mu.RLock()
	list := make([]*skills.Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		list = append(list, sess)
	}
	m.mu.RUnlock()

	out := make([]SessionInfo, 0, len(list))
	for _, sess := range list {
		out = append(out, sessionInfo(sess))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Invoke runs one skill operation against a session. The tool_call
// event is published before the skill runs; both sides of the exchange
// are appended to the session transcript.
func (m *SessionManager) Invoke(ctx context.Context, sessionID, skillID, op string, args map[string]string) (skills.SkillResult, error) {
	sess, ok := m.Get(sessionID)
	if !ok {
		return skills.SkillResult{}, fmt.Errorf("%w: %q", ErrUnknownSession, sessionID)
	}
	if sess.Ended() {
		return skills.SkillResult{}, fmt.Errorf("%w: %q", ErrSessionEnded, sessionID)
	}
	skill, ok := m.registry.Resolve(skillID)
	if !ok {
		return skills.SkillResult{}, fmt.Errorf("%w: %q", ErrUnknownSkill, skillID)
	}

	m.hub.Publish(Event{
		Type:    EventToolCall,
		Session: sessionID,
		Tool:    skillID + "/" + op,
		Args:    args,
	})
	sess.AppendTurn("caller", requestLine(op, args))

	res, err := skill.Invoke(ctx, sess, op, args)

	status := strings.TrimSpace(res.Status)
	if status == "" {
		status = "error"
	}
	observability.RecordSkillInvocation(skillID, op, status)
	if err != nil {
		log.Warn().Msgf("agent.SessionManager.Invoke session=%q skill=%q op=%q err=%v", sessionID, skillID, op, err)
	}

	// The summary is built before the closing line lands in the
	// transcript, so it covers the conversation and not the goodbye.
	if sess.Ended() {
		m.finishSession(ctx, sess)
	}
	if res.Response != "" {
		sess.AppendTurn("agent", res.Response)
	}
	return res, err
}

func (m *SessionManager) finishSession(ctx context.Context, sess *skills.Session) {
	m.mu.Lock()
	already := m.finished[sess.ID()]
	m.finished[sess.ID()] = true
	m.mu.Unlock()
	if already {
		return
	}

	summary := conversationSummary(sess.History())
	var appointments []string
	if sess.Identified() {
		list, err := m.store.AppointmentsByContact(ctx, sess.Contact())
		if err != nil {
			log.Warn().Msgf("agent.SessionManager.finishSession appointments session=%q err=%v", sess.ID(), err)
		}
		for _, appt := range list {
			if appt.Status != booking.StatusConfirmed {
				continue
			}
			appointments = append(appointments, fmt.Sprintf("%s - %s (%s)", appt.SlotTime, appt.Details, appt.Status))
		}
	}

	m.hub.Publish(Event{
		Type:         EventConversationSummary,
		Session:      sess.ID(),
		Summary:      summary,
		Appointments: appointments,
		UserContact:  sess.Contact(),
	})
	log.Info().Msgf("agent.SessionManager.finishSession session=%q turns=%d appointments=%d",
		sess.ID(), sess.TurnCount(), len(appointments))
}

func sessionInfo(sess *skills.Session) SessionInfo {
	return SessionInfo{
		ID:         sess.ID(),
		Identified: sess.Identified(),
		Turns:      sess.TurnCount(),
		Ended:      sess.Ended(),
		CreatedAt:  sess.CreatedAt(),
	}
}

func requestLine(op string, args map[string]string) string {
	if len(args) == 0 {
		return op
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(op)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, args[k])
	}
	return b.String()
}
