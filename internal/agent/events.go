package agent

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	EventToolCall            = "tool_call"
	EventConversationSummary = "conversation_summary"
)

const (
	eventRetainLimit = 256
	subscriberBuffer = 16
)

// Event is one worker broadcast frame. Type selects which of the
// optional fields carry data.
type Event struct {
	Type         string            `json:"type"`
	Session      string            `json:"session,omitempty"`
	Tool         string            `json:"tool,omitempty"`
	Args         map[string]string `json:"args,omitempty"`
	Summary      string            `json:"summary,omitempty"`
	Appointments []string          `json:"appointments,omitempty"`
	UserContact  string            `json:"user_contact,omitempty"`
	TimestampMS  uint64            `json:"timestamp_ms"`
}

// EventHub fans worker events out to subscribers and retains a bounded
// tail for late readers. A subscriber that stops draining its channel
// is dropped rather than allowed to stall publishers.
type EventHub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan Event
	recent []Event
	closed bool
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[uint64]chan Event)}
}

// Publish delivers evt to every live subscriber without blocking.
func (h *EventHub) Publish(evt Event) {
	if evt.TimestampMS == 0 {
		evt.TimestampMS = uint64(time.Now().UnixMilli())
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	h.recent = append(h.recent, evt)
	if len(h.recent) > eventRetainLimit {
		h.recent = h.recent[len(h.recent)-eventRetainLimit:]
	}

	for id, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			delete(h.subs, id)
			close(ch)
			log.Warn().Msgf("agent.EventHub.Publish dropped slow subscriber id=%d", id)
		}
	}
}

// Subscribe registers a new subscriber. The channel is closed when the
// subscriber is dropped, unsubscribed, or the hub shuts down.
func (h *EventHub) Subscribe() (uint64, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan Event, subscriberBuffer)
	if h.closed {
		close(ch)
		return id, ch
	}
	h.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *EventHub) Unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(ch)
}

// Recent returns a copy of the retained event tail in publish order.
func (h *EventHub) Recent() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, len(h.recent))
	copy(out, h.recent)
	return out
}

// SubscriberCount returns the number of live subscribers.
func (h *EventHub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close drops all subscribers and rejects further publishes.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
