// Package hub provides fan-out of live session progress events to
// subscribers (WebSocket clients on the events endpoint).
package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/xqin1/pipeflow/internal/domain"
)

// Event is a single progress event for a session.
type Event struct {
	Type       domain.EventType     `json:"type"`
	SessionID  string               `json:"session_id"`
	WorkflowID string               `json:"workflow_id,omitempty"`
	AgentID    string               `json:"agent_id,omitempty"`
	Stage      int                  `json:"stage,omitempty"`
	Status     domain.SessionStatus `json:"status,omitempty"`
	Error      string               `json:"error,omitempty"`
	Ts         int64                `json:"ts"` // Unix milliseconds
}

type subscriber struct {
	sessionID string
	ch        chan []byte
}

// Hub manages session event subscriptions. Publishing never blocks: a
// subscriber that cannot keep up has events dropped.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]bool
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[*subscriber]bool)}
}

// Subscribe registers interest in one session's events. The returned
// cancel function must be called when the subscriber goes away.
func (h *Hub) Subscribe(sessionID string) (<-chan []byte, func()) {
	sub := &subscriber{
		sessionID: sessionID,
		ch:        make(chan []byte, 64),
	}
	h.mu.Lock()
	h.subscribers[sub] = true
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if h.subscribers[sub] {
			delete(h.subscribers, sub)
			close(sub.ch)
		}
		h.mu.Unlock()
	}
	return sub.ch, cancel
}

// Publish delivers an event to every subscriber of its session.
func (h *Hub) Publish(event Event) {
	if event.Ts == 0 {
		event.Ts = time.Now().UnixMilli()
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("ERROR: failed to encode hub event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		if sub.sessionID != event.SessionID {
			continue
		}
		select {
		case sub.ch <- data:
		default:
			log.Printf("WARN: dropping event for slow subscriber on session %s", event.SessionID)
		}
	}
}

// SubscriberCount returns the number of active subscribers for a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for sub := range h.subscribers {
		if sub.sessionID == sessionID {
			n++
		}
	}
	return n
}
