package orchestrator

import (
	"sync"
	"time"

	"github.com/teslashibe/voiceflow/pkg/agent"
)

// EventType identifies an Event.
type EventType string

const (
	EventStatus       EventType = "status"
	EventTurn         EventType = "turn"
	EventError        EventType = "error"
	EventAgent        EventType = "agent"
	EventGrounding    EventType = "grounding"
	EventConversation EventType = "conversation"
)

// Event is a session change pushed to listeners in the order it happened.
type Event struct {
	Type      EventType       `json:"type"`
	At        time.Time       `json:"at"`
	Status    Status          `json:"status,omitempty"`
	Turn      *Turn           `json:"turn,omitempty"`
	Error     *Notification   `json:"error,omitempty"`
	Agent     *agent.Profile  `json:"agent,omitempty"`
	Grounding *GroundingState `json:"grounding,omitempty"`
	AgentID   agent.ID        `json:"agent_id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
}

// listeners fans events out to subscribers.
type listeners struct {
	mu   sync.RWMutex
	next int
	fns  map[int]func(Event)
}

func (l *listeners) add(fn func(Event)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fns == nil {
		l.fns = make(map[int]func(Event))
	}
	id := l.next
	l.next++
	l.fns[id] = fn

	return func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}
}

func (l *listeners) dispatch(ev Event) {
	l.mu.RLock()
	fns := make([]func(Event), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
