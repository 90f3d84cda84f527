package orchestrator

import (
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/voiceflow/pkg/agent"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// Turn is one transcript entry. Turns are never changed once appended.
type Turn struct {
	ID      string    `json:"id"`
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	Agent   agent.ID  `json:"agent,omitempty"`
	At      time.Time `json:"at"`
}

// GroundingState describes an agent's grounding slots without the
// document bytes.
type GroundingState struct {
	Text         string            `json:"text"`
	HasDocument  bool              `json:"has_document"`
	DocumentSize int               `json:"document_size"`
	Active       agent.PayloadKind `json:"active,omitempty"`
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	SessionID   string                      `json:"session_id"`
	Status      Status                      `json:"status"`
	ActiveAgent agent.Profile               `json:"active_agent"`
	Transcript  []Turn                      `json:"transcript"`
	Grounding   map[agent.ID]GroundingState `json:"grounding"`
	LastError   *Notification               `json:"last_error,omitempty"`
}

// session is owned by the event loop.
type session struct {
	id         string
	status     Status
	transcript []Turn
	active     agent.Profile
	grounding  map[agent.ID]agent.Grounding
	lastError  *Notification
}

func newSession(registry *agent.Registry) *session {
	s := &session{
		id:        uuid.NewString(),
		status:    StatusIdle,
		grounding: make(map[agent.ID]agent.Grounding),
	}
	s.active, _ = registry.First()
	for _, p := range registry.List() {
		if p.DefaultGrounding != "" {
			s.grounding[p.ID] = agent.Grounding{}.Set(p.DefaultGrounding)
		}
	}
	return s
}

func (s *session) appendTurn(speaker Speaker, text string) Turn {
	t := Turn{
		ID:      uuid.NewString(),
		Speaker: speaker,
		Text:    text,
		At:      time.Now(),
	}
	if speaker == SpeakerAgent {
		t.Agent = s.active.ID
	}
	s.transcript = append(s.transcript, t)
	return t
}

func (s *session) snapshot(registry *agent.Registry) Snapshot {
	snap := Snapshot{
		SessionID:   s.id,
		Status:      s.status,
		ActiveAgent: s.active,
		Transcript:  append([]Turn{}, s.transcript...),
		Grounding:   make(map[agent.ID]GroundingState),
	}
	if s.lastError != nil {
		n := *s.lastError
		snap.LastError = &n
	}

	for _, p := range registry.List() {
		if !p.RequiresGrounding() {
			continue
		}
		g := s.grounding[p.ID]
		st := GroundingState{
			Text:         g.Text,
			HasDocument:  g.HasDocument(),
			DocumentSize: len(g.Document),
		}
		if payload, err := agent.Resolve(p, g); err == nil {
			st.Active = payload.Kind
		}
		snap.Grounding[p.ID] = st
	}
	return snap
}
