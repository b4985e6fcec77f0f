package entities

import (
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/voicecoach/domain"
)

// ConnectionStatus represents the lifecycle state of the agent connection
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
)

// MicStatus is the conversational turn indicator shown to the user
type MicStatus string

const (
	MicInactive   MicStatus = "inactive"
	MicListening  MicStatus = "listening"
	MicProcessing MicStatus = "processing"
	MicSpeaking   MicStatus = "speaking"
)

// MessageRole represents the role of a transcript line speaker
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// TranscriptLine is one finalised utterance reported by the agent
type TranscriptLine struct {
	Timestamp time.Time   `json:"timestamp"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
}

// Session is the user-visible state of one coaching conversation
type Session struct {
	ID          string               `json:"id"`
	PersonaID   string               `json:"persona_id"`
	Status      ConnectionStatus     `json:"status"`
	Mic         MicStatus            `json:"mic"`
	LastError   *domain.SessionError `json:"-"`
	Transcript  []TranscriptLine     `json:"transcript"`
	StartedAt   *time.Time           `json:"started_at,omitempty"`
	ConnectedAt *time.Time           `json:"connected_at,omitempty"`
}

// NewSession creates an idle session for the given persona
func NewSession(personaID string) *Session {
	return &Session{
		PersonaID:  personaID,
		Status:     StatusDisconnected,
		Mic:        MicInactive,
		Transcript: make([]TranscriptLine, 0),
	}
}

// CanConnect reports whether a connect attempt may start from the current state
func (s *Session) CanConnect() bool {
	return s.Status == StatusDisconnected || s.Status == StatusError
}

// BeginConnect moves the session into connecting under a fresh id
func (s *Session) BeginConnect() error {
	if !s.CanConnect() {
		return domain.ErrInvalidTransition
	}

	now := time.Now()
	s.ID = uuid.NewString()
	s.Status = StatusConnecting
	s.Mic = MicInactive
	s.LastError = nil
	s.Transcript = make([]TranscriptLine, 0)
	s.StartedAt = &now
	s.ConnectedAt = nil
	return nil
}

// MarkConnected completes a connect attempt
func (s *Session) MarkConnected() error {
	if s.Status != StatusConnecting {
		return domain.ErrInvalidTransition
	}

	now := time.Now()
	s.Status = StatusConnected
	s.Mic = MicListening
	s.ConnectedAt = &now
	return nil
}

// MarkDisconnected is valid from any state
func (s *Session) MarkDisconnected() {
	s.Status = StatusDisconnected
	s.Mic = MicInactive
}

// Fail records err and moves the session to the error state
func (s *Session) Fail(err *domain.SessionError) {
	s.Status = StatusError
	s.Mic = MicInactive
	s.LastError = err
}

// ReportError records an error without changing the connection status
func (s *Session) ReportError(err *domain.SessionError) {
	s.LastError = err
}

// SetMic updates the mic indicator while connected and reports whether it changed
func (s *Session) SetMic(m MicStatus) bool {
	if s.Status != StatusConnected || s.Mic == m {
		return false
	}
	s.Mic = m
	return true
}

// AddTranscript appends a transcript line
func (s *Session) AddTranscript(role MessageRole, content string) {
	s.Transcript = append(s.Transcript, TranscriptLine{
		Timestamp: time.Now(),
		Role:      role,
		Content:   content,
	})
}

// Clone returns a copy safe to hand to another goroutine
func (s *Session) Clone() Session {
	c := *s
	c.Transcript = make([]TranscriptLine, len(s.Transcript))
	copy(c.Transcript, s.Transcript)
	return c
}
