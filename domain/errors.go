package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the user-facing category of a session failure
type ErrorKind string

const (
	KindCredentialFetchFailed    ErrorKind = "credential-fetch-failed"
	KindMicrophonePermission     ErrorKind = "microphone-permission-denied"
	KindMicrophoneNotFound       ErrorKind = "microphone-not-found"
	KindMicrophoneOther          ErrorKind = "microphone-other-failure"
	KindAudioOutputFailed        ErrorKind = "audio-output-failed"
	KindSocketError              ErrorKind = "socket-error"
	KindSocketClosedUnexpectedly ErrorKind = "socket-closed-unexpectedly"
	KindAgentReportedError       ErrorKind = "agent-reported-error"
)

// Sentinel errors shared between adapters and the session controller
var (
	ErrMicrophonePermissionDenied = errors.New("microphone permission denied")
	ErrMicrophoneNotFound         = errors.New("no microphone found")
	ErrServerMisconfigured        = errors.New("credential server misconfigured")
	ErrNetworkFailure             = errors.New("credential request failed")
	ErrCredentialRejected         = errors.New("credential request rejected")
	ErrInvalidTransition          = errors.New("invalid session state transition")
	ErrNotOpen                    = errors.New("agent connection not open")
	ErrSocketClosedUnexpectedly   = errors.New("agent socket closed unexpectedly")
	ErrSessionCancelled           = errors.New("session cancelled")
)

// SessionError is the error surfaced to the user when a session fails
type SessionError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// NewSessionError builds a SessionError with the default message for kind
func NewSessionError(kind ErrorKind, err error) *SessionError {
	return &SessionError{Kind: kind, Message: DefaultMessage(kind), Err: err}
}

// DefaultMessage returns the human readable text shown for kind
func DefaultMessage(kind ErrorKind) string {
	switch kind {
	case KindCredentialFetchFailed:
		return "Could not get a voice agent credential. Check the token service."
	case KindMicrophonePermission:
		return "Microphone access was denied. Allow microphone access and try again."
	case KindMicrophoneNotFound:
		return "No microphone was found. Connect a microphone and try again."
	case KindMicrophoneOther:
		return "The microphone could not be started."
	case KindAudioOutputFailed:
		return "The audio output device could not be started."
	case KindSocketError:
		return "Connection error"
	case KindSocketClosedUnexpectedly:
		return "The voice agent connection closed unexpectedly."
	case KindAgentReportedError:
		return "The voice agent reported an error."
	default:
		return "Unknown error"
	}
}
