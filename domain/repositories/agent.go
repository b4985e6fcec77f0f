package repositories

import (
	"context"

	"github.com/satriahrh/voicecoach/domain"
)

// AgentDialer opens an authenticated socket to the voice agent
type AgentDialer interface {
	Dial(ctx context.Context, token string) (AgentConn, error)
}

// AgentConn is one live voice agent socket
type AgentConn interface {
	// SendSettings queues the Settings message. Audio is refused until it has
	// been queued so Settings always precedes the first frame on the wire.
	SendSettings(settings domain.Settings) error
	// SendAudio queues one binary PCM frame, returning domain.ErrNotOpen when
	// the socket is not open.
	SendAudio(frame []byte) error
	IsOpen() bool
	// Events is closed when the socket ends.
	Events() <-chan domain.AgentEvent
	// Err blocks until the socket ends. It returns nil for a normal or locally
	// initiated closure, an error wrapping domain.ErrSocketClosedUnexpectedly
	// for an abnormal close code, and the transport error otherwise.
	Err() error
	Close() error
}
