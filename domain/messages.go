package domain

// Settings is the first text message sent after the agent socket opens.
// It declares the audio formats on both directions and the agent pipeline.
type Settings struct {
	Type  string        `json:"type"`
	Audio AudioSettings `json:"audio"`
	Agent AgentSettings `json:"agent"`
}

type AudioSettings struct {
	Input  AudioInput  `json:"input"`
	Output AudioOutput `json:"output"`
}

type AudioInput struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type AudioOutput struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
	Container  string `json:"container"`
}

type AgentSettings struct {
	Listen   ListenSettings `json:"listen"`
	Think    ThinkSettings  `json:"think"`
	Speak    SpeakSettings  `json:"speak"`
	Greeting string         `json:"greeting,omitempty"`
}

type Provider struct {
	Type  string `json:"type"`
	Model string `json:"model"`
}

type ListenSettings struct {
	Provider Provider `json:"provider"`
}

type ThinkSettings struct {
	Provider Provider `json:"provider"`
	Prompt   string   `json:"prompt"`
}

type SpeakSettings struct {
	Provider Provider `json:"provider"`
}

// Agent message type tags
const (
	MessageTypeSettings             = "Settings"
	MessageTypeWelcome              = "Welcome"
	MessageTypeSettingsApplied      = "SettingsApplied"
	MessageTypeUserStartedSpeaking  = "UserStartedSpeaking"
	MessageTypeAgentThinking        = "AgentThinking"
	MessageTypeAgentStartedSpeaking = "AgentStartedSpeaking"
	MessageTypeAgentAudioDone       = "AgentAudioDone"
	MessageTypeConversationText     = "ConversationText"
	MessageTypeHistory              = "History"
	MessageTypeAudio                = "Audio"
	MessageTypeWarning              = "Warning"
	MessageTypeError                = "Error"
)

// AgentEvent is one decoded message received from the agent socket.
// Binary frames decode to AudioEvent, text frames to one of the typed events
// below, and anything unrecognised to UnknownEvent.
type AgentEvent interface {
	EventType() string
}

type WelcomeEvent struct {
	RequestID string `json:"request_id"`
}

type SettingsAppliedEvent struct{}

type UserStartedSpeakingEvent struct{}

type AgentThinkingEvent struct {
	Content string `json:"content"`
}

type AgentStartedSpeakingEvent struct {
	TotalLatency float64 `json:"total_latency"`
	TTSLatency   float64 `json:"tts_latency"`
	TTTLatency   float64 `json:"ttt_latency"`
}

type AgentAudioDoneEvent struct{}

// ConversationTextEvent carries one transcript line, role is "user" or "assistant"
type ConversationTextEvent struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type HistoryEvent struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type WarningEvent struct {
	Description string `json:"description"`
	Code        string `json:"code"`
}

// ErrorEvent is an error reported by the agent. The text may arrive in any of
// the three fields depending on the agent version.
type ErrorEvent struct {
	Description string `json:"description"`
	Code        string `json:"code"`
	ErrorText   string `json:"error"`
	Message     string `json:"message"`
}

// Text returns the first non-empty description the agent supplied
func (e ErrorEvent) Text() string {
	switch {
	case e.Description != "":
		return e.Description
	case e.ErrorText != "":
		return e.ErrorText
	case e.Message != "":
		return e.Message
	default:
		return "unknown agent error"
	}
}

// AudioEvent carries raw linear16 little-endian PCM at the output sample rate
type AudioEvent struct {
	Data []byte
}

// UnknownEvent is any text message whose type is not recognised
type UnknownEvent struct {
	Type string
	Raw  []byte
}

func (WelcomeEvent) EventType() string              { return MessageTypeWelcome }
func (SettingsAppliedEvent) EventType() string      { return MessageTypeSettingsApplied }
func (UserStartedSpeakingEvent) EventType() string  { return MessageTypeUserStartedSpeaking }
func (AgentThinkingEvent) EventType() string        { return MessageTypeAgentThinking }
func (AgentStartedSpeakingEvent) EventType() string { return MessageTypeAgentStartedSpeaking }
func (AgentAudioDoneEvent) EventType() string       { return MessageTypeAgentAudioDone }
func (ConversationTextEvent) EventType() string     { return MessageTypeConversationText }
func (HistoryEvent) EventType() string              { return MessageTypeHistory }
func (WarningEvent) EventType() string              { return MessageTypeWarning }
func (ErrorEvent) EventType() string                { return MessageTypeError }
func (AudioEvent) EventType() string                { return MessageTypeAudio }
func (e UnknownEvent) EventType() string            { return e.Type }
