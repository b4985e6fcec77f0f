package agent

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/satriahrh/voicecoach/domain"
)

type envelope struct {
	Type string `json:"type"`
}

type legacyAudioMessage struct {
	Data string `json:"data"`
}

// wavHeaderSize is the canonical RIFF/WAVE header length in front of PCM data
const wavHeaderSize = 44

// DecodeMessage decodes a text frame from the agent into a typed event.
// Messages with an unrecognised type decode to domain.UnknownEvent; only
// malformed JSON is an error.
func DecodeMessage(data []byte) (domain.AgentEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse agent message: %w", err)
	}

	var (
		event domain.AgentEvent
		err   error
	)
	switch env.Type {
	case domain.MessageTypeWelcome:
		event, err = decodeInto[domain.WelcomeEvent](data)
	case domain.MessageTypeSettingsApplied:
		event = domain.SettingsAppliedEvent{}
	case domain.MessageTypeUserStartedSpeaking:
		event = domain.UserStartedSpeakingEvent{}
	case domain.MessageTypeAgentThinking:
		event, err = decodeInto[domain.AgentThinkingEvent](data)
	case domain.MessageTypeAgentStartedSpeaking:
		event, err = decodeInto[domain.AgentStartedSpeakingEvent](data)
	case domain.MessageTypeAgentAudioDone:
		event = domain.AgentAudioDoneEvent{}
	case domain.MessageTypeConversationText:
		event, err = decodeInto[domain.ConversationTextEvent](data)
	case domain.MessageTypeHistory:
		event, err = decodeInto[domain.HistoryEvent](data)
	case domain.MessageTypeWarning:
		event, err = decodeInto[domain.WarningEvent](data)
	case domain.MessageTypeError:
		event, err = decodeInto[domain.ErrorEvent](data)
	case domain.MessageTypeAudio:
		event, err = decodeLegacyAudio(data)
	default:
		raw := make([]byte, len(data))
		copy(raw, data)
		event = domain.UnknownEvent{Type: env.Type, Raw: raw}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s message: %w", env.Type, err)
	}
	return event, nil
}

func decodeInto[T domain.AgentEvent](data []byte) (domain.AgentEvent, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeLegacyAudio handles the older JSON audio message carrying base64
// audio, optionally wrapped in a WAV container.
func decodeLegacyAudio(data []byte) (domain.AgentEvent, error) {
	var msg legacyAudioMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	pcm, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		return nil, err
	}
	if len(pcm) >= wavHeaderSize && string(pcm[0:4]) == "RIFF" && string(pcm[8:12]) == "WAVE" {
		pcm = pcm[wavHeaderSize:]
	}
	return domain.AudioEvent{Data: pcm}, nil
}
