package usecase

import (
	"github.com/satriahrh/voicecoach/domain"
	"github.com/satriahrh/voicecoach/domain/entities"
	"github.com/satriahrh/voicecoach/internal/audio"
)

const speechProvider = "deepgram"

// AgentConfig is the audio and pipeline configuration declared to the agent
type AgentConfig struct {
	InputSampleRate       int
	OutputSampleRate      int
	FrameSamples          int
	PlaybackBufferSamples int

	ListenModel   string
	ThinkProvider string
	ThinkModel    string
	Greeting      string
}

func (c AgentConfig) withDefaults() AgentConfig {
	if c.InputSampleRate <= 0 {
		c.InputSampleRate = audio.DefaultInputSampleRate
	}
	if c.OutputSampleRate <= 0 {
		c.OutputSampleRate = audio.DefaultOutputSampleRate
	}
	if c.FrameSamples <= 0 {
		c.FrameSamples = audio.DefaultFrameSamples
	}
	if c.PlaybackBufferSamples <= 0 {
		c.PlaybackBufferSamples = 60 * c.OutputSampleRate
	}
	return c
}

// BuildSettings assembles the Settings message for a persona. The declared
// sample rates are the ones the audio devices were opened at.
func BuildSettings(cfg AgentConfig, p entities.Persona) domain.Settings {
	cfg = cfg.withDefaults()
	return domain.Settings{
		Type: domain.MessageTypeSettings,
		Audio: domain.AudioSettings{
			Input: domain.AudioInput{
				Encoding:   audio.Encoding,
				SampleRate: cfg.InputSampleRate,
			},
			Output: domain.AudioOutput{
				Encoding:   audio.Encoding,
				SampleRate: cfg.OutputSampleRate,
				Container:  "none",
			},
		},
		Agent: domain.AgentSettings{
			Listen: domain.ListenSettings{
				Provider: domain.Provider{Type: speechProvider, Model: cfg.ListenModel},
			},
			Think: domain.ThinkSettings{
				Provider: domain.Provider{Type: cfg.ThinkProvider, Model: cfg.ThinkModel},
				Prompt:   p.Prompt,
			},
			Speak: domain.SpeakSettings{
				Provider: domain.Provider{Type: speechProvider, Model: p.Voice},
			},
			Greeting: cfg.Greeting,
		},
	}
}
