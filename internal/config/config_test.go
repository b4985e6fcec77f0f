package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 16000, cfg.InputSampleRate)
	assert.Equal(t, 24000, cfg.OutputSampleRate)
	assert.Equal(t, 4096, cfg.FrameSamples)
	assert.Equal(t, "nova-2", cfg.ListenModel)
	assert.Equal(t, "anthropic", cfg.ThinkProvider)
	assert.Equal(t, "wss://agent.deepgram.com/v1/agent/converse", cfg.AgentURL)
	assert.Equal(t, 60*24000, cfg.PlaybackBufferSamples())
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"PORT":                "9090",
		"DEEPGRAM_API_KEY":    "key",
		"DEEPGRAM_PROJECT_ID": "project",
		"TOKEN_URL":           "http://localhost:9090/api/v1/agent/token",
		"PERSONA":             "adrian",
		"FRAME_SAMPLES":       "2048",
		"REQUEST_TIMEOUT":     "3s",
		"LOG_LEVEL":           "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "key", cfg.DeepgramAPIKey)
	assert.Equal(t, "project", cfg.DeepgramProjectID)
	assert.Equal(t, "adrian", cfg.PersonaID)
	assert.Equal(t, 2048, cfg.FrameSamples)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.NoError(t, cfg.ValidateClient())

	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "non numeric sample rate", env: map[string]string{"INPUT_SAMPLE_RATE": "fast"}},
		{name: "sample rate out of range", env: map[string]string{"OUTPUT_SAMPLE_RATE": "96000"}},
		{name: "tiny frames", env: map[string]string{"FRAME_SAMPLES": "16"}},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "loud"}},
		{name: "bad timeout", env: map[string]string{"REQUEST_TIMEOUT": "soon"}},
		{name: "bad token url", env: map[string]string{"TOKEN_URL": "not a url"}},
		{name: "non numeric port", env: map[string]string{"PORT": "http"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(envMap(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestFromEnvParseErrorNamesKey(t *testing.T) {
	_, err := FromEnv(envMap(map[string]string{"FRAME_SAMPLES": "many"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame_samples")
}

func TestFromEnvEmptyValuesKeepDefaults(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"PORT":            "",
		"REQUEST_TIMEOUT": "",
		"AGENT_GREETING":  "Hello?",
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "Hello?", cfg.Greeting)
}

func TestValidateClientNeedsCredentialSource(t *testing.T) {
	cfg := Default()
	assert.ErrorIs(t, cfg.ValidateClient(), ErrNoCredentialSource)

	cfg.DeepgramAPIKey = "key"
	assert.NoError(t, cfg.ValidateClient())
}
