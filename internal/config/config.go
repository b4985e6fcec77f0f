package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/satriahrh/voicecoach/internal/agent"
	"github.com/satriahrh/voicecoach/internal/audio"
)

// Config holds settings for both the token service and the coaching client
type Config struct {
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	// Token service
	Port              string `mapstructure:"port" validate:"required,numeric"`
	DeepgramAPIKey    string `mapstructure:"deepgram_api_key"`
	DeepgramProjectID string `mapstructure:"deepgram_project_id"`
	OperatorSecret    string `mapstructure:"operator_jwt_secret"`

	// Coaching client
	TokenURL      string `mapstructure:"token_url" validate:"omitempty,url"`
	OperatorToken string `mapstructure:"operator_token"`
	AgentURL      string `mapstructure:"agent_url" validate:"required,url"`
	PersonaID     string `mapstructure:"persona"`

	InputSampleRate       int `mapstructure:"input_sample_rate" validate:"gte=8000,lte=48000"`
	OutputSampleRate      int `mapstructure:"output_sample_rate" validate:"gte=8000,lte=48000"`
	FrameSamples          int `mapstructure:"frame_samples" validate:"gte=128,lte=16384"`
	PlaybackBufferSeconds int `mapstructure:"playback_buffer_seconds" validate:"gte=1,lte=600"`

	ListenModel   string `mapstructure:"listen_model" validate:"required"`
	ThinkProvider string `mapstructure:"think_provider" validate:"required"`
	ThinkModel    string `mapstructure:"think_model" validate:"required"`
	Greeting      string `mapstructure:"agent_greeting"`

	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
}

// envKeys lists every environment variable Config reads
var envKeys = []string{
	"LOG_LEVEL",
	"PORT",
	"DEEPGRAM_API_KEY",
	"DEEPGRAM_PROJECT_ID",
	"OPERATOR_JWT_SECRET",
	"TOKEN_URL",
	"OPERATOR_TOKEN",
	"AGENT_URL",
	"PERSONA",
	"INPUT_SAMPLE_RATE",
	"OUTPUT_SAMPLE_RATE",
	"FRAME_SAMPLES",
	"PLAYBACK_BUFFER_SECONDS",
	"LISTEN_MODEL",
	"THINK_PROVIDER",
	"THINK_MODEL",
	"AGENT_GREETING",
	"REQUEST_TIMEOUT",
}

// ErrNoCredentialSource is returned when the client has neither a token
// service nor a direct API key to authenticate with
var ErrNoCredentialSource = errors.New("either TOKEN_URL or DEEPGRAM_API_KEY must be set")

// Default returns the configuration used when no environment is set
func Default() Config {
	return Config{
		LogLevel:              "info",
		Port:                  "8080",
		AgentURL:              agent.DefaultURL,
		InputSampleRate:       audio.DefaultInputSampleRate,
		OutputSampleRate:      audio.DefaultOutputSampleRate,
		FrameSamples:          audio.DefaultFrameSamples,
		PlaybackBufferSeconds: 60,
		ListenModel:           "nova-2",
		ThinkProvider:         "anthropic",
		ThinkModel:            "claude-sonnet-4-20250514",
		RequestTimeout:        10 * time.Second,
	}
}

// Load reads an optional .env file, then the process environment
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a validated Config from getenv. Unset and empty variables
// keep their defaults.
func FromEnv(getenv func(string) string) (Config, error) {
	v := viper.New()
	setDefault(v)
	for _, key := range envKeys {
		if raw := getenv(key); raw != "" {
			v.Set(key, raw)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefault(v *viper.Viper) {
	d := Default()
	v.SetDefault("LOG_LEVEL", d.LogLevel)
	v.SetDefault("PORT", d.Port)
	v.SetDefault("DEEPGRAM_API_KEY", "")
	v.SetDefault("DEEPGRAM_PROJECT_ID", "")
	v.SetDefault("OPERATOR_JWT_SECRET", "")
	v.SetDefault("TOKEN_URL", "")
	v.SetDefault("OPERATOR_TOKEN", "")
	v.SetDefault("AGENT_URL", d.AgentURL)
	v.SetDefault("PERSONA", "")
	v.SetDefault("INPUT_SAMPLE_RATE", d.InputSampleRate)
	v.SetDefault("OUTPUT_SAMPLE_RATE", d.OutputSampleRate)
	v.SetDefault("FRAME_SAMPLES", d.FrameSamples)
	v.SetDefault("PLAYBACK_BUFFER_SECONDS", d.PlaybackBufferSeconds)
	v.SetDefault("LISTEN_MODEL", d.ListenModel)
	v.SetDefault("THINK_PROVIDER", d.ThinkProvider)
	v.SetDefault("THINK_MODEL", d.ThinkModel)
	v.SetDefault("AGENT_GREETING", "")
	v.SetDefault("REQUEST_TIMEOUT", d.RequestTimeout)
}

// Validate checks field constraints
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ValidateClient checks the settings only the coaching client needs
func (c Config) ValidateClient() error {
	if c.TokenURL == "" && c.DeepgramAPIKey == "" {
		return ErrNoCredentialSource
	}
	return nil
}

// PlaybackBufferSamples is the playback queue capacity in samples
func (c Config) PlaybackBufferSamples() int {
	return c.PlaybackBufferSeconds * c.OutputSampleRate
}

// NewLogger builds the process logger for LogLevel
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if level == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
