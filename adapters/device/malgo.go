package device

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"github.com/satriahrh/voicecoach/domain"
)

const (
	channels = 1

	// bytes per mono float32 sample
	sampleSize = 4

	capturePeriodMs = 20

	// largest render slice handed to the renderer in one call
	maxRenderFrames = 4096
)

// Context owns the miniaudio context shared by the microphone and speaker
type Context struct {
	ctx    *malgo.AllocatedContext
	logger *zap.Logger
}

// NewContext initialises the audio backend
func NewContext(logger *zap.Logger) (*Context, error) {
	config := malgo.ContextConfig{}
	config.ThreadPriority = malgo.ThreadPriorityRealtime

	ctx, err := malgo.InitContext(nil, config, func(message string) {
		logger.Debug("miniaudio", zap.String("message", strings.TrimSpace(message)))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init audio context: %w", err)
	}

	return &Context{ctx: ctx, logger: logger}, nil
}

// Microphone returns the capture side of the context
func (c *Context) Microphone() *Microphone {
	return &Microphone{audio: c, logger: c.logger}
}

// Speaker returns the playback side of the context
func (c *Context) Speaker() *Speaker {
	return &Speaker{audio: c, logger: c.logger}
}

// Close releases the audio backend. Devices must be closed first.
func (c *Context) Close() error {
	err := c.ctx.Uninit()
	c.ctx.Free()
	return err
}

// classifyCaptureError maps miniaudio failures onto the microphone error sentinels
func classifyCaptureError(err error) error {
	switch {
	case errors.Is(err, malgo.ErrAccessDenied):
		return fmt.Errorf("%w: %v", domain.ErrMicrophonePermissionDenied, err)
	case errors.Is(err, malgo.ErrNoDevice), errors.Is(err, malgo.ErrDoesNotExist):
		return fmt.Errorf("%w: %v", domain.ErrMicrophoneNotFound, err)
	default:
		return fmt.Errorf("failed to open microphone: %w", err)
	}
}

func decodeFloat32LE(dst []float32, data []byte) []float32 {
	for i := 0; i+sampleSize <= len(data); i += sampleSize {
		dst = append(dst, math.Float32frombits(binary.LittleEndian.Uint32(data[i:])))
	}
	return dst
}

func encodeFloat32LE(dst []byte, samples []float32) {
	for i, v := range samples {
		binary.LittleEndian.PutUint32(dst[i*sampleSize:], math.Float32bits(v))
	}
}
