package device

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"github.com/satriahrh/voicecoach/domain/repositories"
)

// Speaker opens mono float playback sinks on the default output device
type Speaker struct {
	audio  *Context
	logger *zap.Logger
}

func (s *Speaker) Open(ctx context.Context, sampleRate int) (repositories.PlaybackSink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sink := newPlaybackSink(sampleRate)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = channels
	deviceConfig.SampleRate = uint32(sampleRate)

	device, err := malgo.InitDevice(s.audio.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: sink.onData,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open speaker: %w", err)
	}
	sink.device = device

	s.logger.Info("Speaker opened", zap.Int("sample_rate", sampleRate))
	return sink, nil
}

type renderFunc func(out []float32)

// playbackSink converts the renderer's float buffer into device bytes. The
// scratch buffer is allocated once so the device callback never allocates.
type playbackSink struct {
	sampleRate int
	device     *malgo.Device
	render     atomic.Pointer[renderFunc]
	scratch    []float32
	closeOnce  sync.Once
}

func newPlaybackSink(sampleRate int) *playbackSink {
	return &playbackSink{
		sampleRate: sampleRate,
		scratch:    make([]float32, maxRenderFrames),
	}
}

func (p *playbackSink) SampleRate() int {
	return p.sampleRate
}

func (p *playbackSink) Start(render func(out []float32)) error {
	fn := renderFunc(render)
	p.render.Store(&fn)

	if p.device == nil {
		return nil
	}
	if err := p.device.Start(); err != nil {
		return fmt.Errorf("failed to start speaker: %w", err)
	}
	return nil
}

func (p *playbackSink) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.render.Store(nil)
		if p.device != nil {
			if stopErr := p.device.Stop(); stopErr != nil {
				err = fmt.Errorf("failed to stop speaker: %w", stopErr)
			}
			p.device.Uninit()
		}
	})
	return err
}

func (p *playbackSink) onData(pOutputSample, _ []byte, frameCount uint32) {
	render := p.render.Load()
	total := int(frameCount)
	if limit := len(pOutputSample) / sampleSize; total > limit {
		total = limit
	}

	for off := 0; off < total; {
		n := min(total-off, len(p.scratch))
		buf := p.scratch[:n]
		if render != nil {
			(*render)(buf)
		} else {
			clear(buf)
		}
		encodeFloat32LE(pOutputSample[off*sampleSize:], buf)
		off += n
	}
}
