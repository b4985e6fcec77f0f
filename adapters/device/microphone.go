package device

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"github.com/satriahrh/voicecoach/domain"
	"github.com/satriahrh/voicecoach/domain/repositories"
)

const captureBufferPeriods = 64

// Microphone opens mono float capture streams on the default input device
type Microphone struct {
	audio  *Context
	logger *zap.Logger
}

func (m *Microphone) Open(ctx context.Context, sampleRate int) (repositories.CaptureStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := m.audio.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, classifyCaptureError(err)
	}
	if len(infos) == 0 {
		return nil, domain.ErrMicrophoneNotFound
	}

	stream := newCaptureStream(sampleRate, m.logger)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = channels
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = capturePeriodMs

	device, err := malgo.InitDevice(m.audio.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: stream.onData,
	})
	if err != nil {
		return nil, classifyCaptureError(err)
	}
	stream.device = device

	m.logger.Info("Microphone opened", zap.Int("sample_rate", sampleRate))
	return stream, nil
}

// captureStream hands device periods to a pump goroutine so the capture
// callback never waits on the consumer
type captureStream struct {
	sampleRate int
	device     *malgo.Device
	logger     *zap.Logger

	periods chan []float32
	quit    chan struct{}
	wg      sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once

	dropped atomic.Uint64
}

func newCaptureStream(sampleRate int, logger *zap.Logger) *captureStream {
	return &captureStream{
		sampleRate: sampleRate,
		logger:     logger,
		periods:    make(chan []float32, captureBufferPeriods),
		quit:       make(chan struct{}),
	}
}

func (s *captureStream) SampleRate() int {
	return s.sampleRate
}

func (s *captureStream) Start(onSamples func(samples []float32)) error {
	var err error
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.pump(onSamples)

		if s.device != nil {
			if startErr := s.device.Start(); startErr != nil {
				err = fmt.Errorf("failed to start microphone: %w", startErr)
			}
		}
	})
	return err
}

func (s *captureStream) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		if s.device != nil {
			if stopErr := s.device.Stop(); stopErr != nil {
				err = fmt.Errorf("failed to stop microphone: %w", stopErr)
			}
			s.device.Uninit()
		}
		close(s.quit)
		s.wg.Wait()

		if n := s.dropped.Load(); n > 0 {
			s.logger.Warn("Capture periods dropped", zap.Uint64("count", n))
		}
	})
	return err
}

func (s *captureStream) onData(_, pInputSamples []byte, _ uint32) {
	samples := decodeFloat32LE(make([]float32, 0, len(pInputSamples)/sampleSize), pInputSamples)

	select {
	case s.periods <- samples:
	default:
		s.dropped.Add(1)
	}
}

func (s *captureStream) pump(onSamples func(samples []float32)) {
	defer s.wg.Done()
	for {
		select {
		case samples := <-s.periods:
			onSamples(samples)
		case <-s.quit:
			return
		}
	}
}
