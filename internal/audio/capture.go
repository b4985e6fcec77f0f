package audio

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// FrameSender is the outbound side of the agent socket
type FrameSender interface {
	IsOpen() bool
	SendAudio(frame []byte) error
}

type senderRef struct {
	FrameSender
}

// CaptureProcessor turns captured float samples into fixed-size linear16
// frames and hands each frame to the sender while it reports open. Process is
// called from a single capture goroutine.
type CaptureProcessor struct {
	frameSamples int
	sender       atomic.Pointer[senderRef]
	pending      []float32
	logger       *zap.Logger

	framesSent     atomic.Uint64
	samplesDropped atomic.Uint64
}

// NewCaptureProcessor creates a processor emitting frames of frameSamples samples
func NewCaptureProcessor(frameSamples int, logger *zap.Logger) *CaptureProcessor {
	if frameSamples <= 0 {
		frameSamples = DefaultFrameSamples
	}
	return &CaptureProcessor{
		frameSamples: frameSamples,
		pending:      make([]float32, 0, frameSamples),
		logger:       logger,
	}
}

// Attach sets the socket frames are sent to
func (p *CaptureProcessor) Attach(sender FrameSender) {
	p.sender.Store(&senderRef{sender})
}

// Detach drops the socket reference so later callbacks send nothing
func (p *CaptureProcessor) Detach() {
	p.sender.Store(nil)
}

// Process is the capture callback. While the socket is not open the samples
// and any partial frame are discarded.
func (p *CaptureProcessor) Process(samples []float32) {
	ref := p.sender.Load()
	if ref == nil || !ref.IsOpen() {
		p.samplesDropped.Add(uint64(len(samples) + len(p.pending)))
		p.pending = p.pending[:0]
		return
	}

	for len(samples) > 0 {
		take := min(p.frameSamples-len(p.pending), len(samples))
		p.pending = append(p.pending, samples[:take]...)
		samples = samples[take:]

		if len(p.pending) < p.frameSamples {
			continue
		}

		frame := EncodePCM16(make([]byte, 0, 2*p.frameSamples), p.pending)
		p.pending = p.pending[:0]
		if err := ref.SendAudio(frame); err != nil {
			p.samplesDropped.Add(uint64(p.frameSamples))
			p.logger.Debug("Dropped capture frame", zap.Error(err))
			continue
		}
		p.framesSent.Add(1)
	}
}

// FramesSent is the number of frames handed to the socket
func (p *CaptureProcessor) FramesSent() uint64 {
	return p.framesSent.Load()
}

// SamplesDropped is the number of captured samples that were never sent
func (p *CaptureProcessor) SamplesDropped() uint64 {
	return p.samplesDropped.Load()
}
