package repositories

import "context"

// Microphone opens capture streams on the local input device
type Microphone interface {
	// Open acquires the input device at the requested rate. Failures wrap
	// domain.ErrMicrophonePermissionDenied or domain.ErrMicrophoneNotFound
	// when the cause is known.
	Open(ctx context.Context, sampleRate int) (CaptureStream, error)
}

// CaptureStream delivers mono float samples in [-1, 1] in capture order
type CaptureStream interface {
	SampleRate() int
	Start(onSamples func(samples []float32)) error
	Stop() error
}

// Speaker opens playback sinks on the local output device
type Speaker interface {
	Open(ctx context.Context, sampleRate int) (PlaybackSink, error)
}

// PlaybackSink pulls mono float samples from render on the device thread.
// render must fill the whole buffer and must not block.
type PlaybackSink interface {
	SampleRate() int
	Start(render func(out []float32)) error
	Close() error
}
