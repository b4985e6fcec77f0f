package audio

import (
	"encoding/binary"
	"math"
)

const (
	// Encoding is the wire encoding declared in both directions
	Encoding = "linear16"

	// DefaultInputSampleRate is the capture and outbound frame rate
	DefaultInputSampleRate = 16000

	// DefaultOutputSampleRate is the agent speech and playback rate
	DefaultOutputSampleRate = 24000

	// DefaultFrameSamples is the number of samples per outbound frame
	DefaultFrameSamples = 4096

	pcmScale = 32768
)

// EncodeSample converts a float sample to int16 as floor(x*32768) clamped to
// the int16 range. NaN encodes as zero.
func EncodeSample(x float32) int16 {
	if x != x {
		return 0
	}
	v := math.Floor(float64(x) * pcmScale)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// DecodeSample converts an int16 sample to float as v/32768
func DecodeSample(v int16) float32 {
	return float32(v) / pcmScale
}

// EncodePCM16 appends samples to dst as little-endian int16
func EncodePCM16(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(EncodeSample(s)))
	}
	return dst
}

// DecodePCM16 appends the samples held in little-endian int16 data to dst.
// A trailing odd byte is ignored.
func DecodePCM16(dst []float32, data []byte) []float32 {
	for i := 0; i+1 < len(data); i += 2 {
		dst = append(dst, DecodeSample(int16(binary.LittleEndian.Uint16(data[i:]))))
	}
	return dst
}
