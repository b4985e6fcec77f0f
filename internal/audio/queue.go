package audio

import (
	"encoding/binary"
	"sync/atomic"
)

// PlaybackQueue is a bounded single-producer single-consumer FIFO of float
// samples. The socket goroutine is the only producer and the device render
// callback is the only consumer; neither side takes a lock.
type PlaybackQueue struct {
	buf  []float32
	size uint64

	// head is written by the consumer only, tail by the producer only.
	head atomic.Uint64
	tail atomic.Uint64

	dropped atomic.Uint64

	// producer-owned odd byte left over from the previous chunk
	carry    byte
	hasCarry bool
}

// NewPlaybackQueue creates a queue holding at most capacity samples
func NewPlaybackQueue(capacity int) *PlaybackQueue {
	if capacity <= 0 {
		capacity = DefaultOutputSampleRate
	}
	return &PlaybackQueue{
		buf:  make([]float32, capacity),
		size: uint64(capacity),
	}
}

// Push appends samples in order and returns how many were accepted.
// Samples beyond the free space are dropped.
func (q *PlaybackQueue) Push(samples []float32) int {
	head := q.head.Load()
	tail := q.tail.Load()
	free := q.size - (tail - head)

	n := uint64(len(samples))
	if n > free {
		q.dropped.Add(n - free)
		n = free
	}
	for i := uint64(0); i < n; i++ {
		q.buf[(tail+i)%q.size] = samples[i]
	}
	q.tail.Store(tail + n)
	return int(n)
}

// EnqueuePCM16 decodes a little-endian int16 chunk straight into the queue and
// returns the number of samples accepted. An odd trailing byte is held back and
// joined with the first byte of the next chunk.
func (q *PlaybackQueue) EnqueuePCM16(chunk []byte) int {
	if len(chunk) == 0 {
		return 0
	}

	head := q.head.Load()
	tail := q.tail.Load()
	free := q.size - (tail - head)

	var written, dropped uint64
	put := func(v int16) {
		if written < free {
			q.buf[(tail+written)%q.size] = DecodeSample(v)
			written++
			return
		}
		dropped++
	}

	i := 0
	if q.hasCarry {
		put(int16(uint16(q.carry) | uint16(chunk[0])<<8))
		q.hasCarry = false
		i = 1
	}
	for ; i+1 < len(chunk); i += 2 {
		put(int16(binary.LittleEndian.Uint16(chunk[i:])))
	}
	if i < len(chunk) {
		q.carry = chunk[i]
		q.hasCarry = true
	}

	if dropped > 0 {
		q.dropped.Add(dropped)
	}
	q.tail.Store(tail + written)
	return int(written)
}

// Pop moves up to len(out) samples from the head of the queue into out and
// returns the count. It never blocks or allocates.
func (q *PlaybackQueue) Pop(out []float32) int {
	head := q.head.Load()
	tail := q.tail.Load()

	n := tail - head
	if m := uint64(len(out)); n > m {
		n = m
	}
	for i := uint64(0); i < n; i++ {
		out[i] = q.buf[(head+i)%q.size]
	}
	q.head.Store(head + n)
	return int(n)
}

// Len is the number of buffered samples
func (q *PlaybackQueue) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

// Cap is the maximum number of buffered samples
func (q *PlaybackQueue) Cap() int {
	return int(q.size)
}

// Dropped is the number of samples rejected because the queue was full
func (q *PlaybackQueue) Dropped() uint64 {
	return q.dropped.Load()
}
