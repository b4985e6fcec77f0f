package audio

import "sync/atomic"

// Renderer is installed as the playback device callback. It drains the
// attached PlaybackQueue and pads with silence whenever the queue runs dry.
type Renderer struct {
	queue atomic.Pointer[PlaybackQueue]

	underruns atomic.Uint64
	panics    atomic.Uint64
}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// Attach makes q the queue drained by Render
func (r *Renderer) Attach(q *PlaybackQueue) {
	r.queue.Store(q)
}

// Detach drops the queue reference so any later Render emits silence
func (r *Renderer) Detach() {
	r.queue.Store(nil)
}

// Queue returns the attached queue or nil
func (r *Renderer) Queue() *PlaybackQueue {
	return r.queue.Load()
}

// Render fills every slot of out, popping queued samples in order and writing
// zero once the queue is empty. It must not block, allocate or panic.
func (r *Renderer) Render(out []float32) {
	defer func() {
		if recover() != nil {
			r.panics.Add(1)
			clear(out)
		}
	}()

	n := 0
	if q := r.queue.Load(); q != nil {
		n = q.Pop(out)
	}
	if n < len(out) {
		if n > 0 {
			r.underruns.Add(1)
		}
		clear(out[n:])
	}
}

// Underruns counts renders where the queue ran dry part way through a buffer
func (r *Renderer) Underruns() uint64 {
	return r.underruns.Load()
}

// Panics counts renders that recovered from a panic
func (r *Renderer) Panics() uint64 {
	return r.panics.Load()
}
