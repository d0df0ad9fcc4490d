package tone

import (
	"fmt"
	"io"
	"sync"

	"github.com/zaf/g711"
)

// RecorderSink encodes every played tone to µ-law and appends it to an
// io.Writer (a .ul capture file). Writes happen synchronously at Play time;
// there is nothing to cut short, so Stop is a no-op.
type RecorderSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewRecorderSink creates a sink writing µ-law frames to w.
func NewRecorderSink(w io.Writer) *RecorderSink {
	return &RecorderSink{w: w}
}

// Play implements Sink.
func (r *RecorderSink) Play(pcm []int16) (Playback, error) {
	encoded := g711.EncodeUlaw(PCMBytes(pcm))

	r.mu.Lock()
	_, err := r.w.Write(encoded)
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write tone capture: %w", err)
	}

	done := make(chan struct{})
	close(done)
	return completedPlayback{done: done}, nil
}

type completedPlayback struct {
	done chan struct{}
}

func (completedPlayback) Stop() {}

func (p completedPlayback) Done() <-chan struct{} { return p.done }
