package tone

import (
	"sync"
	"time"
)

// Sink consumes rendered PCM. Play must not block for the duration of the
// audio; it returns a handle that can cut playback short.
type Sink interface {
	// Play starts playback of 8 kHz mono 16-bit PCM.
	Play(pcm []int16) (Playback, error)
}

// Playback is a handle to one in-flight tone.
type Playback interface {
	// Stop cuts playback short. Safe to call after natural expiry, and
	// safe to call more than once.
	Stop()
	// Done is closed when playback finishes, whether naturally or via
	// Stop.
	Done() <-chan struct{}
}

// DiscardSink times out playback in real time without producing audio. It is
// the degraded mode used when no audio device is available.
type DiscardSink struct{}

// Play implements Sink.
func (DiscardSink) Play(pcm []int16) (Playback, error) {
	d := time.Duration(len(pcm)) * time.Second / SampleRate
	p := newTimedPlayback()
	p.timer = time.AfterFunc(d, p.finish)
	return p, nil
}

type timedPlayback struct {
	once  sync.Once
	done  chan struct{}
	timer *time.Timer
}

func newTimedPlayback() *timedPlayback {
	return &timedPlayback{done: make(chan struct{})}
}

func (p *timedPlayback) finish() {
	p.once.Do(func() { close(p.done) })
}

func (p *timedPlayback) Stop() {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.finish()
}

func (p *timedPlayback) Done() <-chan struct{} { return p.done }

// TeeSink fans one Play call out to several sinks (e.g. speaker plus
// recorder). Stop and Done aggregate over all branches.
type TeeSink struct {
	Sinks []Sink
}

// NewTeeSink combines sinks into one.
func NewTeeSink(sinks ...Sink) *TeeSink {
	return &TeeSink{Sinks: sinks}
}

// Play implements Sink.
func (t *TeeSink) Play(pcm []int16) (Playback, error) {
	var children []Playback
	for _, s := range t.Sinks {
		p, err := s.Play(pcm)
		if err != nil {
			for _, c := range children {
				c.Stop()
			}
			return nil, err
		}
		children = append(children, p)
	}
	return newTeePlayback(children), nil
}

type teePlayback struct {
	children []Playback
	done     chan struct{}
}

func newTeePlayback(children []Playback) *teePlayback {
	p := &teePlayback{children: children, done: make(chan struct{})}
	go func() {
		for _, c := range children {
			<-c.Done()
		}
		close(p.done)
	}()
	return p
}

func (p *teePlayback) Stop() {
	for _, c := range p.children {
		c.Stop()
	}
}

func (p *teePlayback) Done() <-chan struct{} { return p.done }
