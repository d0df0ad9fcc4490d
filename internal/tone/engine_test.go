package tone

import (
	"sync"
	"testing"
	"time"
)

// memorySink records every playback without producing audio or timing out.
type memorySink struct {
	mu    sync.Mutex
	plays []*memoryPlayback
}

func (m *memorySink) Play(pcm []int16) (Playback, error) {
	p := &memoryPlayback{pcm: pcm, done: make(chan struct{})}
	m.mu.Lock()
	m.plays = append(m.plays, p)
	m.mu.Unlock()
	return p, nil
}

func (m *memorySink) playCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.plays)
}

func (m *memorySink) last() *memoryPlayback {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.plays) == 0 {
		return nil
	}
	return m.plays[len(m.plays)-1]
}

type memoryPlayback struct {
	pcm  []int16
	once sync.Once
	done chan struct{}

	mu      sync.Mutex
	stopped bool
}

func (p *memoryPlayback) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.once.Do(func() { close(p.done) })
}

func (p *memoryPlayback) Done() <-chan struct{} { return p.done }

func (p *memoryPlayback) wasStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func TestPlayDTMFDuration(t *testing.T) {
	sink := &memorySink{}
	e := NewEngine(sink)

	e.PlayDTMF('5', 200*time.Millisecond)

	if sink.playCount() != 1 {
		t.Fatalf("playCount = %d, want 1", sink.playCount())
	}
	if want := SampleRate / 5; len(sink.last().pcm) != want {
		t.Errorf("pcm length = %d, want %d", len(sink.last().pcm), want)
	}
}

func TestPlayDTMFUnknownSymbolIsNoop(t *testing.T) {
	sink := &memorySink{}
	e := NewEngine(sink)

	e.PlayDTMF('x', 200*time.Millisecond)

	if sink.playCount() != 0 {
		t.Errorf("playCount = %d, want 0 for unknown symbol", sink.playCount())
	}
}

func TestStartRingCancelsPrevious(t *testing.T) {
	sink := &memorySink{}
	e := NewEngine(sink)

	e.StartRing(RingIncoming)
	first := sink.last()
	e.StartRing(RingOutgoing)

	if !first.wasStopped() {
		t.Error("first ring still playing after second StartRing")
	}
	if sink.playCount() != 2 {
		t.Errorf("playCount = %d, want 2", sink.playCount())
	}
}

func TestStopRingAfterExpiry(t *testing.T) {
	sink := &memorySink{}
	e := NewEngine(sink)

	e.StartRing(RingOutgoing)
	sink.last().Stop() // pattern expires on its own
	e.StopRing()       // must not panic or double-close
	e.StopRing()       // idempotent with no ring at all
}

func TestReleaseAllStopsEverything(t *testing.T) {
	sink := &memorySink{}
	e := NewEngine(sink)

	e.StartRing(RingIncoming)
	e.PlayFeedback(600, 100*time.Millisecond)
	e.PlayError()

	e.ReleaseAll()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for i, p := range sink.plays {
		if !p.wasStopped() {
			t.Errorf("playback %d not stopped by ReleaseAll", i)
		}
	}
}

func TestReleaseAllWhenIdle(t *testing.T) {
	e := NewEngine(&memorySink{})
	e.ReleaseAll()
	e.ReleaseAll()
}

func TestNilSinkDegradesToNoop(t *testing.T) {
	e := NewEngine(nil)

	e.PlayDTMF('1', 100*time.Millisecond)
	e.StartRing(RingIncoming)
	e.PlayFeedback(700, 100*time.Millisecond)
	e.PlayError()
	e.PlayBusy(time.Second)
	e.StopRing()
	e.ReleaseAll()
}
