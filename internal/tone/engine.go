package tone

import (
	"log/slog"
	"sync"
	"time"
)

// Engine owns every oscillator the softphone starts. All playback is
// best-effort: failures are logged and swallowed so tone synthesis can never
// block or fail a call-control operation.
type Engine struct {
	mu     sync.Mutex
	sink   Sink
	ring   Playback
	active map[int]Playback
	nextID int
}

// NewEngine creates an engine playing into sink. A nil sink degrades every
// operation to a logged no-op.
func NewEngine(sink Sink) *Engine {
	if sink == nil {
		slog.Warn("[TONE] No audio sink available, tones disabled")
	}
	return &Engine{
		sink:   sink,
		active: make(map[int]Playback),
	}
}

// PlayDTMF plays the dual-tone pair for symbol at low amplitude. Symbols
// outside the 16-entry table are logged and skipped, never surfaced.
func (e *Engine) PlayDTMF(symbol rune, duration time.Duration) {
	low, high, ok := Frequencies(symbol)
	if !ok {
		slog.Warn("[TONE] Unknown DTMF symbol", "symbol", string(symbol))
		return
	}
	e.play(Spec{
		Frequencies: []float64{low, high},
		Envelope:    fadedEnvelope(0.1, duration),
		Duration:    duration,
	})
}

// StartRing starts the ring pattern for kind, cancelling any ring already
// playing first. Never two concurrent ring patterns.
func (e *Engine) StartRing(kind RingKind) {
	e.StopRing()

	spec := RingSpec(kind)
	pcm := Render(spec)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sink == nil {
		return
	}
	p, err := e.sink.Play(pcm)
	if err != nil {
		slog.Warn("[TONE] Ring playback failed", "kind", kind.String(), "error", err)
		return
	}
	e.ring = p
	slog.Debug("[TONE] Ring started", "kind", kind.String())
}

// StopRing stops the active ring pattern. Correct whether called mid-pattern
// or after the bounded schedule has already expired.
func (e *Engine) StopRing() {
	e.mu.Lock()
	p := e.ring
	e.ring = nil
	e.mu.Unlock()

	if p != nil {
		p.Stop()
	}
}

// PlayFeedback plays a one-shot confirmation beep.
func (e *Engine) PlayFeedback(frequency float64, duration time.Duration) {
	e.play(Spec{
		Frequencies: []float64{frequency},
		Envelope:    fadedEnvelope(0.1, duration),
		Duration:    duration,
	})
}

// PlayError plays the fixed descending error sweep.
func (e *Engine) PlayError() {
	e.play(ErrorSpec())
}

// PlayBusy plays the alternating busy signal for the requested total
// duration.
func (e *Engine) PlayBusy(duration time.Duration) {
	e.play(BusySpec(duration))
}

// ReleaseAll stops and releases every outstanding playback, ring included.
// Callable at any time, including when nothing is active. The engine remains
// usable afterwards.
func (e *Engine) ReleaseAll() {
	e.StopRing()

	e.mu.Lock()
	playing := make([]Playback, 0, len(e.active))
	for _, p := range e.active {
		playing = append(playing, p)
	}
	e.active = make(map[int]Playback)
	e.mu.Unlock()

	for _, p := range playing {
		p.Stop()
	}
}

func (e *Engine) play(spec Spec) {
	pcm := Render(spec)

	e.mu.Lock()
	if e.sink == nil {
		e.mu.Unlock()
		return
	}
	p, err := e.sink.Play(pcm)
	if err != nil {
		e.mu.Unlock()
		slog.Warn("[TONE] Playback failed", "error", err)
		return
	}
	e.nextID++
	id := e.nextID
	e.active[id] = p
	e.mu.Unlock()

	go func() {
		<-p.Done()
		e.mu.Lock()
		delete(e.active, id)
		e.mu.Unlock()
	}()
}
