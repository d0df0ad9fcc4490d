package tone

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// SpeakerSink plays tones through the default audio device via a shared oto
// context. Construction fails when no audio device exists; callers fall back
// to DiscardSink in that case.
type SpeakerSink struct {
	ctx *oto.Context
}

var (
	otoCtx     *oto.Context
	otoOnce    sync.Once
	otoInitErr error
)

// NewSpeakerSink initializes the shared audio context on first use.
func NewSpeakerSink() (*SpeakerSink, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   SampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
		}
		var ready chan struct{}
		otoCtx, ready, otoInitErr = oto.NewContext(op)
		if otoInitErr == nil {
			<-ready
		}
	})
	if otoInitErr != nil {
		return nil, fmt.Errorf("audio device unavailable: %w", otoInitErr)
	}
	return &SpeakerSink{ctx: otoCtx}, nil
}

// Play implements Sink.
func (s *SpeakerSink) Play(pcm []int16) (Playback, error) {
	player := s.ctx.NewPlayer(bytes.NewReader(PCMBytes(pcm)))
	player.Play()

	p := &speakerPlayback{player: player, done: make(chan struct{})}
	go p.wait()
	return p, nil
}

type speakerPlayback struct {
	player *oto.Player
	once   sync.Once
	done   chan struct{}
}

func (p *speakerPlayback) wait() {
	for p.player.IsPlaying() {
		time.Sleep(5 * time.Millisecond)
	}
	p.finish()
}

func (p *speakerPlayback) finish() {
	p.once.Do(func() {
		_ = p.player.Close()
		close(p.done)
	})
}

func (p *speakerPlayback) Stop() { p.finish() }

func (p *speakerPlayback) Done() <-chan struct{} { return p.done }
