package tone

import (
	"testing"
	"time"
)

func TestRenderSampleCount(t *testing.T) {
	spec := Spec{
		Frequencies: []float64{440},
		Envelope:    fadedEnvelope(0.5, 100*time.Millisecond),
		Duration:    100 * time.Millisecond,
	}
	pcm := Render(spec)
	if want := SampleRate / 10; len(pcm) != want {
		t.Errorf("len(pcm) = %d, want %d", len(pcm), want)
	}
}

func TestRenderZeroDuration(t *testing.T) {
	if pcm := Render(Spec{Frequencies: []float64{440}}); pcm != nil {
		t.Errorf("Render of zero duration = %d samples, want nil", len(pcm))
	}
}

func TestRenderSilentWithEmptyEnvelope(t *testing.T) {
	pcm := Render(Spec{
		Frequencies: []float64{440},
		Duration:    10 * time.Millisecond,
	})
	for i, s := range pcm {
		if s != 0 {
			t.Fatalf("sample %d = %d, want 0 with empty envelope", i, s)
		}
	}
}

func TestGainAtInterpolation(t *testing.T) {
	env := []GainPoint{
		{At: 0, Gain: 0},
		{At: 100 * time.Millisecond, Gain: 0.4},
		{At: 200 * time.Millisecond, Gain: 0.4},
		{At: 300 * time.Millisecond, Gain: 0},
	}
	tests := []struct {
		at   time.Duration
		want float64
	}{
		{0, 0},
		{50 * time.Millisecond, 0.2},
		{100 * time.Millisecond, 0.4},
		{150 * time.Millisecond, 0.4},
		{250 * time.Millisecond, 0.2},
		{400 * time.Millisecond, 0},
	}
	for _, tt := range tests {
		got := gainAt(env, tt.at)
		if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("gainAt(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestRingSpecIncoming(t *testing.T) {
	spec := RingSpec(RingIncoming)

	if len(spec.Frequencies) != 2 || spec.Frequencies[0] != 480 || spec.Frequencies[1] != 440 {
		t.Errorf("incoming ring frequencies = %v, want [480 440]", spec.Frequencies)
	}
	if want := 10 * (2 + 4) * time.Second; spec.Duration != want {
		t.Errorf("incoming ring duration = %v, want %v", spec.Duration, want)
	}
	// On during the first second, off during the gap.
	if g := gainAt(spec.Envelope, 1*time.Second); g != incomingRingGain {
		t.Errorf("gain at 1s = %v, want %v", g, incomingRingGain)
	}
	if g := gainAt(spec.Envelope, 3*time.Second); g != 0 {
		t.Errorf("gain at 3s = %v, want 0", g)
	}
	// Second cycle repeats the cadence.
	if g := gainAt(spec.Envelope, 7*time.Second); g != incomingRingGain {
		t.Errorf("gain at 7s = %v, want %v", g, incomingRingGain)
	}
}

func TestRingSpecOutgoing(t *testing.T) {
	spec := RingSpec(RingOutgoing)

	if len(spec.Frequencies) != 1 || spec.Frequencies[0] != 440 {
		t.Errorf("outgoing ring frequencies = %v, want [440]", spec.Frequencies)
	}
	if want := 20 * (1 + 3) * time.Second; spec.Duration != want {
		t.Errorf("outgoing ring duration = %v, want %v", spec.Duration, want)
	}
	if g := gainAt(spec.Envelope, 500*time.Millisecond); g != outgoingRingGain {
		t.Errorf("gain at 0.5s = %v, want %v", g, outgoingRingGain)
	}
	if g := gainAt(spec.Envelope, 2*time.Second); g != 0 {
		t.Errorf("gain at 2s = %v, want 0", g)
	}
}

func TestBusySpecCadence(t *testing.T) {
	spec := BusySpec(2 * time.Second)

	if spec.Duration != 2*time.Second {
		t.Errorf("busy duration = %v, want 2s", spec.Duration)
	}
	if len(spec.Frequencies) != 1 || spec.Frequencies[0] != 480 {
		t.Errorf("busy frequencies = %v, want [480]", spec.Frequencies)
	}
	// Alternates on/off in half-second steps.
	on := []time.Duration{250 * time.Millisecond, 1250 * time.Millisecond}
	off := []time.Duration{750 * time.Millisecond, 1750 * time.Millisecond}
	for _, at := range on {
		if g := gainAt(spec.Envelope, at); g == 0 {
			t.Errorf("gain at %v = 0, want on", at)
		}
	}
	for _, at := range off {
		if g := gainAt(spec.Envelope, at); g != 0 {
			t.Errorf("gain at %v = %v, want 0", at, g)
		}
	}
}

func TestErrorSpecSweep(t *testing.T) {
	spec := ErrorSpec()

	if spec.Sweep == nil {
		t.Fatal("error spec has no sweep")
	}
	if spec.Sweep.Start != 800 || spec.Sweep.End != 200 {
		t.Errorf("sweep = %v -> %v, want 800 -> 200", spec.Sweep.Start, spec.Sweep.End)
	}
	if spec.Duration != 300*time.Millisecond {
		t.Errorf("error duration = %v, want 300ms", spec.Duration)
	}

	tests := []struct {
		at   time.Duration
		want float64
	}{
		{0, 800},
		{100 * time.Millisecond, 500},
		{200 * time.Millisecond, 200},
		{300 * time.Millisecond, 200},
	}
	for _, tt := range tests {
		if got := sweepFrequency(spec.Sweep, tt.at); got != tt.want {
			t.Errorf("sweepFrequency(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestPCMBytesLittleEndian(t *testing.T) {
	buf := PCMBytes([]int16{0x0102, -2})
	want := []byte{0x02, 0x01, 0xFE, 0xFF}
	if len(buf) != len(want) {
		t.Fatalf("len = %d, want %d", len(buf), len(want))
	}
	for i := range want {
		if buf[i] != want[i] {
			t.Errorf("byte %d = %#x, want %#x", i, buf[i], want[i])
		}
	}
}
