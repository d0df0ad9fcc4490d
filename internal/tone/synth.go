package tone

import (
	"math"
	"time"
)

// SampleRate is the engine's synthesis rate in Hz. Telephony tones have no
// content above 1633 Hz, so 8 kHz mono is plenty.
const SampleRate = 8000

// GainPoint is one entry of a pre-computed amplitude envelope: at time At
// the gain is Gain, with linear interpolation between consecutive points.
// Before the first point the gain is 0.
type GainPoint struct {
	At   time.Duration
	Gain float64
}

// Sweep describes a linear frequency ramp from Start to End over Over.
// After Over the frequency holds at End.
type Sweep struct {
	Start float64
	End   float64
	Over  time.Duration
}

// Spec is a fully-described tone ready for rendering: one or more
// simultaneous sine components (or a sweep), an amplitude envelope, and a
// bounded total duration.
type Spec struct {
	Frequencies []float64
	Sweep       *Sweep
	Envelope    []GainPoint
	Duration    time.Duration
}

// Render synthesizes the spec to 16-bit mono PCM at SampleRate. Phase is
// accumulated per component so sweeps stay continuous.
func Render(spec Spec) []int16 {
	n := int(float64(SampleRate) * spec.Duration.Seconds())
	if n <= 0 {
		return nil
	}
	pcm := make([]int16, n)

	components := spec.Frequencies
	if spec.Sweep != nil {
		components = []float64{spec.Sweep.Start}
	}
	if len(components) == 0 {
		return pcm
	}

	phases := make([]float64, len(components))
	dt := 1.0 / float64(SampleRate)

	for i := 0; i < n; i++ {
		t := time.Duration(float64(i) * float64(time.Second) / float64(SampleRate))
		gain := gainAt(spec.Envelope, t)

		var sum float64
		for c := range components {
			freq := components[c]
			if spec.Sweep != nil {
				freq = sweepFrequency(spec.Sweep, t)
			}
			phases[c] += 2 * math.Pi * freq * dt
			sum += math.Sin(phases[c])
		}

		val := gain * sum / float64(len(components))
		if val > 1 {
			val = 1
		} else if val < -1 {
			val = -1
		}
		pcm[i] = int16(val * 32767)
	}
	return pcm
}

// gainAt evaluates the envelope at t with linear interpolation.
func gainAt(env []GainPoint, t time.Duration) float64 {
	if len(env) == 0 {
		return 0
	}
	if t <= env[0].At {
		if env[0].At == 0 {
			return env[0].Gain
		}
		// Ramp from silence to the first point.
		return env[0].Gain * float64(t) / float64(env[0].At)
	}
	for i := 1; i < len(env); i++ {
		if t <= env[i].At {
			prev, next := env[i-1], env[i]
			span := float64(next.At - prev.At)
			if span <= 0 {
				return next.Gain
			}
			frac := float64(t-prev.At) / span
			return prev.Gain + (next.Gain-prev.Gain)*frac
		}
	}
	return env[len(env)-1].Gain
}

func sweepFrequency(s *Sweep, t time.Duration) float64 {
	if t >= s.Over {
		return s.End
	}
	frac := float64(t) / float64(s.Over)
	return s.Start + (s.End-s.Start)*frac
}

// fadedEnvelope builds a flat envelope at gain with short attack/release
// ramps so one-shot tones do not click.
func fadedEnvelope(gain float64, total time.Duration) []GainPoint {
	fade := 5 * time.Millisecond
	if total < 2*fade {
		fade = total / 4
	}
	return []GainPoint{
		{At: 0, Gain: 0},
		{At: fade, Gain: gain},
		{At: total - fade, Gain: gain},
		{At: total, Gain: 0},
	}
}

// PCMBytes converts mono int16 samples to little-endian bytes.
func PCMBytes(pcm []int16) []byte {
	buf := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}
