package tone

import (
	"fmt"
	"time"
)

// RingKind selects one of the two ring patterns.
type RingKind int

const (
	// RingIncoming is the two-frequency pattern played while an inbound
	// call awaits answer.
	RingIncoming RingKind = iota
	// RingOutgoing is the single-frequency ringback played while an
	// outbound call is being placed.
	RingOutgoing
)

// String returns the string representation of the ring kind.
func (k RingKind) String() string {
	switch k {
	case RingIncoming:
		return "incoming"
	case RingOutgoing:
		return "outgoing"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Ring cadence constants. Patterns are pre-scheduled for a bounded number of
// cycles and then expire on their own; they are never looped indefinitely.
const (
	incomingRingCycles = 10
	incomingRingOn     = 2 * time.Second
	incomingRingOff    = 4 * time.Second
	incomingRingGain   = 0.2

	outgoingRingCycles = 20
	outgoingRingOn     = 1 * time.Second
	outgoingRingOff    = 3 * time.Second
	outgoingRingGain   = 0.15

	ringRamp = 100 * time.Millisecond
)

// RingSpec builds the bounded envelope schedule for the given ring kind.
func RingSpec(kind RingKind) Spec {
	switch kind {
	case RingIncoming:
		return cadenceSpec([]float64{480, 440}, incomingRingGain,
			incomingRingOn, incomingRingOff, incomingRingCycles)
	default:
		return cadenceSpec([]float64{440}, outgoingRingGain,
			outgoingRingOn, outgoingRingOff, outgoingRingCycles)
	}
}

// cadenceSpec lays out cycles of (ramp up, hold, ramp down, silence) as a
// flat list of gain points.
func cadenceSpec(freqs []float64, gain float64, on, off time.Duration, cycles int) Spec {
	period := on + off
	env := make([]GainPoint, 0, cycles*4+1)
	env = append(env, GainPoint{At: 0, Gain: 0})
	for i := 0; i < cycles; i++ {
		base := time.Duration(i) * period
		env = append(env,
			GainPoint{At: base + ringRamp, Gain: gain},
			GainPoint{At: base + on, Gain: gain},
			GainPoint{At: base + on + ringRamp, Gain: 0},
			GainPoint{At: base + period, Gain: 0},
		)
	}
	return Spec{
		Frequencies: freqs,
		Envelope:    env,
		Duration:    time.Duration(cycles) * period,
	}
}

// BusySpec alternates 480 Hz on/off in half-second increments for the
// requested total duration.
func BusySpec(total time.Duration) Spec {
	const step = 500 * time.Millisecond
	const ramp = 50 * time.Millisecond
	const gain = 0.15

	env := []GainPoint{{At: 0, Gain: 0}}
	for at := time.Duration(0); at < total; at += step {
		on := (at/step)%2 == 0
		g := 0.0
		if on {
			g = gain
		}
		env = append(env,
			GainPoint{At: at + ramp, Gain: g},
			GainPoint{At: at + step, Gain: g},
		)
	}
	return Spec{
		Frequencies: []float64{480},
		Envelope:    env,
		Duration:    total,
	}
}

// ErrorSpec is the fixed descending error sweep: 800 Hz down to 200 Hz over
// 200 ms, held briefly at the bottom before release.
func ErrorSpec() Spec {
	const total = 300 * time.Millisecond
	return Spec{
		Sweep:    &Sweep{Start: 800, End: 200, Over: 200 * time.Millisecond},
		Envelope: fadedEnvelope(0.15, total),
		Duration: total,
	}
}
