package call

import "fmt"

// State represents the lifecycle state of the active call session.
type State int

const (
	// StateNone means no session exists.
	StateNone State = iota
	// StateDialing is an outbound attempt before the far end answers.
	StateDialing
	// StateRinging is an inbound invite awaiting answer or decline.
	StateRinging
	// StateEstablished means media is up and in-call controls are available.
	StateEstablished
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateNone:
		return "None"
	case StateDialing:
		return "Dialing"
	case StateRinging:
		return "Ringing"
	case StateEstablished:
		return "Established"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// validTransitions defines which state transitions are allowed.
// Every non-None state may fall back to None (termination, rejection,
// failure); no state is re-entrant.
var validTransitions = map[State][]State{
	StateNone:        {StateDialing, StateRinging},
	StateDialing:     {StateEstablished, StateNone},
	StateRinging:     {StateEstablished, StateNone},
	StateEstablished: {StateNone},
}

// CanTransitionTo checks if a transition from s to next is valid.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsActive returns true if a session exists in this state.
func (s State) IsActive() bool {
	return s != StateNone
}

// Direction indicates whether we placed or received the call.
type Direction int

const (
	// DirectionInbound - the far end called us.
	DirectionInbound Direction = iota
	// DirectionOutbound - we placed the call.
	DirectionOutbound
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionInbound:
		return "inbound"
	case DirectionOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler for JSON persistence.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "inbound":
		*d = DirectionInbound
	case "outbound":
		*d = DirectionOutbound
	default:
		return fmt.Errorf("unknown call direction %q", text)
	}
	return nil
}

// Outcome classifies how a finished call attempt ended.
type Outcome string

const (
	// OutcomeAnswered - the call was established for a nonzero duration.
	OutcomeAnswered Outcome = "answered"
	// OutcomeMissed - an inbound call ended before being answered. Declines
	// and caller hangups both land here; the signaling layer does not
	// distinguish them.
	OutcomeMissed Outcome = "missed"
	// OutcomeRejected - an outbound call never reached established.
	OutcomeRejected Outcome = "rejected"
)

// ClassifyOutcome applies the termination rule: any nonzero established
// duration is answered, otherwise inbound is missed and outbound rejected.
func ClassifyOutcome(direction Direction, durationSeconds int) Outcome {
	if durationSeconds > 0 {
		return OutcomeAnswered
	}
	if direction == DirectionInbound {
		return OutcomeMissed
	}
	return OutcomeRejected
}
