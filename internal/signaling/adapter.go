// Package signaling defines the adapter contract the call controller drives,
// plus a SIP implementation of it. The controller only ever sees the fixed
// verb set below and the two lifecycle callbacks; everything protocol-shaped
// stays on this side of the boundary.
package signaling

import (
	"context"
	"fmt"
)

// Identity is the account the softphone registers as.
type Identity struct {
	Extension   string
	Password    string
	DisplayName string
}

// SessionState is a lifecycle transition reported for a session handle.
type SessionState int

const (
	// SessionProgressing - the far end is being alerted (provisional).
	SessionProgressing SessionState = iota
	// SessionEstablished - the call is up.
	SessionEstablished
	// SessionTerminated - the session ended normally (bye, cancel, decline).
	SessionTerminated
	// SessionFailed - placement or negotiation failed.
	SessionFailed
)

// String returns the string representation of the state.
func (s SessionState) String() string {
	switch s {
	case SessionProgressing:
		return "progressing"
	case SessionEstablished:
		return "established"
	case SessionTerminated:
		return "terminated"
	case SessionFailed:
		return "failed"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// IncomingFunc is invoked when the far end invites us to a call.
type IncomingFunc func(handle, remoteAddress, remoteName string)

// StateChangeFunc is invoked on every session lifecycle transition.
// Callbacks fire in arrival order on the adapter's event goroutine.
type StateChangeFunc func(handle string, state SessionState)

// Adapter is the signaling capability the controller drives. All operations
// return synchronously; session progress arrives through the callbacks.
type Adapter interface {
	// Connect registers identity with the server. Idempotent.
	Connect(ctx context.Context, identity Identity, server string) error

	// Disconnect unregisters and releases the transport. Safe to call when
	// not connected.
	Disconnect() error

	// PlaceCall starts an outbound call and returns its session handle.
	PlaceCall(ctx context.Context, target string) (string, error)

	// Accept answers an inbound session.
	Accept(handle string) error

	// Reject declines an inbound session that was never established.
	Reject(handle string) error

	// Terminate ends a session with the protocol-appropriate goodbye for
	// its current sub-state.
	Terminate(handle string) error

	// SendMidCallSignal relays an in-call payload (a DTMF digit) to the
	// far end.
	SendMidCallSignal(handle string, payload string) error

	// Renegotiate re-negotiates media for hold or resume. Blocks until the
	// far end confirms or refuses.
	Renegotiate(handle string, hold bool) error

	// SetMediaSendEnabled flips local media-send enablement (mute).
	SetMediaSendEnabled(handle string, enabled bool) error

	// OnIncoming sets the inbound-invite callback. Must be set before
	// Connect.
	OnIncoming(fn IncomingFunc)

	// OnStateChange sets the lifecycle callback. Must be set before
	// Connect.
	OnStateChange(fn StateChangeFunc)
}
