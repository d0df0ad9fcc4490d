package phone

import "errors"

// Validation errors returned synchronously to the caller. Each one is also
// surfaced as an audible error tone before the call returns.
var (
	// ErrNoTransport means connect() has not succeeded yet.
	ErrNoTransport = errors.New("not connected to a signaling server")

	// ErrSessionBusy means a call already exists; call waiting is not
	// supported.
	ErrSessionBusy = errors.New("a call is already active")

	// ErrInvalidState means the operation is illegal for the current
	// session state, e.g. answering without a ringing inbound call.
	ErrInvalidState = errors.New("operation not valid in current call state")

	// ErrInvalidDigit means the symbol is outside the DTMF alphabet.
	ErrInvalidDigit = errors.New("symbol outside the dtmf alphabet")
)
