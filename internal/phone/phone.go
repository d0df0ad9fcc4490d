package phone

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sebas/softphone/internal/call"
	"github.com/sebas/softphone/internal/events"
	"github.com/sebas/softphone/internal/history"
	"github.com/sebas/softphone/internal/signaling"
	"github.com/sebas/softphone/internal/tone"
)

// Feedback tone map. Frequencies in Hz.
const (
	dtmfDuration = 200 * time.Millisecond

	toneDialFreq     = 600
	toneDialDur      = 200 * time.Millisecond
	toneAcceptedFreq = 700
	toneAcceptedDur  = 100 * time.Millisecond
	toneAnswerFreq   = 700
	toneAnswerDur    = 200 * time.Millisecond
	toneEndedFreq    = 500
	toneEndedDur     = 150 * time.Millisecond
	toneMuteFreq     = 400
	toneMuteDur      = 100 * time.Millisecond
	toneUnmuteFreq   = 600
	toneUnmuteDur    = 100 * time.Millisecond
	toneHoldFreq     = 350
	toneHoldDur      = 150 * time.Millisecond
	toneUnholdFreq   = 650
	toneUnholdDur    = 150 * time.Millisecond
	toneRegFreq      = 800
	toneRegDur       = 200 * time.Millisecond

	dialFailBusyDur = 2 * time.Second
)

// Feature-code prefixes understood by the remote switch.
const (
	transferPrefix   = "#90"
	conferencePrefix = "#70"
)

// Phone is the call session controller. It owns at most one call session,
// drives the signaling adapter, triggers local tones, maintains the history
// store and publishes lifecycle events on the bus.
//
// All public operations validate against the current session state and
// return a sentinel error instead of acting; validation failures also play
// an error tone. Operations are safe for concurrent use.
type Phone struct {
	adapter signaling.Adapter
	tones   *tone.Engine
	history *history.Store
	bus     *events.Bus

	mu         sync.Mutex
	connected  bool
	connecting bool // a Connect is in flight
	registered bool
	session    *call.Session
	placing    bool          // PlaceCall in flight, adapter handle not yet known
	seqCancel  chan struct{} // non-nil while a feature-code sequence runs

	// Overridable in tests.
	clock      func() time.Time
	digitDelay time.Duration
}

// New wires a controller to its collaborators and registers the adapter
// callbacks. Callbacks are registered once, here, not per connect.
func New(adapter signaling.Adapter, tones *tone.Engine, hist *history.Store, bus *events.Bus) *Phone {
	p := &Phone{
		adapter:    adapter,
		tones:      tones,
		history:    hist,
		bus:        bus,
		clock:      time.Now,
		digitDelay: 300 * time.Millisecond,
	}
	adapter.OnIncoming(p.handleIncoming)
	adapter.OnStateChange(p.handleStateChange)
	return p
}

// Connect registers with the signaling server. Idempotent: connecting while
// connected, or while another connect is still in flight, is a no-op.
func (p *Phone) Connect(ctx context.Context, identity signaling.Identity, server string) error {
	p.mu.Lock()
	if p.connected || p.connecting {
		p.mu.Unlock()
		return nil
	}
	p.connecting = true
	p.mu.Unlock()

	if err := p.adapter.Connect(ctx, identity, server); err != nil {
		p.mu.Lock()
		p.connecting = false
		p.mu.Unlock()
		p.tones.PlayError()
		p.bus.Publish(events.Event{Type: events.RegistrationFailed, Reason: err.Error()})
		return fmt.Errorf("connect: %w", err)
	}

	p.mu.Lock()
	p.connecting = false
	p.connected = true
	p.registered = true
	p.mu.Unlock()

	p.tones.PlayFeedback(toneRegFreq, toneRegDur)
	p.bus.Publish(events.Event{Type: events.Registered})
	return nil
}

// Disconnect hangs up any active call, unregisters and releases every tone
// resource. Safe to call when nothing is active.
func (p *Phone) Disconnect() error {
	p.mu.Lock()
	hasSession := p.session != nil
	connected := p.connected
	p.mu.Unlock()

	if hasSession {
		if err := p.Hangup(); err != nil {
			slog.Warn("[PHONE] Hangup during disconnect failed", "error", err)
		}
	}
	if !connected {
		p.tones.ReleaseAll()
		return nil
	}

	if err := p.adapter.Disconnect(); err != nil {
		slog.Warn("[PHONE] Unregister failed", "error", err)
	}

	p.mu.Lock()
	p.connected = false
	p.registered = false
	p.mu.Unlock()

	p.bus.Publish(events.Event{Type: events.Unregistered})
	p.tones.ReleaseAll()
	p.bus.Clear()
	return nil
}

// Dial places an outbound call and writes the provisional history entry.
func (p *Phone) Dial(ctx context.Context, target string) error {
	p.mu.Lock()
	if !p.connected {
		p.mu.Unlock()
		p.tones.PlayError()
		return ErrNoTransport
	}
	if p.session != nil {
		p.mu.Unlock()
		p.tones.PlayError()
		return ErrSessionBusy
	}

	now := p.clock()
	id := uuid.NewString()
	sess := &call.Session{
		ID:            id,
		HistoryID:     id,
		Direction:     call.DirectionOutbound,
		RemoteAddress: target,
		StartedAt:     now,
		State:         call.StateDialing,
	}
	p.session = sess
	p.placing = true
	p.mu.Unlock()

	// Provisional entry, amended once the outcome is known. Written before
	// the adapter call so an event racing PlaceCall's return finds it.
	if err := p.history.Record(history.Item{
		ID:            sess.HistoryID,
		RemoteAddress: target,
		Direction:     call.DirectionOutbound,
		StartedAt:     now,
		Outcome:       call.OutcomeAnswered,
	}); err != nil {
		slog.Warn("[PHONE] History write failed", "error", err)
	}

	p.tones.PlayFeedback(toneDialFreq, toneDialDur)

	handle, err := p.adapter.PlaceCall(ctx, target)

	p.mu.Lock()
	p.placing = false
	if err != nil {
		if p.session == sess {
			p.session = nil
		}
		p.mu.Unlock()
		slog.Warn("[PHONE] Call placement failed", "target", target, "error", err)
		p.tones.PlayBusy(dialFailBusyDur)
		if err := p.history.Amend(sess.HistoryID, call.OutcomeRejected, 0); err != nil {
			slog.Warn("[PHONE] History write failed", "error", err)
		}
		p.bus.Publish(events.Event{Type: events.CallFailed, CallID: sess.HistoryID, RemoteAddress: target, Reason: err.Error()})
		return fmt.Errorf("place call: %w", err)
	}
	if p.session == sess && handle != "" {
		sess.ID = handle
	}
	callID := sess.ID
	stillDialing := p.session == sess && sess.State == call.StateDialing
	p.mu.Unlock()

	if stillDialing {
		p.tones.StartRing(tone.RingOutgoing)
	}
	slog.Info("[PHONE] Dialing", "target", target, "call_id", callID)
	return nil
}

// Answer accepts the current inbound ringing call.
func (p *Phone) Answer() error {
	p.mu.Lock()
	sess := p.session
	if sess == nil || sess.State != call.StateRinging || sess.Direction != call.DirectionInbound {
		p.mu.Unlock()
		p.tones.PlayError()
		return ErrInvalidState
	}
	id := sess.ID
	p.mu.Unlock()

	p.tones.StopRing()
	if err := p.adapter.Accept(id); err != nil {
		p.tones.PlayError()
		return fmt.Errorf("accept: %w", err)
	}
	// The established transition arrives through the adapter callback.
	return nil
}

// Decline rejects the current inbound ringing call. The entry lands in
// history as missed: the adapter does not distinguish an active decline from
// the caller giving up, so neither does the record.
func (p *Phone) Decline() error {
	p.mu.Lock()
	sess := p.session
	if sess == nil || sess.State != call.StateRinging || sess.Direction != call.DirectionInbound {
		p.mu.Unlock()
		p.tones.PlayError()
		return ErrInvalidState
	}
	id := sess.ID
	p.mu.Unlock()

	if err := p.adapter.Reject(id); err != nil {
		p.tones.PlayError()
		return fmt.Errorf("reject: %w", err)
	}

	p.mu.Lock()
	ev, ended := p.finalizeLocked(events.CallEnded, "declined")
	p.mu.Unlock()
	if ended {
		p.tones.PlayFeedback(toneEndedFreq, toneEndedDur)
		p.bus.Publish(ev)
	}
	return nil
}

// Hangup terminates the active call in whatever state it is in: bye when
// established, cancel for an outbound attempt, reject for an unanswered
// inbound one.
func (p *Phone) Hangup() error {
	p.mu.Lock()
	sess := p.session
	if sess == nil {
		p.mu.Unlock()
		p.tones.PlayError()
		return ErrInvalidState
	}
	id := sess.ID
	p.mu.Unlock()

	if err := p.adapter.Terminate(id); err != nil {
		slog.Warn("[PHONE] Terminate failed", "call_id", id, "error", err)
	}

	p.mu.Lock()
	ev, ended := p.finalizeLocked(events.CallEnded, "hangup")
	p.mu.Unlock()
	if ended {
		p.tones.PlayFeedback(toneEndedFreq, toneEndedDur)
		p.bus.Publish(ev)
	}
	return nil
}

// ToggleMute flips local media-send enablement.
func (p *Phone) ToggleMute() error {
	p.mu.Lock()
	sess := p.session
	if sess == nil || sess.State != call.StateEstablished {
		p.mu.Unlock()
		p.tones.PlayError()
		return ErrInvalidState
	}
	id := sess.ID
	muting := !sess.IsMuted
	p.mu.Unlock()

	if err := p.adapter.SetMediaSendEnabled(id, !muting); err != nil {
		p.tones.PlayError()
		return fmt.Errorf("toggle mute: %w", err)
	}

	p.mu.Lock()
	if p.session == nil || p.session.ID != id {
		p.mu.Unlock()
		return ErrInvalidState
	}
	p.session.IsMuted = muting
	p.mu.Unlock()

	if muting {
		p.tones.PlayFeedback(toneMuteFreq, toneMuteDur)
		p.bus.Publish(events.Event{Type: events.CallMuted, CallID: id})
	} else {
		p.tones.PlayFeedback(toneUnmuteFreq, toneUnmuteDur)
		p.bus.Publish(events.Event{Type: events.CallUnmuted, CallID: id})
	}
	return nil
}

// ToggleHold optimistically flips the hold flag and renegotiates media in
// the background. A failed renegotiation rolls the flag back.
func (p *Phone) ToggleHold() error {
	p.mu.Lock()
	sess := p.session
	if sess == nil || sess.State != call.StateEstablished {
		p.mu.Unlock()
		p.tones.PlayError()
		return ErrInvalidState
	}
	id := sess.ID
	holding := !sess.IsOnHold
	sess.IsOnHold = holding
	p.mu.Unlock()

	if holding {
		p.tones.PlayFeedback(toneHoldFreq, toneHoldDur)
		p.bus.Publish(events.Event{Type: events.CallHold, CallID: id})
	} else {
		p.tones.PlayFeedback(toneUnholdFreq, toneUnholdDur)
		p.bus.Publish(events.Event{Type: events.CallUnhold, CallID: id})
	}

	go func() {
		if err := p.adapter.Renegotiate(id, holding); err != nil {
			p.revertHold(id, !holding)
			slog.Warn("[PHONE] Hold renegotiation failed", "call_id", id, "hold", holding, "error", err)
		}
	}()
	return nil
}

// revertHold is the compensating transition for a failed hold renegotiation:
// the optimistic flag goes back to its prior value.
func (p *Phone) revertHold(id string, prior bool) {
	p.mu.Lock()
	if p.session != nil && p.session.ID == id {
		p.session.IsOnHold = prior
	}
	p.mu.Unlock()
	p.tones.PlayError()
}

// SendDigit plays the local DTMF tone immediately and relays the digit to
// the far end. Delivery is best-effort; local playback never waits for it.
// Comma is accepted as a pause symbol: relayed, no local tone.
func (p *Phone) SendDigit(symbol rune) error {
	p.mu.Lock()
	sess := p.session
	if sess == nil || sess.State != call.StateEstablished {
		p.mu.Unlock()
		p.tones.PlayError()
		return ErrInvalidState
	}
	id := sess.ID
	p.mu.Unlock()

	if symbol != ',' && !tone.ValidSymbol(symbol) {
		p.tones.PlayError()
		return ErrInvalidDigit
	}

	if symbol != ',' {
		p.tones.PlayDTMF(symbol, dtmfDuration)
	}

	payload := fmt.Sprintf("Signal=%c\r\nDuration=%d", symbol, dtmfDuration.Milliseconds())
	if err := p.adapter.SendMidCallSignal(id, payload); err != nil {
		slog.Warn("[PHONE] Digit relay failed", "call_id", id, "digit", string(symbol), "error", err)
	}
	return nil
}

// Transfer sends the transfer feature code followed by the target as a
// paced digit sequence. Returns immediately; callTransferred is published
// once the last digit has gone out.
func (p *Phone) Transfer(target string) error {
	return p.startSequence(transferPrefix, target, events.CallTransferred)
}

// Conference sends the conference feature code followed by the target as a
// paced digit sequence, publishing conferenceStarted after the last digit.
func (p *Phone) Conference(target string) error {
	return p.startSequence(conferencePrefix, target, events.ConferenceStarted)
}

func (p *Phone) startSequence(prefix, target string, done events.Type) error {
	p.mu.Lock()
	sess := p.session
	if sess == nil || sess.State != call.StateEstablished {
		p.mu.Unlock()
		p.tones.PlayError()
		return ErrInvalidState
	}
	if p.seqCancel != nil {
		p.mu.Unlock()
		p.tones.PlayError()
		return ErrInvalidState
	}
	id := sess.ID
	p.mu.Unlock()

	if target == "" {
		p.tones.PlayError()
		return ErrInvalidDigit
	}
	for _, symbol := range target {
		if symbol != ',' && !tone.ValidSymbol(symbol) {
			p.tones.PlayError()
			return ErrInvalidDigit
		}
	}

	cancel := make(chan struct{})
	p.mu.Lock()
	p.seqCancel = cancel
	p.mu.Unlock()

	go p.runSequence(id, prefix+target, done, cancel)
	return nil
}

// runSequence emits one digit per pacing interval so the remote switch can
// decode the feature code reliably.
func (p *Phone) runSequence(id, digits string, done events.Type, cancel chan struct{}) {
	defer func() {
		p.mu.Lock()
		if p.seqCancel == cancel {
			p.seqCancel = nil
		}
		p.mu.Unlock()
	}()

	for i, symbol := range digits {
		if i > 0 {
			select {
			case <-cancel:
				return
			case <-time.After(p.digitDelay):
			}
		}
		if err := p.SendDigit(symbol); err != nil {
			slog.Warn("[PHONE] Feature code aborted", "call_id", id, "error", err)
			return
		}
	}
	p.bus.Publish(events.Event{Type: done, CallID: id})
}

func (p *Phone) stopSequenceLocked() {
	if p.seqCancel != nil {
		close(p.seqCancel)
		p.seqCancel = nil
	}
}

// --- adapter callbacks ---

func (p *Phone) handleIncoming(handle, remoteAddress, remoteName string) {
	p.mu.Lock()
	if !p.connected {
		p.mu.Unlock()
		return
	}
	if p.session != nil {
		p.mu.Unlock()
		slog.Info("[PHONE] Ignoring invite while busy", "handle", handle, "from", remoteAddress)
		return
	}
	if handle == "" {
		handle = uuid.NewString()
	}
	p.session = &call.Session{
		ID:                handle,
		HistoryID:         handle,
		Direction:         call.DirectionInbound,
		RemoteAddress:     remoteAddress,
		RemoteDisplayName: remoteName,
		StartedAt:         p.clock(),
		State:             call.StateRinging,
	}
	p.mu.Unlock()

	p.tones.StartRing(tone.RingIncoming)
	slog.Info("[PHONE] Incoming call", "handle", handle, "from", remoteAddress, "name", remoteName)
	p.bus.Publish(events.Event{Type: events.IncomingCall, CallID: handle, RemoteAddress: remoteAddress, RemoteName: remoteName})
}

func (p *Phone) handleStateChange(handle string, state signaling.SessionState) {
	p.mu.Lock()
	sess := p.session
	if sess == nil {
		p.mu.Unlock()
		slog.Debug("[PHONE] Event for unknown session", "handle", handle, "state", state.String())
		return
	}
	if sess.ID != handle {
		// An event can beat PlaceCall's return; the dialing session adopts
		// the handle it arrives with.
		if !p.placing || sess.Direction != call.DirectionOutbound {
			p.mu.Unlock()
			slog.Debug("[PHONE] Event for unknown session", "handle", handle, "state", state.String())
			return
		}
		sess.ID = handle
	}

	switch state {
	case signaling.SessionProgressing:
		p.mu.Unlock()
		p.bus.Publish(events.Event{Type: events.CallProgressing, CallID: handle, RemoteAddress: sess.RemoteAddress})

	case signaling.SessionEstablished:
		if !sess.State.CanTransitionTo(call.StateEstablished) {
			p.mu.Unlock()
			slog.Warn("[PHONE] Unexpected established event", "handle", handle, "state", sess.State.String())
			return
		}
		sess.State = call.StateEstablished
		sess.EstablishedAt = p.clock()
		outbound := sess.Direction == call.DirectionOutbound
		p.mu.Unlock()

		p.tones.StopRing()
		if outbound {
			p.tones.PlayFeedback(toneAcceptedFreq, toneAcceptedDur)
		} else {
			p.tones.PlayFeedback(toneAnswerFreq, toneAnswerDur)
		}
		slog.Info("[PHONE] Call established", "call_id", handle)
		p.bus.Publish(events.Event{Type: events.CallAccepted, CallID: handle, RemoteAddress: sess.RemoteAddress})

	case signaling.SessionTerminated:
		ev, ended := p.finalizeLocked(events.CallEnded, "remote hangup")
		p.mu.Unlock()
		if ended {
			p.tones.PlayFeedback(toneEndedFreq, toneEndedDur)
			p.bus.Publish(ev)
		}

	case signaling.SessionFailed:
		ev, ended := p.finalizeFailedLocked()
		p.mu.Unlock()
		if ended {
			p.tones.PlayBusy(dialFailBusyDur)
			p.bus.Publish(ev)
		}

	default:
		p.mu.Unlock()
	}
}

// --- termination bookkeeping ---

// finalizeLocked closes out the active session: ring stopped, exactly one
// history write, state back to none. It returns the lifecycle event for the
// caller to publish and reports whether there was a session to close. The
// publish happens outside the lock so a subscriber may call back into the
// query surface without deadlocking.
func (p *Phone) finalizeLocked(evt events.Type, reason string) (events.Event, bool) {
	sess := p.session
	if sess == nil {
		return events.Event{}, false
	}
	p.session = nil
	p.stopSequenceLocked()
	p.tones.StopRing()

	duration := sess.DurationSeconds(p.clock())
	outcome := call.ClassifyOutcome(sess.Direction, duration)
	p.writeHistory(sess, duration, outcome)

	slog.Info("[PHONE] Call ended", "call_id", sess.ID, "reason", reason,
		"duration_s", duration, "outcome", string(outcome))
	return events.Event{Type: evt, CallID: sess.ID, RemoteAddress: sess.RemoteAddress, Reason: reason}, true
}

// finalizeFailedLocked handles an asynchronous placement failure: provisional
// entry amended, exactly one callFailed event returned for the caller to
// publish after unlocking.
func (p *Phone) finalizeFailedLocked() (events.Event, bool) {
	sess := p.session
	if sess == nil {
		return events.Event{}, false
	}
	p.session = nil
	p.stopSequenceLocked()
	p.tones.StopRing()

	duration := sess.DurationSeconds(p.clock())
	outcome := call.ClassifyOutcome(sess.Direction, duration)
	p.writeHistory(sess, duration, outcome)

	slog.Info("[PHONE] Call failed", "call_id", sess.ID, "outcome", string(outcome))
	return events.Event{Type: events.CallFailed, CallID: sess.ID, RemoteAddress: sess.RemoteAddress}, true
}

// writeHistory amends the provisional outbound entry or records a fresh
// inbound one. Exactly one history mutation per terminated session.
func (p *Phone) writeHistory(sess *call.Session, duration int, outcome call.Outcome) {
	var err error
	if sess.Direction == call.DirectionOutbound {
		id := sess.HistoryID
		if id == "" {
			id = sess.ID
		}
		err = p.history.Amend(id, outcome, duration)
	} else {
		err = p.history.Record(history.Item{
			ID:              sess.ID,
			RemoteAddress:   sess.RemoteAddress,
			DisplayName:     sess.RemoteDisplayName,
			Direction:       sess.Direction,
			StartedAt:       sess.StartedAt,
			DurationSeconds: duration,
			Outcome:         outcome,
		})
	}
	if err != nil {
		slog.Warn("[PHONE] History write failed", "call_id", sess.ID, "error", err)
	}
}

// --- queries ---

// IsConnected reports whether connect() has succeeded.
func (p *Phone) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// IsRegistered reports whether the registration is believed current.
func (p *Phone) IsRegistered() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registered
}

// ActiveCall returns a snapshot of the current session, or nil when idle.
func (p *Phone) ActiveCall() *call.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil
	}
	return p.session.Clone()
}

// IsMuted reports the active call's mute flag; false when idle.
func (p *Phone) IsMuted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil && p.session.IsMuted
}

// IsOnHold reports the active call's hold flag; false when idle.
func (p *Phone) IsOnHold() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil && p.session.IsOnHold
}
