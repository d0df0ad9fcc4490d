// Package events provides the in-process publish/subscribe channel that
// decouples the call controller from its observers (CLI, notification layer).
package events

import "sync"

// Type names a phone event.
type Type string

// Event types published by the controller.
const (
	Registered         Type = "registered"
	Unregistered       Type = "unregistered"
	RegistrationFailed Type = "registrationFailed"
	IncomingCall       Type = "incomingCall"
	CallProgressing    Type = "callProgressing"
	CallAccepted       Type = "callAccepted"
	CallEnded          Type = "callEnded"
	CallFailed         Type = "callFailed"
	CallMuted          Type = "callMuted"
	CallUnmuted        Type = "callUnmuted"
	CallHold           Type = "callHold"
	CallUnhold         Type = "callUnhold"
	CallTransferred    Type = "callTransferred"
	ConferenceStarted  Type = "conferenceStarted"
)

// Event is the payload delivered to subscribers. CallID is set for all
// call-scoped events; the remaining fields are filled where they apply.
type Event struct {
	Type          Type
	CallID        string
	RemoteAddress string
	RemoteName    string
	Reason        string
}

// Handler receives published events. Delivery is synchronous on the
// publisher's goroutine; handlers must not block.
type Handler func(Event)

type subscription struct {
	id        int
	eventType Type
	all       bool
	handler   Handler
}

// Bus is a typed publish/subscribe channel. The zero value is not usable;
// construct with NewBus.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   []*subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for one event type and returns a function
// that removes the subscription. Unsubscribing twice is harmless.
func (b *Bus) Subscribe(t Type, h Handler) func() {
	return b.add(&subscription{eventType: t, handler: h})
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(h Handler) func() {
	return b.add(&subscription{all: true, handler: h})
}

func (b *Bus) add(s *subscription) func() {
	b.mu.Lock()
	b.nextID++
	s.id = b.nextID
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	id := s.id
	return func() { b.remove(id) }
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers the event synchronously to all matching subscribers in
// subscription order.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	matched := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.all || s.eventType == ev.Type {
			matched = append(matched, s.handler)
		}
	}
	b.mu.Unlock()

	for _, h := range matched {
		h(ev)
	}
}

// Clear removes every subscription. Used on disconnect.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
