package events

import "testing"

func TestSubscribeReceivesMatchingType(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(CallEnded, func(ev Event) { got = append(got, ev) })

	bus.Publish(Event{Type: CallEnded, CallID: "a"})
	bus.Publish(Event{Type: CallMuted, CallID: "b"})
	bus.Publish(Event{Type: CallEnded, CallID: "c"})

	if len(got) != 2 {
		t.Fatalf("received %d events, want 2", len(got))
	}
	if got[0].CallID != "a" || got[1].CallID != "c" {
		t.Errorf("received call ids %q, %q, want a, c", got[0].CallID, got[1].CallID)
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewBus()

	var count int
	bus.SubscribeAll(func(ev Event) { count++ })

	bus.Publish(Event{Type: Registered})
	bus.Publish(Event{Type: IncomingCall})
	bus.Publish(Event{Type: CallHold})

	if count != 3 {
		t.Errorf("received %d events, want 3", count)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	var count int
	unsub := bus.Subscribe(CallAccepted, func(ev Event) { count++ })

	bus.Publish(Event{Type: CallAccepted})
	unsub()
	bus.Publish(Event{Type: CallAccepted})

	if count != 1 {
		t.Errorf("received %d events after unsubscribe, want 1", count)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	bus := NewBus()
	unsub := bus.Subscribe(CallEnded, func(ev Event) {})
	unsub()
	unsub()
	if bus.Len() != 0 {
		t.Errorf("Len() = %d, want 0", bus.Len())
	}
}

func TestClearRemovesAllSubscriptions(t *testing.T) {
	bus := NewBus()

	var count int
	bus.Subscribe(CallEnded, func(ev Event) { count++ })
	bus.SubscribeAll(func(ev Event) { count++ })

	bus.Clear()
	bus.Publish(Event{Type: CallEnded})

	if count != 0 {
		t.Errorf("received %d events after Clear, want 0", count)
	}
	if bus.Len() != 0 {
		t.Errorf("Len() = %d, want 0", bus.Len())
	}
}

func TestPublishWithNoSubscribers(t *testing.T) {
	bus := NewBus()
	bus.Publish(Event{Type: CallFailed})
}

func TestSubscriberMayUnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus()

	var unsub func()
	var count int
	unsub = bus.Subscribe(CallEnded, func(ev Event) {
		count++
		unsub()
	})

	bus.Publish(Event{Type: CallEnded})
	bus.Publish(Event{Type: CallEnded})

	if count != 1 {
		t.Errorf("received %d events, want 1", count)
	}
}
