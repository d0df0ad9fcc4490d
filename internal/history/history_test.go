package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/sebas/softphone/internal/call"
	"github.com/sebas/softphone/internal/kv"
)

func testItem(id string) Item {
	return Item{
		ID:            id,
		RemoteAddress: "100" + id,
		Direction:     call.DirectionOutbound,
		StartedAt:     time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
		Outcome:       call.OutcomeAnswered,
	}
}

func TestRecordNewestFirst(t *testing.T) {
	s, err := NewStore(kv.NewMemoryStore())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if err := s.Record(testItem(fmt.Sprintf("%d", i))); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	items := s.List()
	if len(items) != 3 {
		t.Fatalf("Len = %d, want 3", len(items))
	}
	for i, wantID := range []string{"3", "2", "1"} {
		if items[i].ID != wantID {
			t.Errorf("items[%d].ID = %q, want %q", i, items[i].ID, wantID)
		}
	}
}

func TestRecordEvictsBeyondCap(t *testing.T) {
	s, err := NewStore(kv.NewMemoryStore())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	for i := 1; i <= MaxItems+1; i++ {
		if err := s.Record(testItem(fmt.Sprintf("%d", i))); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	items := s.List()
	if len(items) != MaxItems {
		t.Fatalf("Len = %d, want %d", len(items), MaxItems)
	}
	if items[0].ID != fmt.Sprintf("%d", MaxItems+1) {
		t.Errorf("newest ID = %q, want %q", items[0].ID, fmt.Sprintf("%d", MaxItems+1))
	}
	if items[MaxItems-1].ID != "2" {
		t.Errorf("oldest surviving ID = %q, want 2 (item 1 evicted)", items[MaxItems-1].ID)
	}
}

func TestAmendProvisional(t *testing.T) {
	s, err := NewStore(kv.NewMemoryStore())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if err := s.Record(testItem("prov")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Amend("prov", call.OutcomeRejected, 0); err != nil {
		t.Fatalf("Amend: %v", err)
	}

	got := s.List()[0]
	if got.Outcome != call.OutcomeRejected || got.DurationSeconds != 0 {
		t.Errorf("amended item = %s/%d, want rejected/0", got.Outcome, got.DurationSeconds)
	}
}

func TestAmendUnknownIDIsNoop(t *testing.T) {
	s, err := NewStore(kv.NewMemoryStore())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Record(testItem("a")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := s.Amend("nope", call.OutcomeMissed, 7); err != nil {
		t.Fatalf("Amend: %v", err)
	}
	got := s.List()[0]
	if got.Outcome != call.OutcomeAnswered {
		t.Errorf("item changed by unknown-id amend: %s", got.Outcome)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	slot := kv.NewMemoryStore()

	s, err := NewStore(slot)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Record(testItem("1")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record(testItem("2")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// A fresh store over the same slot sees the same list.
	reloaded, err := NewStore(slot)
	if err != nil {
		t.Fatalf("NewStore reload: %v", err)
	}
	items := reloaded.List()
	if len(items) != 2 {
		t.Fatalf("reloaded Len = %d, want 2", len(items))
	}
	if items[0].ID != "2" || items[1].ID != "1" {
		t.Errorf("reloaded order = %q, %q, want 2, 1", items[0].ID, items[1].ID)
	}
	if !items[0].StartedAt.Equal(testItem("2").StartedAt) {
		t.Errorf("StartedAt = %v, want %v", items[0].StartedAt, testItem("2").StartedAt)
	}
}

func TestCorruptBlobDiscarded(t *testing.T) {
	slot := kv.NewMemoryStore()
	if err := slot.Put(SlotKey, []byte("{not json")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	s, err := NewStore(slot)
	if err != nil {
		t.Fatalf("NewStore with corrupt blob: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0 after discarding corrupt blob", s.Len())
	}
}

func TestClear(t *testing.T) {
	slot := kv.NewMemoryStore()
	s, err := NewStore(slot)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Record(testItem("1")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}

	// The empty list is persisted too.
	reloaded, err := NewStore(slot)
	if err != nil {
		t.Fatalf("NewStore reload: %v", err)
	}
	if reloaded.Len() != 0 {
		t.Errorf("reloaded Len = %d, want 0", reloaded.Len())
	}
}
