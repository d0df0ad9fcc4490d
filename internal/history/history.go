// Package history keeps the bounded, persisted log of finished call
// attempts. The full list is serialized as one JSON blob under a single
// durable key on every mutation and reloaded whole at startup.
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sebas/softphone/internal/call"
	"github.com/sebas/softphone/internal/kv"
)

// MaxItems is the retention cap. Overflow items are discarded, never
// archived.
const MaxItems = 50

// SlotKey is the durable key the serialized list lives under.
const SlotKey = "call_history"

// Item is an immutable record of one finished call attempt.
type Item struct {
	ID              string         `json:"id"`
	RemoteAddress   string         `json:"remote_address"`
	DisplayName     string         `json:"display_name,omitempty"`
	Direction       call.Direction `json:"direction"`
	StartedAt       time.Time      `json:"started_at"`
	DurationSeconds int            `json:"duration_seconds"`
	Outcome         call.Outcome   `json:"outcome"`
}

// Store holds up to MaxItems records, newest first.
type Store struct {
	mu    sync.Mutex
	slot  kv.Store
	items []Item
}

// NewStore creates a store backed by slot and loads any previously persisted
// list. A corrupt blob is logged and discarded rather than surfaced.
func NewStore(slot kv.Store) (*Store, error) {
	s := &Store{slot: slot}

	blob, err := slot.Get(SlotKey)
	if err != nil {
		return nil, fmt.Errorf("load call history: %w", err)
	}
	if len(blob) > 0 {
		if err := json.Unmarshal(blob, &s.items); err != nil {
			slog.Warn("[HISTORY] Discarding unreadable call history", "error", err)
			s.items = nil
		}
		if len(s.items) > MaxItems {
			s.items = s.items[:MaxItems]
		}
	}
	return s, nil
}

// Record prepends item and truncates to the MaxItems most recent entries.
func (s *Store) Record(item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append([]Item{item}, s.items...)
	if len(s.items) > MaxItems {
		s.items = s.items[:MaxItems]
	}
	return s.persistLocked()
}

// Amend updates the provisional entry created at dial time. Unknown IDs are
// a no-op.
func (s *Store) Amend(id string, outcome call.Outcome, durationSeconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Outcome = outcome
			s.items[i].DurationSeconds = durationSeconds
			return s.persistLocked()
		}
	}
	return nil
}

// List returns a snapshot, newest first.
func (s *Store) List() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Clear empties the store and its durable slot.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	blob, err := json.Marshal(s.items)
	if err != nil {
		return fmt.Errorf("encode call history: %w", err)
	}
	if err := s.slot.Put(SlotKey, blob); err != nil {
		return fmt.Errorf("persist call history: %w", err)
	}
	return nil
}
