package kv

import (
	"bytes"
	"path/filepath"
	"testing"
)

func testStoreContract(t *testing.T, s Store) {
	t.Helper()

	// Absent key reads as nil without error.
	got, err := s.Get("missing")
	if err != nil {
		t.Fatalf("Get(missing): %v", err)
	}
	if got != nil {
		t.Errorf("Get(missing) = %v, want nil", got)
	}

	if err := s.Put("k", []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err = s.Get("k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("v1")) {
		t.Errorf("Get = %q, want v1", got)
	}

	// Put replaces the whole value.
	if err := s.Put("k", []byte("v2")); err != nil {
		t.Fatalf("Put replace: %v", err)
	}
	got, _ = s.Get("k")
	if !bytes.Equal(got, []byte("v2")) {
		t.Errorf("Get after replace = %q, want v2", got)
	}

	if err := s.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, _ = s.Get("k")
	if got != nil {
		t.Errorf("Get after delete = %q, want nil", got)
	}

	// Deleting an absent key is not an error.
	if err := s.Delete("k"); err != nil {
		t.Errorf("Delete absent: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	value := []byte("original")
	if err := s.Put("k", value); err != nil {
		t.Fatalf("Put: %v", err)
	}
	value[0] = 'X'

	got, _ := s.Get("k")
	if !bytes.Equal(got, []byte("original")) {
		t.Errorf("stored value mutated through caller slice: %q", got)
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()

	testStoreContract(t, s)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := s.Put("history", []byte(`[{"id":"1"}]`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get("history")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if !bytes.Equal(got, []byte(`[{"id":"1"}]`)) {
		t.Errorf("Get after reopen = %q, want original blob", got)
	}
}
