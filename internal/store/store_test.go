package store

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"
)

// roundtrip exercises the full Store contract against any backend.
func roundtrip(t *testing.T, s Store) {
	t.Helper()

	// Missing key.
	if _, ok, err := s.Get("contract/ghost"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want absent", ok, err)
	}

	// Put then Get, then overwrite.
	if err := s.Put("contract/alpha", []byte(`{"v":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("contract/alpha", []byte(`{"v":2}`)); err != nil {
		t.Fatal(err)
	}
	data, ok, err := s.Get("contract/alpha")
	if err != nil || !ok {
		t.Fatalf("Get() = ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(data, []byte(`{"v":2}`)) {
		t.Errorf("Get() = %s, want overwritten value", data)
	}

	// Prefix listing is exact-prefix only.
	if err := s.Put("contract/beta", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("performance/alpha", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	got, err := s.ListByPrefix("contract/")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("ListByPrefix() returned %d keys, want 2", len(got))
	}

	// Append-only log preserves insertion order.
	for i := 0; i < 5; i++ {
		if err := s.Append(StreamInsights, []byte(fmt.Sprintf("entry-%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := s.ReadLog(StreamInsights)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 {
		t.Fatalf("ReadLog() returned %d entries, want 5", len(entries))
	}
	for i, entry := range entries {
		want := fmt.Sprintf("entry-%d", i)
		if string(entry) != want {
			t.Errorf("entry[%d] = %s, want %s", i, entry, want)
		}
	}

	// Streams are independent.
	other, err := s.ReadLog(StreamTerminations)
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("unrelated stream has %d entries, want 0", len(other))
	}
}

func TestMemStore(t *testing.T) {
	roundtrip(t, NewMemStore())
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()
	roundtrip(t, s)
}

func TestMemStoreCopiesValues(t *testing.T) {
	s := NewMemStore()
	original := []byte("immutable")
	if err := s.Put("k", original); err != nil {
		t.Fatal(err)
	}
	original[0] = 'X'

	data, _, err := s.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "immutable" {
		t.Errorf("stored value was aliased by caller mutation: %s", data)
	}
}
